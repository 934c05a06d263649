package match

import (
	"testing"

	"github.com/docintake/template-engine/internal/fingerprint"
	"github.com/docintake/template-engine/internal/template"
)

func docFP(format string, keywords, patterns []string) *fingerprint.DocumentFingerprint {
	return &fingerprint.DocumentFingerprint{
		DocumentPath: "/in/invoice-march.pdf",
		Format:       format,
		Language:     "en",
		Structure: fingerprint.Structure{
			PageCount: 1,
			WordCount: 300,
			Layout:    fingerprint.LayoutStandard,
		},
		Keywords: keywords,
		Patterns: patterns,
	}
}

func tmplFP(formats, keywords []string) *fingerprint.TemplateFingerprint {
	return &fingerprint.TemplateFingerprint{
		TemplateID:       "t1",
		SupportedFormats: formats,
		ExpectedKeywords: keywords,
		ExpectedStructure: fingerprint.Structure{
			PageCount: 1,
			Layout:    fingerprint.LayoutStandard,
		},
	}
}

func TestScoreFormat(t *testing.T) {
	s := NewScorer(ScorerConfig{})

	tests := []struct {
		name      string
		docFormat string
		supported []string
		want      float64
	}{
		{"exact match", "pdf", []string{"pdf"}, 1.0},
		{"family docx for doc", "docx", []string{"doc"}, 0.8},
		{"family xls for xlsx", "xls", []string{"xlsx"}, 0.8},
		{"mismatch", "docx", []string{"pdf"}, 0.0},
		{"exact beats family", "docx", []string{"doc", "docx"}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := docFP(tt.docFormat, nil, nil)
			got := s.scoreFormat(doc, tmplFP(tt.supported, nil))
			if got != tt.want {
				t.Errorf("Expected format score %.1f, got %.1f", tt.want, got)
			}
		})
	}
}

func TestScoreKeywords(t *testing.T) {
	s := NewScorer(ScorerConfig{})
	doc := docFP("pdf", []string{"invoice", "total", "payment"}, nil)

	if got := s.scoreKeywords(doc, []string{"invoice", "total"}); got != 1.0 {
		t.Errorf("Expected full keyword score, got %.2f", got)
	}
	if got := s.scoreKeywords(doc, []string{"invoice", "shipping"}); got != 0.5 {
		t.Errorf("Expected half keyword score, got %.2f", got)
	}
	if got := s.scoreKeywords(doc, nil); got != 1.0 {
		t.Errorf("Expected 1.0 when no keywords expected, got %.2f", got)
	}
}

func TestScoreRequiredKeywordDetail(t *testing.T) {
	s := NewScorer(ScorerConfig{})
	doc := docFP("pdf", []string{"invoice", "total"}, nil)

	tmpl := tmplFP([]string{"pdf"}, []string{"invoice"})
	tmpl.RequiredKeywords = []string{"ticket"}

	score := s.Score(doc, tmpl, &template.MatchingCriteria{})
	if got := score.Details["required_keyword_match"]; got != 0.0 {
		t.Errorf("Expected required keyword detail 0.0 when the keyword is absent, got %.2f", got)
	}

	tmpl.RequiredKeywords = []string{"invoice"}
	score = s.Score(doc, tmpl, &template.MatchingCriteria{})
	if got := score.Details["required_keyword_match"]; got != 1.0 {
		t.Errorf("Expected required keyword detail 1.0 when the keyword is present, got %.2f", got)
	}
}

func TestScoreKeywords_Fuzzy(t *testing.T) {
	strict := NewScorer(ScorerConfig{})
	fuzzy := NewScorer(ScorerConfig{FuzzyKeywords: true, FuzzyThreshold: 0.8})

	doc := docFP("pdf", []string{"invoices"}, nil)
	want := []string{"invoice"}

	if got := strict.scoreKeywords(doc, want); got != 0.0 {
		t.Errorf("Expected strict miss for near keyword, got %.2f", got)
	}
	if got := fuzzy.scoreKeywords(doc, want); got != 1.0 {
		t.Errorf("Expected fuzzy hit for near keyword, got %.2f", got)
	}
}

func TestScorePatterns(t *testing.T) {
	s := NewScorer(ScorerConfig{})
	doc := docFP("pdf", nil, []string{"iso-date", "email"})

	// Classifiable expectations count; the unclassifiable one is skipped.
	expected := []string{`\d{4}-\d{2}-\d{2}`, `user@domain`, `^some free regex$`}
	if got := s.scorePatterns(doc, expected); got != 1.0 {
		t.Errorf("Expected full pattern score, got %.2f", got)
	}

	expected = []string{`\d{4}-\d{2}-\d{2}`, `[A-Z]{3}-\d+`}
	if got := s.scorePatterns(doc, expected); got != 0.5 {
		t.Errorf("Expected half pattern score, got %.2f", got)
	}

	if got := s.scorePatterns(doc, []string{`^free form$`}); got != 1.0 {
		t.Errorf("Expected neutral 1.0 when nothing is classifiable, got %.2f", got)
	}
}

func TestClassifyPattern(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{`[\w.]+@[\w.]+`, "email"},
		{`\d{4}-\d{2}-\d{2}`, "iso-date"},
		{`\d{1,2}/\d{1,2}/\d{4}`, "us-date"},
		{`[A-Z]{2,5}-\d{4,8}`, "ticket-number"},
		{`\d{3}[-.]\d{3}[-.]\d{4}`, "us-phone"},
		{`^anything else$`, ""},
	}
	for _, tt := range tests {
		if got := classifyPattern(tt.pattern); got != tt.want {
			t.Errorf("classifyPattern(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func TestScoreStructure(t *testing.T) {
	s := NewScorer(ScorerConfig{})

	doc := docFP("pdf", nil, nil)
	tmpl := tmplFP([]string{"pdf"}, nil)
	if got := s.scoreStructure(doc, tmpl); got != 1.0 {
		t.Errorf("Expected perfect structure score, got %.2f", got)
	}

	// Twice the expected pages halves the page component.
	doc.Structure.PageCount = 2
	if got := s.scoreStructure(doc, tmpl); got != 0.875 {
		t.Errorf("Expected 0.875 with a page mismatch, got %.3f", got)
	}
}

func TestScoreMetadata_NeutralWithoutMetadata(t *testing.T) {
	s := NewScorer(ScorerConfig{})
	doc := docFP("pdf", nil, nil)
	if got := s.scoreMetadata(doc, tmplFP(nil, []string{"invoice"})); got != 0.5 {
		t.Errorf("Expected neutral 0.5 without metadata, got %.2f", got)
	}

	doc.Metadata = map[string]string{"title": "Invoice March", "author": "jdoe"}
	if got := s.scoreMetadata(doc, tmplFP(nil, []string{"invoice"})); got != 0.5 {
		t.Errorf("Expected one of two metadata values to hit, got %.2f", got)
	}
}

func TestScoreFilename(t *testing.T) {
	s := NewScorer(ScorerConfig{})
	doc := docFP("pdf", nil, nil)

	if got := s.scoreFilename(doc, tmplFP(nil, []string{"invoice"})); got <= 0.0 {
		t.Errorf("Expected a filename hit for %q, got %.2f", doc.DocumentPath, got)
	}
	if got := s.scoreFilename(doc, tmplFP(nil, []string{"receipt"})); got != 0.0 {
		t.Errorf("Expected a filename miss, got %.2f", got)
	}
	if got := s.scoreFilename(doc, tmplFP(nil, nil)); got != 0.5 {
		t.Errorf("Expected neutral 0.5 without expected keywords, got %.2f", got)
	}
}

func TestScore_OverallBounds(t *testing.T) {
	s := NewScorer(ScorerConfig{})
	doc := docFP("pdf", []string{"invoice"}, []string{"iso-date"})
	doc.Metadata = map[string]string{"title": "invoice"}

	score := s.Score(doc, tmplFP([]string{"pdf"}, []string{"invoice"}), nil)
	if score.Overall < 0.0 || score.Overall > 1.0 {
		t.Errorf("Overall score out of bounds: %.3f", score.Overall)
	}
	for _, sub := range []float64{
		score.FormatMatch, score.KeywordMatch, score.PatternMatch,
		score.StructureMatch, score.MetadataMatch, score.FilenameMatch,
	} {
		if sub < 0.0 || sub > 1.0 {
			t.Errorf("Sub-score out of bounds: %.3f", sub)
		}
	}
}

func TestScore_CustomWeights(t *testing.T) {
	s := NewScorer(ScorerConfig{})
	doc := docFP("pdf", nil, nil)
	tmpl := tmplFP([]string{"pdf"}, nil)

	criteria := &template.MatchingCriteria{
		Weights: &template.ScoreWeights{Format: 1.0},
	}
	score := s.Score(doc, tmpl, criteria)
	if score.Overall != 1.0 {
		t.Errorf("Expected format-only weighting to yield 1.0, got %.2f", score.Overall)
	}
}

func TestSimilarity(t *testing.T) {
	if got := similarity("invoice", "invoice"); got != 1.0 {
		t.Errorf("Expected identity similarity 1.0, got %.2f", got)
	}
	if got := similarity("invoice", "invoices"); got < 0.85 {
		t.Errorf("Expected high similarity for near words, got %.2f", got)
	}
	if got := similarity("invoice", "zebra"); got > 0.4 {
		t.Errorf("Expected low similarity for unrelated words, got %.2f", got)
	}
	if got := similarity("", "abc"); got != 0.0 {
		t.Errorf("Expected 0.0 for empty input, got %.2f", got)
	}
}

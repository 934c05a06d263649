package match

import (
	"strings"

	"github.com/docintake/template-engine/internal/fingerprint"
	"github.com/docintake/template-engine/internal/template"
)

// formatFamilies maps cross-compatible format pairs scored at 0.8
var formatFamilies = map[string]string{
	"doc":  "docx",
	"docx": "doc",
	"xls":  "xlsx",
	"xlsx": "xls",
}

// ScorerConfig tunes the scorer's optional behaviors. DefaultWeights,
// when set, replace the built-in weights for templates that carry none
// of their own.
type ScorerConfig struct {
	FuzzyKeywords  bool
	FuzzyThreshold float64
	DefaultWeights *template.ScoreWeights
}

// Scorer computes weighted similarity between document and template
// fingerprints. Stateless apart from its configuration; safe for
// concurrent use.
type Scorer struct {
	config ScorerConfig
}

// NewScorer creates a scorer
func NewScorer(config ScorerConfig) *Scorer {
	if config.FuzzyThreshold <= 0 || config.FuzzyThreshold > 1 {
		config.FuzzyThreshold = 0.85
	}
	return &Scorer{config: config}
}

// Score computes the confidence score for one document/template pair.
// When criteria carries no weights, the default weights apply.
func (s *Scorer) Score(doc *fingerprint.DocumentFingerprint, tmpl *fingerprint.TemplateFingerprint, criteria *template.MatchingCriteria) ConfidenceScore {
	weights := template.DefaultScoreWeights()
	if s.config.DefaultWeights != nil {
		weights = *s.config.DefaultWeights
	}
	if criteria != nil && criteria.Weights != nil {
		weights = *criteria.Weights
	}

	score := ConfidenceScore{
		FormatMatch:    s.scoreFormat(doc, tmpl),
		KeywordMatch:   s.scoreKeywords(doc, tmpl.ExpectedKeywords),
		PatternMatch:   s.scorePatterns(doc, tmpl.ExpectedPatterns),
		StructureMatch: s.scoreStructure(doc, tmpl),
		MetadataMatch:  s.scoreMetadata(doc, tmpl),
		FilenameMatch:  s.scoreFilename(doc, tmpl),
		Details:        make(map[string]float64),
	}

	score.Details["required_keyword_match"] = s.scoreKeywords(doc, tmpl.RequiredKeywords)
	score.Details["complexity_ratio"] = tmpl.ComplexityScore / 10.0
	if doc.Language == "unknown" {
		score.Details["language_match"] = 0.5
	} else {
		score.Details["language_match"] = 1.0
	}

	score.Overall = clamp01(score.FormatMatch*weights.Format +
		score.KeywordMatch*weights.Keyword +
		score.PatternMatch*weights.Pattern +
		score.StructureMatch*weights.Structure +
		score.MetadataMatch*weights.Metadata +
		score.FilenameMatch*weights.Filename)

	return score
}

// scoreFormat returns 1.0 on an exact format hit, 0.8 when the document
// format and a supported format are cross-compatible siblings (doc/docx,
// xls/xlsx), 0.0 otherwise
func (s *Scorer) scoreFormat(doc *fingerprint.DocumentFingerprint, tmpl *fingerprint.TemplateFingerprint) float64 {
	best := 0.0
	for _, f := range tmpl.SupportedFormats {
		f = strings.ToLower(f)
		if f == doc.Format {
			return 1.0
		}
		if formatFamilies[f] == doc.Format && best < 0.8 {
			best = 0.8
		}
	}
	return best
}

// scoreKeywords returns the fraction of expected keywords present in the
// document keyword set; 1.0 when the template expects none
func (s *Scorer) scoreKeywords(doc *fingerprint.DocumentFingerprint, expected []string) float64 {
	if len(expected) == 0 {
		return 1.0
	}
	hits := 0
	for _, want := range expected {
		if s.keywordPresent(doc, strings.ToLower(want)) {
			hits++
		}
	}
	return float64(hits) / float64(len(expected))
}

func (s *Scorer) keywordPresent(doc *fingerprint.DocumentFingerprint, want string) bool {
	for _, have := range doc.Keywords {
		if have == want {
			return true
		}
		if s.config.FuzzyKeywords && similarity(have, want) >= s.config.FuzzyThreshold {
			return true
		}
	}
	return false
}

// scorePatterns compares template regex expectations against the
// document's detected structural pattern names. Template patterns are
// classified into structural names by shape; patterns with no structural
// equivalent do not count against the template.
func (s *Scorer) scorePatterns(doc *fingerprint.DocumentFingerprint, expected []string) float64 {
	if len(expected) == 0 {
		return 1.0
	}
	checked := 0
	hits := 0
	for _, p := range expected {
		name := classifyPattern(p)
		if name == "" {
			continue
		}
		checked++
		if doc.HasPattern(name) {
			hits++
		}
	}
	if checked == 0 {
		return 1.0
	}
	return float64(hits) / float64(checked)
}

// classifyPattern maps a template regex source onto the structural
// pattern vocabulary used by document fingerprints
func classifyPattern(pattern string) string {
	switch {
	case strings.Contains(pattern, "@"):
		return "email"
	case strings.Contains(pattern, `\d{4}-\d{2}-\d{2}`):
		return "iso-date"
	case strings.Contains(pattern, `/\d`) || strings.Contains(pattern, `\d{1,2}/`):
		return "us-date"
	case strings.Contains(pattern, "[A-Z]") && strings.Contains(pattern, `-\d`):
		return "ticket-number"
	case strings.Contains(pattern, `\d{3}`) && strings.Contains(pattern, `\d{4}`):
		return "us-phone"
	default:
		return ""
	}
}

// scoreStructure averages page-count ratio, layout equality, and the
// table/scanned flag equalities
func (s *Scorer) scoreStructure(doc *fingerprint.DocumentFingerprint, tmpl *fingerprint.TemplateFingerprint) float64 {
	pageScore := pageRatio(doc.Structure.PageCount, tmpl.ExpectedStructure.PageCount)

	layoutScore := 0.0
	if doc.Structure.Layout == tmpl.ExpectedStructure.Layout {
		layoutScore = 1.0
	}
	tableScore := 0.0
	if doc.Structure.HasTables == tmpl.ExpectedStructure.HasTables {
		tableScore = 1.0
	}
	scanScore := 0.0
	if doc.Structure.IsScanned == tmpl.ExpectedStructure.IsScanned {
		scanScore = 1.0
	}

	return (pageScore + layoutScore + tableScore + scanScore) / 4.0
}

func pageRatio(docPages, expectedPages int) float64 {
	if docPages <= 0 || expectedPages <= 0 {
		return 0.5
	}
	if docPages > expectedPages {
		return float64(expectedPages) / float64(docPages)
	}
	return float64(docPages) / float64(expectedPages)
}

// scoreMetadata checks how many document metadata values mention an
// expected keyword. Documents without metadata score a neutral 0.5.
func (s *Scorer) scoreMetadata(doc *fingerprint.DocumentFingerprint, tmpl *fingerprint.TemplateFingerprint) float64 {
	if len(doc.Metadata) == 0 {
		return 0.5
	}
	if len(tmpl.ExpectedKeywords) == 0 {
		return 0.5
	}

	hits := 0
	for _, v := range doc.Metadata {
		lower := strings.ToLower(v)
		for _, k := range tmpl.ExpectedKeywords {
			if strings.Contains(lower, strings.ToLower(k)) {
				hits++
				break
			}
		}
	}
	score := float64(hits) / float64(len(doc.Metadata))
	return clamp01(score)
}

// scoreFilename checks the document filename for expected keywords
func (s *Scorer) scoreFilename(doc *fingerprint.DocumentFingerprint, tmpl *fingerprint.TemplateFingerprint) float64 {
	if len(tmpl.ExpectedKeywords) == 0 {
		return 0.5
	}
	name := strings.ToLower(doc.DocumentPath)
	if idx := strings.LastIndexAny(name, "/\\"); idx >= 0 {
		name = name[idx+1:]
	}

	hits := 0
	for _, k := range tmpl.ExpectedKeywords {
		if strings.Contains(name, strings.ToLower(k)) {
			hits++
		}
	}
	if hits == 0 {
		return 0.0
	}
	return clamp01(float64(hits) / 3.0)
}

// similarity is a normalized edit-distance ratio used for fuzzy keyword
// matching
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0.0
	}
	dist := levenshtein(a, b)
	max := la
	if lb > max {
		max = lb
	}
	return 1.0 - float64(dist)/float64(max)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

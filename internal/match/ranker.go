package match

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/docintake/template-engine/internal/errs"
	"github.com/docintake/template-engine/internal/fingerprint"
	"github.com/docintake/template-engine/internal/logging"
	"github.com/docintake/template-engine/internal/template"
)

// Ranker orchestrates scoring across a template set for one document,
// filters by a minimum confidence, and returns a ranked result set
type Ranker struct {
	scorer  *Scorer
	tmplFPs *fingerprint.TemplateFingerprinter
	logger  *logging.Logger
}

// NewRanker creates a ranker
func NewRanker(scorer *Scorer, tmplFPs *fingerprint.TemplateFingerprinter, logger *logging.Logger) *Ranker {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Ranker{
		scorer:  scorer,
		tmplFPs: tmplFPs,
		logger:  logger.WithComponent("ranker"),
	}
}

// GetAllMatches scores every active template against the document
// fingerprint. A failure on one template is logged and skipped, never
// aborting the scan. Results are filtered to minConfidence, sorted
// descending by overall score with template id as the deterministic
// secondary key, and truncated to maxResults (0 means unlimited).
func (r *Ranker) GetAllMatches(ctx context.Context, doc *fingerprint.DocumentFingerprint, templates []*template.Template, minConfidence float64, maxResults int) ([]MatchResult, error) {
	results := make([]MatchResult, 0, len(templates))

	for _, t := range templates {
		select {
		case <-ctx.Done():
			return nil, errs.Cancelled(ctx.Err())
		default:
		}

		if t == nil || !t.Active {
			continue
		}

		result, err := r.scoreOne(doc, t)
		if err != nil {
			r.logger.Warn().Err(err).Str("template_id", t.ID).Msg("skipping template after scoring failure")
			continue
		}

		if result.Score.Overall >= minConfidence {
			results = append(results, result)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score.Overall != results[j].Score.Overall {
			return results[i].Score.Overall > results[j].Score.Overall
		}
		return results[i].Template.ID < results[j].Template.ID
	})

	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// FindBestMatch returns the single highest-scoring match, or nil when no
// template clears the minimum confidence
func (r *Ranker) FindBestMatch(ctx context.Context, doc *fingerprint.DocumentFingerprint, templates []*template.Template, minConfidence float64) (*MatchResult, error) {
	matches, err := r.GetAllMatches(ctx, doc, templates, minConfidence, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

func (r *Ranker) scoreOne(doc *fingerprint.DocumentFingerprint, t *template.Template) (MatchResult, error) {
	start := time.Now()

	tmplFP := r.tmplFPs.Fingerprint(t)
	if tmplFP == nil {
		return MatchResult{}, fmt.Errorf("no fingerprint for template %s", t.ID)
	}

	score := r.scorer.Score(doc, tmplFP, &t.Matching)

	result := MatchResult{
		Template:   t,
		Score:      score,
		MatchTime:  time.Since(start),
		WordCount:  doc.Structure.WordCount,
		PageCount:  doc.Structure.PageCount,
		Complexity: tmplFP.ComplexityScore,
	}
	result.Reasons, result.Warnings = explain(score, tmplFP)
	return result, nil
}

// explain converts a score breakdown into human-readable match reasons
// and warnings
func explain(score ConfidenceScore, tmplFP *fingerprint.TemplateFingerprint) (reasons, warnings []string) {
	switch {
	case score.FormatMatch >= 1.0:
		reasons = append(reasons, "document format exactly matches the template")
	case score.FormatMatch > 0:
		reasons = append(reasons, "document format is compatible with the template")
	default:
		warnings = append(warnings, "document format is not supported by the template")
	}

	if len(tmplFP.ExpectedKeywords) > 0 {
		reasons = append(reasons, fmt.Sprintf("%.0f%% of expected keywords found", score.KeywordMatch*100))
	}
	if required, ok := score.Details["required_keyword_match"]; ok && len(tmplFP.RequiredKeywords) > 0 {
		if required < 1.0 {
			warnings = append(warnings, fmt.Sprintf("only %.0f%% of required keywords found", required*100))
		} else {
			reasons = append(reasons, "all required keywords present")
		}
	}
	if score.StructureMatch >= 0.75 {
		reasons = append(reasons, "document structure matches template expectations")
	} else if score.StructureMatch < 0.5 {
		warnings = append(warnings, "document structure differs from template expectations")
	}
	return reasons, warnings
}

package match

import (
	"time"

	"github.com/docintake/template-engine/internal/template"
)

// ConfidenceScore is the multi-factor similarity between one document
// fingerprint and one template fingerprint. Every sub-score and the
// aggregate are in [0,1].
type ConfidenceScore struct {
	FormatMatch    float64 `json:"format_match"`
	KeywordMatch   float64 `json:"keyword_match"`
	PatternMatch   float64 `json:"pattern_match"`
	StructureMatch float64 `json:"structure_match"`
	MetadataMatch  float64 `json:"metadata_match"`
	FilenameMatch  float64 `json:"filename_match"`

	Overall float64 `json:"overall"`

	// Supplementary detail scores: required-keyword coverage,
	// complexity ratio, language match
	Details map[string]float64 `json:"details,omitempty"`
}

// MatchResult pairs a template with its score for one document
type MatchResult struct {
	Template   *template.Template `json:"template"`
	Score      ConfidenceScore    `json:"score"`
	MatchTime  time.Duration      `json:"match_time"`
	Reasons    []string           `json:"reasons,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
	WordCount  int                `json:"word_count"`
	PageCount  int                `json:"page_count"`
	Complexity float64            `json:"complexity"`
}

package fingerprint

import (
	"time"
)

// LayoutType classifies the dominant layout of a document
type LayoutType string

const (
	LayoutStandard LayoutType = "standard"
	LayoutTable    LayoutType = "table"
	LayoutForm     LayoutType = "form"
	LayoutLetter   LayoutType = "letter"
)

// Structure summarizes the physical shape of a document or the shape a
// template expects
type Structure struct {
	PageCount int        `json:"page_count"`
	WordCount int        `json:"word_count"`
	HasTables bool       `json:"has_tables"`
	HasImages bool       `json:"has_images"`
	IsScanned bool       `json:"is_scanned"`
	Layout    LayoutType `json:"layout"`
}

// DocumentFingerprint is the comparable feature summary of one processed
// document. Immutable once created; cached by document path.
type DocumentFingerprint struct {
	DocumentPath string            `json:"document_path"`
	Format       string            `json:"format"`
	ContentHash  string            `json:"content_hash"`
	Language     string            `json:"language"`
	Structure    Structure         `json:"structure"`
	Keywords     []string          `json:"keywords"`
	Patterns     []string          `json:"patterns"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// HasKeyword reports whether the fingerprint contains the keyword
func (fp *DocumentFingerprint) HasKeyword(keyword string) bool {
	for _, k := range fp.Keywords {
		if k == keyword {
			return true
		}
	}
	return false
}

// HasPattern reports whether the fingerprint contains the named pattern
func (fp *DocumentFingerprint) HasPattern(name string) bool {
	for _, p := range fp.Patterns {
		if p == name {
			return true
		}
	}
	return false
}

// TemplateFingerprint is the comparable feature summary of one template.
// Cached per template id for the process lifetime; invalidated explicitly
// when the template definition changes.
type TemplateFingerprint struct {
	TemplateID        string    `json:"template_id"`
	SupportedFormats  []string  `json:"supported_formats"`
	ComplexityScore   float64   `json:"complexity_score"`
	ExpectedKeywords  []string  `json:"expected_keywords"`
	RequiredKeywords  []string  `json:"required_keywords"`
	ExpectedPatterns  []string  `json:"expected_patterns"`
	ExpectedStructure Structure `json:"expected_structure"`
	CreatedAt         time.Time `json:"created_at"`
}

package extract

import (
	"context"
	"time"

	"github.com/docintake/template-engine/internal/docsource"
	"github.com/docintake/template-engine/internal/template"
)

// ZoneExtractor is the boundary to the document-processing collaborator
// that reads text out of a geometric page region. The coordinate method
// is a thin orchestrator over this.
type ZoneExtractor interface {
	ExtractZone(ctx context.Context, doc *docsource.Document, zone template.ExtractionZone) (values []string, confidence float64, err error)
}

// OCRProvider is the boundary to an external OCR collaborator. When no
// provider is wired, OCR extraction fails explicitly rather than
// pretending to succeed.
type OCRProvider interface {
	Recognize(ctx context.Context, doc *docsource.Document, zones []template.ExtractionZone) (values []string, confidence float64, err error)
}

// FieldResult is the outcome of extracting one field
type FieldResult struct {
	FieldName  string                    `json:"field_name"`
	Success    bool                      `json:"success"`
	Value      string                    `json:"value,omitempty"`
	Values     []string                  `json:"values,omitempty"`
	Confidence float64                   `json:"confidence"`
	Method     template.ExtractionMethod `json:"method,omitempty"` // method that actually produced the value
	Valid      bool                      `json:"valid"`
	Errors     []string                  `json:"errors,omitempty"`
	Duration   time.Duration             `json:"duration"`
}

// TemplateResult is the aggregate outcome of extracting every field of a
// template from one document. Results are transient; persistence is the
// caller's concern.
type TemplateResult struct {
	TemplateID        string        `json:"template_id"`
	DocumentPath      string        `json:"document_path"`
	Success           bool          `json:"success"`
	OverallConfidence float64       `json:"overall_confidence"`
	Fields            []FieldResult `json:"fields"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
}

// FieldByName returns the result for a named field, or nil
func (r *TemplateResult) FieldByName(name string) *FieldResult {
	for i := range r.Fields {
		if r.Fields[i].FieldName == name {
			return &r.Fields[i]
		}
	}
	return nil
}

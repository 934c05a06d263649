package extract

import (
	"context"
	"sort"
	"time"

	"github.com/docintake/template-engine/internal/docsource"
	"github.com/docintake/template-engine/internal/errs"
	"github.com/docintake/template-engine/internal/fingerprint"
	"github.com/docintake/template-engine/internal/logging"
	"github.com/docintake/template-engine/internal/template"
)

const defaultValueConfidence = 0.1

// Pipeline extracts every field of a template from a document, applying
// each field's fallback chain, transformation, and validation. Fields are
// processed sequentially in declared order because confidence aggregation
// depends on deterministic processing.
type Pipeline struct {
	regexes *fingerprint.RegexCache
	zones   ZoneExtractor
	ocr     OCRProvider
	logger  *logging.Logger
	now     func() time.Time
}

// Option configures optional pipeline collaborators
type Option func(*Pipeline)

// WithZoneExtractor wires the coordinate-extraction collaborator
func WithZoneExtractor(z ZoneExtractor) Option {
	return func(p *Pipeline) { p.zones = z }
}

// WithOCRProvider wires the OCR collaborator
func WithOCRProvider(o OCRProvider) Option {
	return func(p *Pipeline) { p.ocr = o }
}

// NewPipeline creates an extraction pipeline. Zone extraction and OCR are
// optional collaborators; the corresponding methods fail explicitly when
// they are absent.
func NewPipeline(regexes *fingerprint.RegexCache, logger *logging.Logger, opts ...Option) *Pipeline {
	if regexes == nil {
		regexes = fingerprint.NewRegexCache()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	p := &Pipeline{
		regexes: regexes,
		logger:  logger.WithComponent("extraction_pipeline"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extract runs the full pipeline for every field of the template against
// the document. Per-field failures never abort sibling fields; the
// aggregate confidence reflects them instead.
func (p *Pipeline) Extract(ctx context.Context, doc *docsource.Document, tmpl *template.Template) (*TemplateResult, error) {
	start := p.now()
	result := &TemplateResult{
		TemplateID:   tmpl.ID,
		DocumentPath: doc.Path,
		StartedAt:    start,
		Fields:       make([]FieldResult, 0, len(tmpl.Fields)),
	}

	fields := make([]template.Field, len(tmpl.Fields))
	copy(fields, tmpl.Fields)
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].ProcessingOrder < fields[j].ProcessingOrder
	})

	for i := range fields {
		select {
		case <-ctx.Done():
			return nil, errs.Cancelled(ctx.Err())
		default:
		}
		result.Fields = append(result.Fields, p.extractField(ctx, doc, &fields[i]))
	}

	result.OverallConfidence = aggregateConfidence(fields, result.Fields)
	result.Success = result.OverallConfidence > 0
	result.Duration = p.now().Sub(start)
	return result, nil
}

// extractField is the per-field state machine: primary method, threshold
// gate, fallback methods, fallback patterns, transformation, validation,
// default substitution
func (p *Pipeline) extractField(ctx context.Context, doc *docsource.Document, field *template.Field) FieldResult {
	start := p.now()

	best := p.runMethod(ctx, field.Method, doc, field, nil)

	// Below-threshold primary results trigger the fallback chain; a
	// fallback replaces the current best only on strictly higher
	// confidence.
	if !best.success || best.confidence < field.ConfidenceThreshold {
		if field.Fallback != nil {
			for _, method := range field.Fallback.Methods {
				candidate := p.runMethod(ctx, method, doc, field, nil)
				if candidate.success && (!best.success || candidate.confidence > best.confidence) {
					best = candidate
				}
			}
			if !best.success && len(field.Fallback.Patterns) > 0 {
				candidate := p.extractText(doc, field, field.Fallback.Patterns)
				if candidate.success && (!best.success || candidate.confidence > best.confidence) {
					best = candidate
				}
			}
		}
	}

	result := FieldResult{
		FieldName:  field.Name,
		Success:    best.success,
		Values:     best.values,
		Confidence: best.confidence,
		Method:     best.method,
		Valid:      true,
	}
	if len(best.values) > 0 {
		result.Value = best.values[0]
	}
	if best.err != nil && !best.success {
		result.Errors = append(result.Errors, best.err.Error())
	}

	if result.Success {
		transformed, err := p.applyTransformation(result.Value, field.Transformation)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
		} else {
			result.Value = transformed
		}
	}

	p.validateResult(&result, field)

	if !result.Success && field.DefaultValue != "" {
		result.Success = true
		result.Valid = true
		result.Value = field.DefaultValue
		result.Values = []string{field.DefaultValue}
		result.Confidence = defaultValueConfidence
		result.Method = template.MethodDefault
	}

	if !result.Success {
		result.Confidence = 0
		p.logger.Debug().
			Str("field", field.Name).
			Strs("errors", result.Errors).
			Msg("field extraction failed")
	}

	result.Duration = p.now().Sub(start)
	return result
}

// aggregateConfidence is the weighted mean of field confidences with
// required fields weighted double. No successful field means 0.0.
func aggregateConfidence(fields []template.Field, results []FieldResult) float64 {
	anySuccess := false
	totalWeight := 0.0
	weighted := 0.0
	for i := range fields {
		weight := 1.0
		if fields[i].Required {
			weight = 2.0
		}
		totalWeight += weight
		if i < len(results) && results[i].Success {
			anySuccess = true
			weighted += results[i].Confidence * weight
		}
	}
	if !anySuccess || totalWeight == 0 {
		return 0.0
	}
	return weighted / totalWeight
}

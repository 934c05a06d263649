package extract

import (
	"context"
	"sort"
	"strings"

	"github.com/docintake/template-engine/internal/docsource"
	"github.com/docintake/template-engine/internal/errs"
	"github.com/docintake/template-engine/internal/template"
)

const (
	confidencePatternHit  = 0.9
	confidenceKeywordHit  = 0.7
	confidenceMetadataHit = 0.8
	keywordWindow         = 200
)

// typeFollowPatterns are applied to the text right after a keyword hit,
// selected by field type
var typeFollowPatterns = map[template.FieldType]string{
	template.FieldTypeUsername:     `[:\s#=-]*([A-Za-z][A-Za-z0-9._-]{2,31})`,
	template.FieldTypeTicketNumber: `[:\s#=-]*([A-Z]{2,10}-\d{1,8})`,
	template.FieldTypeDate:         `[:\s#=-]*(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4})`,
	template.FieldTypeEmail:        `[:\s#=-]*([A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})`,
	template.FieldTypeNumber:       `[:\s#=-]*(\d[\d,.]*)`,
}

const genericFollowPattern = `[:\s#=-]*(.{1,100})`

// methodResult is the raw outcome of one extraction method attempt,
// before transformation and validation
type methodResult struct {
	success    bool
	values     []string
	confidence float64
	method     template.ExtractionMethod
	err        error
}

// runMethod dispatches on the closed extraction-method set. Adding a
// method requires a case here, keeping the fallback chain exhaustive.
func (p *Pipeline) runMethod(ctx context.Context, method template.ExtractionMethod, doc *docsource.Document, field *template.Field, patterns []string) methodResult {
	switch method {
	case template.MethodText:
		return p.extractText(doc, field, patterns)
	case template.MethodCoordinates:
		return p.extractCoordinates(ctx, doc, field)
	case template.MethodOCR:
		return p.extractOCR(ctx, doc, field)
	case template.MethodMetadata:
		return p.extractMetadata(doc, field)
	case template.MethodHybrid:
		return p.extractHybrid(ctx, doc, field)
	default:
		return methodResult{
			method: method,
			err:    errs.Extractionf("field %q: unsupported extraction method %q", field.Name, method),
		}
	}
}

// extractText runs every configured regex against the document text and,
// when none hit, falls back to keyword proximity search with a
// field-type-specific follow pattern
func (p *Pipeline) extractText(doc *docsource.Document, field *template.Field, patterns []string) methodResult {
	if patterns == nil {
		patterns = field.TextPatterns
	}

	values := collectPatternValues(p, doc.Text, patterns)
	if len(values) > 0 {
		return methodResult{
			success:    true,
			values:     values,
			confidence: confidencePatternHit,
			method:     template.MethodText,
		}
	}

	values = p.keywordSearch(doc.Text, field)
	if len(values) > 0 {
		return methodResult{
			success:    true,
			values:     values,
			confidence: confidenceKeywordHit,
			method:     template.MethodText,
		}
	}

	return methodResult{
		method: template.MethodText,
		err:    errs.Extractionf("field %q: no pattern or keyword hit", field.Name),
	}
}

func collectPatternValues(p *Pipeline, text string, patterns []string) []string {
	var values []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		re, err := p.regexes.GetInsensitive(pattern)
		if err != nil {
			continue
		}
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := m[0]
			if len(m) > 1 && m[1] != "" {
				v = m[1]
			}
			v = strings.TrimSpace(v)
			if v != "" && !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
	}
	return values
}

// keywordSearch locates each keyword's first case-insensitive occurrence
// and applies a field-type-specific pattern to the text following it
func (p *Pipeline) keywordSearch(text string, field *template.Field) []string {
	follow, ok := typeFollowPatterns[field.Type]
	if !ok {
		follow = genericFollowPattern
	}
	re, err := p.regexes.GetInsensitive("^" + follow)
	if err != nil {
		return nil
	}

	lower := strings.ToLower(text)
	var values []string
	seen := make(map[string]bool)
	for _, keyword := range field.Keywords {
		idx := strings.Index(lower, strings.ToLower(keyword))
		if idx < 0 {
			continue
		}
		after := text[idx+len(keyword):]
		if len(after) > keywordWindow {
			after = after[:keywordWindow]
		}
		m := re.FindStringSubmatch(after)
		if m == nil {
			continue
		}
		v := strings.TrimSpace(m[1])
		// Generic captures run to end of line at most.
		if cut := strings.IndexAny(v, "\r\n"); cut >= 0 {
			v = strings.TrimSpace(v[:cut])
		}
		if v != "" && !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	return values
}

// extractCoordinates iterates the field's active zones in priority order
// and aggregates distinct values; confidence is the max across zones
func (p *Pipeline) extractCoordinates(ctx context.Context, doc *docsource.Document, field *template.Field) methodResult {
	if p.zones == nil {
		return methodResult{
			method: template.MethodCoordinates,
			err:    errs.Extractionf("field %q: no zone extractor available", field.Name),
		}
	}

	active := make([]template.ExtractionZone, 0, len(field.Zones))
	for _, z := range field.Zones {
		if z.Enabled {
			active = append(active, z)
		}
	}
	if len(active) == 0 {
		return methodResult{
			method: template.MethodCoordinates,
			err:    errs.Extractionf("field %q: no active extraction zones", field.Name),
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority > active[j].Priority })

	var values []string
	seen := make(map[string]bool)
	best := 0.0
	var lastErr error
	for _, zone := range active {
		zoneValues, confidence, err := p.zones.ExtractZone(ctx, doc, zone)
		if err != nil {
			lastErr = err
			continue
		}
		for _, v := range zoneValues {
			v = strings.TrimSpace(v)
			if v != "" && !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
		if confidence > best {
			best = confidence
		}
	}

	if len(values) == 0 {
		err := errs.Extractionf("field %q: no zone produced a value", field.Name)
		if lastErr != nil {
			err = errs.Wrap(lastErr, "EXTRACTION_FAILURE", "zone extraction failed for field "+field.Name)
		}
		return methodResult{method: template.MethodCoordinates, err: err}
	}
	return methodResult{
		success:    true,
		values:     values,
		confidence: best,
		method:     template.MethodCoordinates,
	}
}

// extractOCR delegates to the OCR collaborator; a missing provider is an
// explicit failure, never a silent success
func (p *Pipeline) extractOCR(ctx context.Context, doc *docsource.Document, field *template.Field) methodResult {
	if p.ocr == nil {
		return methodResult{
			method: template.MethodOCR,
			err:    errs.Extractionf("field %q: OCR provider unavailable", field.Name),
		}
	}

	values, confidence, err := p.ocr.Recognize(ctx, doc, field.Zones)
	if err != nil {
		return methodResult{
			method: template.MethodOCR,
			err:    errs.Wrap(err, "EXTRACTION_FAILURE", "OCR failed for field "+field.Name),
		}
	}
	if len(values) == 0 {
		return methodResult{
			method: template.MethodOCR,
			err:    errs.Extractionf("field %q: OCR produced no values", field.Name),
		}
	}
	return methodResult{
		success:    true,
		values:     values,
		confidence: confidence,
		method:     template.MethodOCR,
	}
}

// metadataSources maps field types onto the core metadata slots they can
// be filled from
func metadataSources(doc *docsource.Document, ft template.FieldType) []string {
	switch ft {
	case template.FieldTypeUsername:
		return []string{doc.Author, doc.Creator}
	case template.FieldTypeDate:
		var out []string
		if doc.DocumentDate != nil {
			out = append(out, doc.DocumentDate.Format("2006-01-02"))
		}
		if doc.CreatedDate != nil {
			out = append(out, doc.CreatedDate.Format("2006-01-02"))
		}
		return out
	case template.FieldTypeText:
		return []string{doc.Title, doc.Subject}
	default:
		return nil
	}
}

// extractMetadata matches core metadata slots by field type, then falls
// back to custom/extracted property lookup by keyword substring
func (p *Pipeline) extractMetadata(doc *docsource.Document, field *template.Field) methodResult {
	var values []string
	seen := make(map[string]bool)
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v != "" && !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}

	for _, v := range metadataSources(doc, field.Type) {
		add(v)
	}
	coreCount := len(values)

	for _, props := range []map[string]string{doc.CustomProperties, doc.ExtractedProperties} {
		for key, v := range props {
			lowerKey := strings.ToLower(key)
			for _, kw := range field.Keywords {
				if strings.Contains(lowerKey, strings.ToLower(kw)) {
					add(v)
					break
				}
			}
		}
	}

	if len(values) == 0 {
		return methodResult{
			method: template.MethodMetadata,
			err:    errs.Extractionf("field %q: no matching metadata", field.Name),
		}
	}
	// Core slots keep their type-mapped priority order; custom-property
	// hits come from map iteration and are sorted for determinism.
	sort.Strings(values[coreCount:])
	return methodResult{
		success:    true,
		values:     values,
		confidence: confidenceMetadataHit,
		method:     template.MethodMetadata,
	}
}

// extractHybrid runs text, coordinate, and metadata extraction and keeps
// the single highest-confidence success, recording the method that
// actually produced it
func (p *Pipeline) extractHybrid(ctx context.Context, doc *docsource.Document, field *template.Field) methodResult {
	candidates := []methodResult{
		p.extractText(doc, field, nil),
		p.extractCoordinates(ctx, doc, field),
		p.extractMetadata(doc, field),
	}

	best := methodResult{
		method: template.MethodHybrid,
		err:    errs.Extractionf("field %q: no hybrid sub-method succeeded", field.Name),
	}
	for _, c := range candidates {
		if c.success && (!best.success || c.confidence > best.confidence) {
			best = c
		}
	}
	return best
}

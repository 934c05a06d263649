package fingerprint

import (
	"sort"
	"sync"
	"time"

	"github.com/docintake/template-engine/internal/template"
)

const (
	complexityBase       = 0.1
	complexityPerPattern = 0.05
	complexityPerZone    = 0.1
	complexityCap        = 10.0
	defaultExpectedPages = 1
)

// methodComplexityWeights rank extraction methods by how expensive and
// error-prone they are
var methodComplexityWeights = map[template.ExtractionMethod]float64{
	template.MethodText:        0.1,
	template.MethodCoordinates: 0.3,
	template.MethodOCR:         0.5,
	template.MethodMetadata:    0.2,
	template.MethodHybrid:      0.7,
}

// TemplateFingerprinter derives and caches the comparable feature set of
// templates. Entries live for the process lifetime and are invalidated
// explicitly on template mutation, never by time.
type TemplateFingerprinter struct {
	mu    sync.RWMutex
	cache map[string]*TemplateFingerprint
	now   func() time.Time
}

// NewTemplateFingerprinter creates an empty template fingerprinter
func NewTemplateFingerprinter() *TemplateFingerprinter {
	return &TemplateFingerprinter{
		cache: make(map[string]*TemplateFingerprint),
		now:   time.Now,
	}
}

// Fingerprint derives the feature set of a template, reusing the cached
// fingerprint when one exists for the template id
func (f *TemplateFingerprinter) Fingerprint(t *template.Template) *TemplateFingerprint {
	f.mu.RLock()
	fp, ok := f.cache[t.ID]
	f.mu.RUnlock()
	if ok {
		return fp
	}

	fp = f.compute(t)

	f.mu.Lock()
	f.cache[t.ID] = fp
	f.mu.Unlock()
	return fp
}

// Invalidate drops the cached fingerprint for a template id. Must be
// called whenever the template definition changes.
func (f *TemplateFingerprinter) Invalidate(templateID string) {
	f.mu.Lock()
	delete(f.cache, templateID)
	f.mu.Unlock()
}

func (f *TemplateFingerprinter) compute(t *template.Template) *TemplateFingerprint {
	expectedKeywords := make(map[string]bool)
	requiredKeywords := make(map[string]bool)
	expectedPatterns := make(map[string]bool)

	usesCoordinates := false
	usesOCR := false
	targetsIdentity := false

	for i := range t.Fields {
		fld := &t.Fields[i]
		for _, k := range fld.Keywords {
			expectedKeywords[k] = true
			if fld.Required {
				requiredKeywords[k] = true
			}
		}
		for _, p := range fld.TextPatterns {
			expectedPatterns[p] = true
		}

		switch fld.Method {
		case template.MethodCoordinates:
			usesCoordinates = true
		case template.MethodOCR:
			usesOCR = true
		case template.MethodHybrid:
			usesCoordinates = true
		}
		if fld.Type == template.FieldTypeUsername || fld.Type == template.FieldTypeEmail {
			targetsIdentity = true
		}
	}

	layout := LayoutStandard
	if targetsIdentity {
		layout = LayoutForm
	}

	return &TemplateFingerprint{
		TemplateID:       t.ID,
		SupportedFormats: append([]string(nil), t.SupportedFormats...),
		ComplexityScore:  complexityScore(t),
		ExpectedKeywords: sortedKeys(expectedKeywords),
		RequiredKeywords: sortedKeys(requiredKeywords),
		ExpectedPatterns: sortedKeys(expectedPatterns),
		ExpectedStructure: Structure{
			PageCount: defaultExpectedPages,
			HasTables: usesCoordinates,
			IsScanned: usesOCR,
			Layout:    layout,
		},
		CreatedAt: f.now(),
	}
}

// complexityScore sums a per-field base cost, the field's extraction
// method weight, and per-pattern/per-zone increments, capped at 10.0
func complexityScore(t *template.Template) float64 {
	score := 0.0
	for i := range t.Fields {
		fld := &t.Fields[i]
		score += complexityBase
		score += methodComplexityWeights[fld.Method]
		score += complexityPerPattern * float64(len(fld.TextPatterns))
		score += complexityPerZone * float64(len(fld.Zones))
	}
	if score > complexityCap {
		score = complexityCap
	}
	return score
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

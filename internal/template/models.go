package template

import (
	"time"
)

// FieldType represents the semantic type of an extracted field
type FieldType string

const (
	FieldTypeText         FieldType = "text"
	FieldTypeUsername     FieldType = "username"
	FieldTypeDate         FieldType = "date"
	FieldTypeTicketNumber FieldType = "ticket_number"
	FieldTypeEmail        FieldType = "email"
	FieldTypeNumber       FieldType = "number"
)

// IsValid checks if the field type is valid
func (ft FieldType) IsValid() bool {
	switch ft {
	case FieldTypeText, FieldTypeUsername, FieldTypeDate,
		FieldTypeTicketNumber, FieldTypeEmail, FieldTypeNumber:
		return true
	default:
		return false
	}
}

// ExtractionMethod identifies how a field value is pulled from a document.
// The extraction pipeline dispatches on this as a closed set; adding a
// method means adding a handler.
type ExtractionMethod string

const (
	MethodText        ExtractionMethod = "text_pattern"
	MethodCoordinates ExtractionMethod = "coordinate_zone"
	MethodOCR         ExtractionMethod = "ocr"
	MethodMetadata    ExtractionMethod = "metadata"
	MethodHybrid      ExtractionMethod = "hybrid"
	MethodDefault     ExtractionMethod = "default"
)

// IsValid checks if the extraction method is valid
func (m ExtractionMethod) IsValid() bool {
	switch m {
	case MethodText, MethodCoordinates, MethodOCR, MethodMetadata, MethodHybrid, MethodDefault:
		return true
	default:
		return false
	}
}

// ZoneType represents the kind of extraction a zone performs
type ZoneType string

const (
	ZoneTypeText ZoneType = "text"
	ZoneTypeOCR  ZoneType = "ocr"
)

// ExtractionZone is a geometric region on a page associated with a field
type ExtractionZone struct {
	X                float64  `json:"x"`
	Y                float64  `json:"y"`
	Width            float64  `json:"width"`
	Height           float64  `json:"height"`
	PageNumber       int      `json:"page_number"`
	CoordinateSystem string   `json:"coordinate_system"` // points, pixels, relative
	Type             ZoneType `json:"type"`
	Priority         int      `json:"priority"`
	ToleranceX       float64  `json:"tolerance_x"`
	ToleranceY       float64  `json:"tolerance_y"`
	Enabled          bool     `json:"enabled"`
}

// Transformation describes post-extraction value normalization.
// Stored as a JSON sub-document inside the template record.
type Transformation struct {
	SchemaVersion    int    `json:"schema_version"`
	Trim             bool   `json:"trim"`
	Case             string `json:"case,omitempty"` // upper, lower, or empty for unchanged
	StripSpecial     bool   `json:"strip_special"`
	DateInputFormat  string `json:"date_input_format,omitempty"`
	DateOutputFormat string `json:"date_output_format,omitempty"`
}

// FallbackOptions declares the ordered fallback chain tried when the
// primary extraction method fails or is under-confident
type FallbackOptions struct {
	Methods  []ExtractionMethod `json:"methods,omitempty"`
	Patterns []string           `json:"patterns,omitempty"`
}

// ValidationRules constrains an extracted value. Violations of MinLength,
// MaxLength, or Pattern mark the result invalid and cap its confidence;
// a required field with an empty value fails outright.
type ValidationRules struct {
	SchemaVersion int    `json:"schema_version"`
	MinLength     int    `json:"min_length,omitempty"`
	MaxLength     int    `json:"max_length,omitempty"`
	Pattern       string `json:"pattern,omitempty"`
}

// Field is a single extractable value declared by a template
type Field struct {
	Name                string           `json:"name" validate:"required"`
	Type                FieldType        `json:"type" validate:"required"`
	Method              ExtractionMethod `json:"method" validate:"required"`
	TextPatterns        []string         `json:"text_patterns,omitempty"`
	Keywords            []string         `json:"keywords,omitempty"`
	Required            bool             `json:"required"`
	ProcessingOrder     int              `json:"processing_order"`
	ConfidenceThreshold float64          `json:"confidence_threshold" validate:"gte=0,lte=1"`
	DefaultValue        string           `json:"default_value,omitempty"`
	Transformation      *Transformation  `json:"transformation,omitempty"`
	Fallback            *FallbackOptions `json:"fallback,omitempty"`
	Validation          *ValidationRules `json:"validation,omitempty"`
	Zones               []ExtractionZone `json:"zones,omitempty"`
}

// MatchingCriteria configures how a template is matched against documents
type MatchingCriteria struct {
	MinConfidence     float64       `json:"min_confidence" validate:"gte=0,lte=1"`
	AutoApply         bool          `json:"auto_apply"`
	AllowPartialMatch bool          `json:"allow_partial_match"`
	Weights           *ScoreWeights `json:"weights,omitempty"`
}

// ScoreWeights holds the per-factor weights of the confidence aggregate.
// The six weights must sum to 1.0.
type ScoreWeights struct {
	Format    float64 `json:"format"`
	Keyword   float64 `json:"keyword"`
	Pattern   float64 `json:"pattern"`
	Structure float64 `json:"structure"`
	Metadata  float64 `json:"metadata"`
	Filename  float64 `json:"filename"`
}

// DefaultScoreWeights returns the default factor weights
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Format:    0.15,
		Keyword:   0.30,
		Pattern:   0.20,
		Structure: 0.15,
		Metadata:  0.10,
		Filename:  0.10,
	}
}

// Sum returns the total of all factor weights
func (w ScoreWeights) Sum() float64 {
	return w.Format + w.Keyword + w.Pattern + w.Structure + w.Metadata + w.Filename
}

// UsageStats tracks how a template has performed in production
type UsageStats struct {
	TotalUses             int           `json:"total_uses"`
	SuccessfulExtractions int           `json:"successful_extractions"`
	FailedExtractions     int           `json:"failed_extractions"`
	AverageExtractionTime time.Duration `json:"average_extraction_time"`
	LastUsedAt            *time.Time    `json:"last_used_at,omitempty"`
}

// RecordUse folds one extraction outcome into the running statistics
func (s *UsageStats) RecordUse(success bool, elapsed time.Duration, at time.Time) {
	if success {
		s.SuccessfulExtractions++
	} else {
		s.FailedExtractions++
	}
	// Running average over all uses, including the one being recorded.
	total := s.AverageExtractionTime*time.Duration(s.TotalUses) + elapsed
	s.TotalUses++
	s.AverageExtractionTime = total / time.Duration(s.TotalUses)
	s.LastUsedAt = &at
}

// Template declares how to recognize a class of documents and which
// fields to extract from them
type Template struct {
	ID               string           `json:"id" validate:"required"`
	Name             string           `json:"name" validate:"required"`
	Version          string           `json:"version"`
	Category         string           `json:"category"`
	Tags             []string         `json:"tags,omitempty"`
	SupportedFormats []string         `json:"supported_formats" validate:"min=1"`
	Fields           []Field          `json:"fields" validate:"min=1,dive"`
	Matching         MatchingCriteria `json:"matching"`
	Active           bool             `json:"active"`
	Stats            UsageStats       `json:"stats"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// FieldByName returns the field with the given name, or nil
func (t *Template) FieldByName(name string) *Field {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// SupportsFormat reports whether the template accepts the given format
func (t *Template) SupportsFormat(format string) bool {
	for _, f := range t.SupportedFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the template. The inheritance resolver
// mutates the copy, never the stored definition.
func (t *Template) Clone() *Template {
	out := *t
	out.Tags = append([]string(nil), t.Tags...)
	out.SupportedFormats = append([]string(nil), t.SupportedFormats...)
	out.Fields = make([]Field, len(t.Fields))
	for i, f := range t.Fields {
		out.Fields[i] = cloneField(f)
	}
	if t.Matching.Weights != nil {
		w := *t.Matching.Weights
		out.Matching.Weights = &w
	}
	if t.Stats.LastUsedAt != nil {
		ts := *t.Stats.LastUsedAt
		out.Stats.LastUsedAt = &ts
	}
	return &out
}

func cloneField(f Field) Field {
	out := f
	out.TextPatterns = append([]string(nil), f.TextPatterns...)
	out.Keywords = append([]string(nil), f.Keywords...)
	out.Zones = append([]ExtractionZone(nil), f.Zones...)
	if f.Transformation != nil {
		tr := *f.Transformation
		out.Transformation = &tr
	}
	if f.Fallback != nil {
		fb := FallbackOptions{
			Methods:  append([]ExtractionMethod(nil), f.Fallback.Methods...),
			Patterns: append([]string(nil), f.Fallback.Patterns...),
		}
		out.Fallback = &fb
	}
	if f.Validation != nil {
		v := *f.Validation
		out.Validation = &v
	}
	return out
}

// CloneField returns a deep copy of a single field
func CloneField(f Field) Field {
	return cloneField(f)
}

// InheritanceMode controls which halves of a parent template are applied
type InheritanceMode string

const (
	ModeFull         InheritanceMode = "full"
	ModeFieldsOnly   InheritanceMode = "fields_only"
	ModeSettingsOnly InheritanceMode = "settings_only"
	ModeCustom       InheritanceMode = "custom"
)

// IsValid checks if the inheritance mode is valid
func (m InheritanceMode) IsValid() bool {
	switch m {
	case ModeFull, ModeFieldsOnly, ModeSettingsOnly, ModeCustom:
		return true
	default:
		return false
	}
}

// OverrideAction controls how a single parent field is applied to the child
type OverrideAction string

const (
	ActionInherit  OverrideAction = "inherit"
	ActionOverride OverrideAction = "override"
	ActionMerge    OverrideAction = "merge"
	ActionRemove   OverrideAction = "remove"
)

// FieldOverride declares a per-field inheritance action and, for merges,
// which sub-properties to union onto the child field
type FieldOverride struct {
	Action          OverrideAction `json:"action"`
	MergePatterns   bool           `json:"merge_patterns"`
	MergeKeywords   bool           `json:"merge_keywords"`
	MergeZones      bool           `json:"merge_zones"`
	MergeValidation bool           `json:"merge_validation"`
}

// InheritanceConfig is the JSON sub-document of an inheritance edge
type InheritanceConfig struct {
	SchemaVersion         int                      `json:"schema_version"`
	Mode                  InheritanceMode          `json:"mode"`
	FieldOverrides        map[string]FieldOverride `json:"field_overrides,omitempty"`
	AllowFieldAddition    bool                     `json:"allow_field_addition"`
	AllowFieldRemoval     bool                     `json:"allow_field_removal"`
	AllowFieldModify      bool                     `json:"allow_field_modify"`
	AllowSettingsOverride bool                     `json:"allow_settings_override"`
	Priority              int                      `json:"priority"`
}

// DefaultInheritanceConfig returns a permissive full-inheritance config
func DefaultInheritanceConfig() InheritanceConfig {
	return InheritanceConfig{
		SchemaVersion:         1,
		Mode:                  ModeFull,
		AllowFieldAddition:    true,
		AllowFieldRemoval:     true,
		AllowFieldModify:      true,
		AllowSettingsOverride: true,
	}
}

// InheritanceRelationship is a directed parent -> child edge in the
// template graph. The graph must stay acyclic; edge creation validates.
type InheritanceRelationship struct {
	ID        string            `json:"id"`
	ChildID   string            `json:"child_id" validate:"required"`
	ParentID  string            `json:"parent_id" validate:"required"`
	Config    InheritanceConfig `json:"config"`
	Validated bool              `json:"validated"`
	CreatedAt time.Time         `json:"created_at"`
}

// FieldProvenance records where a resolved field came from
type FieldProvenance string

const (
	ProvenanceCurrent   FieldProvenance = "current"
	ProvenanceInherited FieldProvenance = "inherited"
	ProvenanceMerged    FieldProvenance = "merged"
)

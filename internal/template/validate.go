package template

import (
	"math"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/docintake/template-engine/internal/errs"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

const weightSumTolerance = 1e-6

// Validate checks a template for structural problems. Called on every
// create/update before the record is persisted; a failure here is a hard
// error with no partial effect.
func Validate(t *Template) error {
	if t == nil {
		return errs.Validation("template is nil")
	}

	if err := validate.Struct(t); err != nil {
		return errs.Wrap(errs.ErrValidation, "VALIDATION_FAILURE", err.Error())
	}

	seen := make(map[string]bool, len(t.Fields))
	for i := range t.Fields {
		f := &t.Fields[i]
		if seen[f.Name] {
			return errs.Validationf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = true

		if err := validateField(f); err != nil {
			return err
		}
	}

	if w := t.Matching.Weights; w != nil {
		if math.Abs(w.Sum()-1.0) > weightSumTolerance {
			return errs.Validationf("matching weights sum to %.4f, want 1.0", w.Sum())
		}
	}

	return nil
}

func validateField(f *Field) error {
	if !f.Type.IsValid() {
		return errs.Validationf("field %q has unknown type %q", f.Name, f.Type)
	}
	if !f.Method.IsValid() {
		return errs.Validationf("field %q has unknown extraction method %q", f.Name, f.Method)
	}

	for _, p := range f.TextPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return errs.Validationf("field %q has invalid pattern %q: %v", f.Name, p, err)
		}
	}
	if f.Fallback != nil {
		for _, m := range f.Fallback.Methods {
			if !m.IsValid() {
				return errs.Validationf("field %q has unknown fallback method %q", f.Name, m)
			}
		}
		for _, p := range f.Fallback.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return errs.Validationf("field %q has invalid fallback pattern %q: %v", f.Name, p, err)
			}
		}
	}
	if f.Validation != nil && f.Validation.Pattern != "" {
		if _, err := regexp.Compile(f.Validation.Pattern); err != nil {
			return errs.Validationf("field %q has invalid validation pattern %q: %v", f.Name, f.Validation.Pattern, err)
		}
	}

	if f.Method == MethodCoordinates && len(f.Zones) == 0 {
		return errs.Validationf("field %q uses coordinate extraction but declares no zones", f.Name)
	}

	return nil
}

// ValidateRelationship checks an inheritance edge before persistence.
// Cycle detection is the resolver's job; this covers local shape only.
func ValidateRelationship(rel *InheritanceRelationship) error {
	if rel == nil {
		return errs.Validation("relationship is nil")
	}
	if err := validate.Struct(rel); err != nil {
		return errs.Wrap(errs.ErrValidation, "VALIDATION_FAILURE", err.Error())
	}
	if rel.ChildID == rel.ParentID {
		return errs.Validationf("template %q cannot inherit from itself", rel.ChildID)
	}
	if !rel.Config.Mode.IsValid() {
		return errs.Validationf("unknown inheritance mode %q", rel.Config.Mode)
	}
	for name, ov := range rel.Config.FieldOverrides {
		switch ov.Action {
		case ActionInherit, ActionOverride, ActionMerge, ActionRemove:
		default:
			return errs.Validationf("field override %q has unknown action %q", name, ov.Action)
		}
	}
	return nil
}

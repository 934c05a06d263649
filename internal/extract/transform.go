package extract

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/docintake/template-engine/internal/template"
)

const invalidConfidenceCap = 0.5

// applyTransformation normalizes an extracted value according to the
// field's transformation settings
func (p *Pipeline) applyTransformation(value string, tr *template.Transformation) (string, error) {
	if tr == nil {
		return value, nil
	}

	if tr.Trim {
		value = strings.TrimSpace(value)
	}

	switch strings.ToLower(tr.Case) {
	case "upper":
		value = strings.ToUpper(value)
	case "lower":
		value = strings.ToLower(value)
	}

	if tr.StripSpecial {
		var b strings.Builder
		for _, r := range value {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
				b.WriteRune(r)
			}
		}
		value = b.String()
	}

	if tr.DateInputFormat != "" && tr.DateOutputFormat != "" {
		parsed, err := time.Parse(tr.DateInputFormat, strings.TrimSpace(value))
		if err != nil {
			return value, fmt.Errorf("date reformat failed for %q: %w", value, err)
		}
		value = parsed.Format(tr.DateOutputFormat)
	}

	return value, nil
}

// validateResult applies the field's validation rules to a result that
// already holds a value. Required-but-empty is a hard failure. Length and
// pattern violations mark the result invalid and cap its confidence, but
// the value is kept and the errors reported rather than dropped.
func (p *Pipeline) validateResult(result *FieldResult, field *template.Field) {
	if result.Value == "" {
		if field.Required {
			result.Success = false
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("required field %q is empty", field.Name))
		}
		return
	}

	rules := field.Validation
	if rules == nil {
		return
	}

	var violations []string
	if rules.MinLength > 0 && len(result.Value) < rules.MinLength {
		violations = append(violations, fmt.Sprintf("value shorter than %d characters", rules.MinLength))
	}
	if rules.MaxLength > 0 && len(result.Value) > rules.MaxLength {
		violations = append(violations, fmt.Sprintf("value longer than %d characters", rules.MaxLength))
	}
	if rules.Pattern != "" {
		re, err := p.regexes.Get(rules.Pattern)
		if err != nil {
			violations = append(violations, fmt.Sprintf("invalid validation pattern: %v", err))
		} else if !re.MatchString(result.Value) {
			violations = append(violations, fmt.Sprintf("value does not match pattern %q", rules.Pattern))
		}
	}

	if len(violations) > 0 {
		result.Valid = false
		result.Errors = append(result.Errors, violations...)
		if result.Confidence > invalidConfidenceCap {
			result.Confidence = invalidConfidenceCap
		}
	}
}

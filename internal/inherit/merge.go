package inherit

import (
	"github.com/docintake/template-engine/internal/template"
)

// applySettingInheritance fills unset or default child properties from
// the parent and unions the tag and format lists
func (r *Resolver) applySettingInheritance(resolved *ResolvedTemplate, parent *template.Template) {
	child := resolved.Template

	if child.Category == "" && parent.Category != "" {
		child.Category = parent.Category
		resolved.Settings["category"] = template.ProvenanceInherited
	}
	if child.Matching.MinConfidence == 0 && parent.Matching.MinConfidence != 0 {
		child.Matching.MinConfidence = parent.Matching.MinConfidence
		resolved.Settings["min_confidence"] = template.ProvenanceInherited
	}
	if !child.Matching.AutoApply && parent.Matching.AutoApply {
		child.Matching.AutoApply = true
		resolved.Settings["auto_apply"] = template.ProvenanceInherited
	}
	if !child.Matching.AllowPartialMatch && parent.Matching.AllowPartialMatch {
		child.Matching.AllowPartialMatch = true
		resolved.Settings["allow_partial_match"] = template.ProvenanceInherited
	}

	if merged, changed := unionStrings(child.Tags, parent.Tags); changed {
		child.Tags = merged
		resolved.Settings["tags"] = template.ProvenanceMerged
	}
	if merged, changed := unionStrings(child.SupportedFormats, parent.SupportedFormats); changed {
		child.SupportedFormats = merged
		resolved.Settings["supported_formats"] = template.ProvenanceMerged
	}
}

// applyFieldInheritance applies the per-field override action for every
// parent field
func (r *Resolver) applyFieldInheritance(resolved *ResolvedTemplate, parent *template.Template, cfg template.InheritanceConfig) {
	child := resolved.Template

	for i := range parent.Fields {
		parentField := parent.Fields[i]

		action := template.ActionInherit
		if override, ok := cfg.FieldOverrides[parentField.Name]; ok {
			action = override.Action
		}

		existing := child.FieldByName(parentField.Name)

		switch action {
		case template.ActionInherit:
			if existing == nil && cfg.AllowFieldAddition {
				child.Fields = append(child.Fields, template.CloneField(parentField))
				resolved.Provenance[parentField.Name] = template.ProvenanceInherited
			}

		case template.ActionOverride:
			// Child's own definition wins; nothing to do.

		case template.ActionMerge:
			if existing == nil {
				if cfg.AllowFieldAddition {
					child.Fields = append(child.Fields, template.CloneField(parentField))
					resolved.Provenance[parentField.Name] = template.ProvenanceInherited
				}
				continue
			}
			if cfg.AllowFieldModify {
				override := cfg.FieldOverrides[parentField.Name]
				if mergeField(existing, &parentField, override) {
					resolved.Provenance[parentField.Name] = template.ProvenanceMerged
				}
			}

		case template.ActionRemove:
			if existing != nil && cfg.AllowFieldRemoval {
				removeField(child, parentField.Name)
				delete(resolved.Provenance, parentField.Name)
			}
		}
	}
}

// mergeField unions the override's selected sub-properties from the
// parent field onto the child field; returns whether anything changed
func mergeField(child, parent *template.Field, override template.FieldOverride) bool {
	changed := false

	if override.MergePatterns {
		if merged, did := unionStrings(child.TextPatterns, parent.TextPatterns); did {
			child.TextPatterns = merged
			changed = true
		}
	}
	if override.MergeKeywords {
		if merged, did := unionStrings(child.Keywords, parent.Keywords); did {
			child.Keywords = merged
			changed = true
		}
	}
	if override.MergeZones {
		if merged, did := unionZones(child.Zones, parent.Zones); did {
			child.Zones = merged
			changed = true
		}
	}
	if override.MergeValidation && child.Validation == nil && parent.Validation != nil {
		v := *parent.Validation
		child.Validation = &v
		changed = true
	}
	return changed
}

func removeField(t *template.Template, name string) {
	out := t.Fields[:0]
	for _, f := range t.Fields {
		if f.Name != name {
			out = append(out, f)
		}
	}
	t.Fields = out
}

// unionStrings appends items of extra that base lacks, preserving base
// order; reports whether anything was added
func unionStrings(base, extra []string) ([]string, bool) {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	changed := false
	out := base
	for _, s := range extra {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
			changed = true
		}
	}
	return out, changed
}

func unionZones(base, extra []template.ExtractionZone) ([]template.ExtractionZone, bool) {
	type zoneKey struct {
		x, y, w, h float64
		page       int
	}
	seen := make(map[zoneKey]bool, len(base))
	for _, z := range base {
		seen[zoneKey{z.X, z.Y, z.Width, z.Height, z.PageNumber}] = true
	}
	changed := false
	out := base
	for _, z := range extra {
		key := zoneKey{z.X, z.Y, z.Width, z.Height, z.PageNumber}
		if !seen[key] {
			seen[key] = true
			out = append(out, z)
			changed = true
		}
	}
	return out, changed
}

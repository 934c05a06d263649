package inherit

import (
	"context"
	"sort"

	"github.com/docintake/template-engine/internal/errs"
	"github.com/docintake/template-engine/internal/logging"
	"github.com/docintake/template-engine/internal/template"
)

// maxChainDepth is a hard guard against cycles that slipped past edge
// validation
const maxChainDepth = 100

// TemplateReader is the read surface the resolver needs from the
// template store
type TemplateReader interface {
	GetTemplate(ctx context.Context, id string) (*template.Template, error)
	GetParentRelationships(ctx context.Context, childID string) ([]template.InheritanceRelationship, error)
	GetChildRelationships(ctx context.Context, parentID string) ([]template.InheritanceRelationship, error)
}

// ResolvedTemplate is a template with its full parent chain applied.
// Provenance records, per field, whether the value is the template's own,
// inherited, or merged.
type ResolvedTemplate struct {
	Template   *template.Template                  `json:"template"`
	Chain      []string                            `json:"chain"` // root-first, resolved template last
	Provenance map[string]template.FieldProvenance `json:"provenance"`
	Settings   map[string]template.FieldProvenance `json:"settings,omitempty"`
}

// Resolver walks the template inheritance graph, validates new edges
// against cycles, and computes resolved templates
type Resolver struct {
	store  TemplateReader
	logger *logging.Logger
}

// NewResolver creates a resolver over the given template store
func NewResolver(store TemplateReader, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Resolver{
		store:  store,
		logger: logger.WithComponent("inheritance_resolver"),
	}
}

// ValidateEdge checks that adding parentID -> childID keeps the graph
// acyclic. Self-references and edges that would close a loop are
// rejected; the caller persists the edge only after this passes.
func (r *Resolver) ValidateEdge(ctx context.Context, childID, parentID string) error {
	if childID == parentID {
		return errs.Cycle(childID, parentID)
	}

	if _, err := r.store.GetTemplate(ctx, childID); err != nil {
		return err
	}
	if _, err := r.store.GetTemplate(ctx, parentID); err != nil {
		return err
	}

	// Walk upward from the prospective parent; finding the child means
	// the new edge would close a loop.
	visited := map[string]bool{}
	frontier := []string{parentID}
	for depth := 0; len(frontier) > 0 && depth < maxChainDepth; depth++ {
		next := []string{}
		for _, id := range frontier {
			if id == childID {
				return errs.Cycle(childID, parentID)
			}
			if visited[id] {
				continue
			}
			visited[id] = true

			rels, err := r.store.GetParentRelationships(ctx, id)
			if err != nil {
				return err
			}
			for _, rel := range rels {
				next = append(next, rel.ParentID)
			}
		}
		frontier = next
	}
	return nil
}

// Chain returns the template's full chain to its root, root first and the
// template itself last. When a template has several parents the edge with
// the highest configured priority wins, parent id breaking exact ties.
func (r *Resolver) Chain(ctx context.Context, templateID string) ([]template.InheritanceRelationship, []string, error) {
	var edges []template.InheritanceRelationship
	ids := []string{templateID}

	current := templateID
	seen := map[string]bool{templateID: true}
	for i := 0; i < maxChainDepth; i++ {
		rels, err := r.store.GetParentRelationships(ctx, current)
		if err != nil {
			return nil, nil, err
		}
		if len(rels) == 0 {
			return edges, ids, nil
		}

		rel := pickPrimaryParent(rels)
		if seen[rel.ParentID] {
			return nil, nil, errs.Cycle(current, rel.ParentID)
		}
		seen[rel.ParentID] = true

		// Prepend so the root ends up first.
		edges = append([]template.InheritanceRelationship{rel}, edges...)
		ids = append([]string{rel.ParentID}, ids...)
		current = rel.ParentID
	}
	return nil, nil, errs.Cycle(templateID, current)
}

func pickPrimaryParent(rels []template.InheritanceRelationship) template.InheritanceRelationship {
	sorted := append([]template.InheritanceRelationship(nil), rels...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Config.Priority != sorted[j].Config.Priority {
			return sorted[i].Config.Priority > sorted[j].Config.Priority
		}
		return sorted[i].ParentID < sorted[j].ParentID
	})
	return sorted[0]
}

// Resolve computes the template with its whole parent chain applied in
// root-first order. A template without parents resolves to itself with a
// single-element chain.
func (r *Resolver) Resolve(ctx context.Context, templateID string) (*ResolvedTemplate, error) {
	edges, ids, err := r.Chain(ctx, templateID)
	if err != nil {
		return nil, err
	}

	target, err := r.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	resolved := &ResolvedTemplate{
		Template:   target.Clone(),
		Chain:      ids,
		Provenance: make(map[string]template.FieldProvenance, len(target.Fields)),
		Settings:   make(map[string]template.FieldProvenance),
	}
	for _, f := range target.Fields {
		resolved.Provenance[f.Name] = template.ProvenanceCurrent
	}

	if len(edges) == 0 {
		return resolved, nil
	}

	// Apply each edge child-upward: the nearest parent is applied first,
	// then the grandparent onto what remains unset, and so on to the
	// root. Edges are stored root-first, so walk them backward.
	for i := len(edges) - 1; i >= 0; i-- {
		edge := edges[i]
		parent, err := r.store.GetTemplate(ctx, edge.ParentID)
		if err != nil {
			return nil, err
		}
		r.applyEdge(resolved, parent, edge.Config)
	}

	r.logger.Debug().
		Str("template_id", templateID).
		Strs("chain", ids).
		Int("fields", len(resolved.Template.Fields)).
		Msg("resolved template")

	return resolved, nil
}

// applyEdge applies one parent onto the working resolved template
// according to the edge's inheritance mode
func (r *Resolver) applyEdge(resolved *ResolvedTemplate, parent *template.Template, cfg template.InheritanceConfig) {
	applySettings := false
	applyFields := false

	switch cfg.Mode {
	case template.ModeFull:
		applySettings, applyFields = true, true
	case template.ModeFieldsOnly:
		applyFields = true
	case template.ModeSettingsOnly:
		applySettings = true
	case template.ModeCustom:
		applySettings = cfg.AllowSettingsOverride
		applyFields = true
	}

	if applySettings {
		r.applySettingInheritance(resolved, parent)
	}
	if applyFields {
		r.applyFieldInheritance(resolved, parent, cfg)
	}
}

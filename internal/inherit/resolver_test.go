package inherit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docintake/template-engine/internal/errs"
	"github.com/docintake/template-engine/internal/template"
)

// fakeStore is an in-memory TemplateReader for resolver tests
type fakeStore struct {
	templates map[string]*template.Template
	edges     []template.InheritanceRelationship
}

func newFakeStore() *fakeStore {
	return &fakeStore{templates: make(map[string]*template.Template)}
}

func (s *fakeStore) add(t *template.Template) {
	s.templates[t.ID] = t
}

func (s *fakeStore) link(childID, parentID string, cfg template.InheritanceConfig) {
	s.edges = append(s.edges, template.InheritanceRelationship{
		ID:       childID + "<-" + parentID,
		ChildID:  childID,
		ParentID: parentID,
		Config:   cfg,
	})
}

func (s *fakeStore) GetTemplate(_ context.Context, id string) (*template.Template, error) {
	t, ok := s.templates[id]
	if !ok {
		return nil, errs.NotFound("template", id)
	}
	return t, nil
}

func (s *fakeStore) GetParentRelationships(_ context.Context, childID string) ([]template.InheritanceRelationship, error) {
	var out []template.InheritanceRelationship
	for _, e := range s.edges {
		if e.ChildID == childID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) GetChildRelationships(_ context.Context, parentID string) ([]template.InheritanceRelationship, error) {
	var out []template.InheritanceRelationship
	for _, e := range s.edges {
		if e.ParentID == parentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func baseTemplate(id string, fields ...template.Field) *template.Template {
	return &template.Template{
		ID:               id,
		Name:             id,
		SupportedFormats: []string{"pdf"},
		Fields:           fields,
		Active:           true,
	}
}

func textField(name string, patterns ...string) template.Field {
	return template.Field{
		Name:         name,
		Type:         template.FieldTypeText,
		Method:       template.MethodText,
		TextPatterns: patterns,
	}
}

func TestValidateEdge_SelfReference(t *testing.T) {
	r := NewResolver(newFakeStore(), nil)
	err := r.ValidateEdge(context.Background(), "a", "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrCycleDetected))
}

func TestValidateEdge_MissingTemplate(t *testing.T) {
	store := newFakeStore()
	store.add(baseTemplate("a", textField("f")))
	r := NewResolver(store, nil)

	err := r.ValidateEdge(context.Background(), "a", "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestValidateEdge_RejectsCycle(t *testing.T) {
	store := newFakeStore()
	store.add(baseTemplate("a", textField("f")))
	store.add(baseTemplate("b", textField("f")))
	store.link("b", "a", template.DefaultInheritanceConfig())
	r := NewResolver(store, nil)

	// b already inherits from a; a inheriting from b closes the loop.
	err := r.ValidateEdge(context.Background(), "a", "b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrCycleDetected))
}

func TestValidateEdge_AllowsDiamondFreePath(t *testing.T) {
	store := newFakeStore()
	store.add(baseTemplate("root", textField("f")))
	store.add(baseTemplate("mid", textField("f")))
	store.add(baseTemplate("leaf", textField("f")))
	store.link("mid", "root", template.DefaultInheritanceConfig())
	r := NewResolver(store, nil)

	require.NoError(t, r.ValidateEdge(context.Background(), "leaf", "mid"))
}

func TestChain_Parentless(t *testing.T) {
	store := newFakeStore()
	store.add(baseTemplate("solo", textField("f")))
	r := NewResolver(store, nil)

	edges, ids, err := r.Chain(context.Background(), "solo")
	require.NoError(t, err)
	assert.Empty(t, edges)
	assert.Equal(t, []string{"solo"}, ids)
}

func TestChain_RootFirst(t *testing.T) {
	store := newFakeStore()
	store.add(baseTemplate("root", textField("f")))
	store.add(baseTemplate("mid", textField("f")))
	store.add(baseTemplate("leaf", textField("f")))
	store.link("mid", "root", template.DefaultInheritanceConfig())
	store.link("leaf", "mid", template.DefaultInheritanceConfig())
	r := NewResolver(store, nil)

	edges, ids, err := r.Chain(context.Background(), "leaf")
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "mid", "leaf"}, ids)
	require.Len(t, edges, 2)
	assert.Equal(t, "root", edges[0].ParentID)
	assert.Equal(t, "mid", edges[1].ParentID)
}

func TestChain_PriorityPicksPrimaryParent(t *testing.T) {
	store := newFakeStore()
	store.add(baseTemplate("child", textField("f")))
	store.add(baseTemplate("low", textField("f")))
	store.add(baseTemplate("high", textField("f")))

	lowCfg := template.DefaultInheritanceConfig()
	lowCfg.Priority = 1
	highCfg := template.DefaultInheritanceConfig()
	highCfg.Priority = 5
	store.link("child", "low", lowCfg)
	store.link("child", "high", highCfg)

	r := NewResolver(store, nil)
	_, ids, err := r.Chain(context.Background(), "child")
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "child"}, ids)
}

func TestChain_DetectsStoredCycle(t *testing.T) {
	store := newFakeStore()
	store.add(baseTemplate("a", textField("f")))
	store.add(baseTemplate("b", textField("f")))
	store.link("a", "b", template.DefaultInheritanceConfig())
	store.link("b", "a", template.DefaultInheritanceConfig())
	r := NewResolver(store, nil)

	_, _, err := r.Chain(context.Background(), "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrCycleDetected))
}

func TestResolve_Parentless(t *testing.T) {
	store := newFakeStore()
	store.add(baseTemplate("solo", textField("own")))
	r := NewResolver(store, nil)

	resolved, err := r.Resolve(context.Background(), "solo")
	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, resolved.Chain)
	assert.Equal(t, template.ProvenanceCurrent, resolved.Provenance["own"])
}

func TestResolve_FullModeInheritsFieldsAndSettings(t *testing.T) {
	store := newFakeStore()

	parent := baseTemplate("parent", textField("parent_field", `(\d+)`))
	parent.Category = "finance"
	parent.Tags = []string{"billing"}
	parent.Matching.MinConfidence = 0.7
	store.add(parent)

	child := baseTemplate("child", textField("child_field", `(\w+)`))
	store.add(child)
	store.link("child", "parent", template.DefaultInheritanceConfig())

	r := NewResolver(store, nil)
	resolved, err := r.Resolve(context.Background(), "child")
	require.NoError(t, err)

	assert.Equal(t, []string{"parent", "child"}, resolved.Chain)
	assert.NotNil(t, resolved.Template.FieldByName("child_field"))
	assert.NotNil(t, resolved.Template.FieldByName("parent_field"))
	assert.Equal(t, template.ProvenanceCurrent, resolved.Provenance["child_field"])
	assert.Equal(t, template.ProvenanceInherited, resolved.Provenance["parent_field"])

	assert.Equal(t, "finance", resolved.Template.Category)
	assert.Equal(t, 0.7, resolved.Template.Matching.MinConfidence)
	assert.Contains(t, resolved.Template.Tags, "billing")
	assert.Equal(t, template.ProvenanceInherited, resolved.Settings["category"])
}

func TestResolve_ChildValuesWin(t *testing.T) {
	store := newFakeStore()

	parent := baseTemplate("parent", textField("f"))
	parent.Category = "finance"
	store.add(parent)

	child := baseTemplate("child", textField("f", `(child)`))
	child.Category = "hr"
	store.add(child)
	store.link("child", "parent", template.DefaultInheritanceConfig())

	r := NewResolver(store, nil)
	resolved, err := r.Resolve(context.Background(), "child")
	require.NoError(t, err)

	assert.Equal(t, "hr", resolved.Template.Category)
	assert.Equal(t, []string{`(child)`}, resolved.Template.FieldByName("f").TextPatterns)
	assert.Equal(t, template.ProvenanceCurrent, resolved.Provenance["f"])
}

func TestResolve_FieldsOnlyModeLeavesSettings(t *testing.T) {
	store := newFakeStore()

	parent := baseTemplate("parent", textField("parent_field"))
	parent.Category = "finance"
	store.add(parent)
	store.add(baseTemplate("child", textField("child_field")))

	cfg := template.DefaultInheritanceConfig()
	cfg.Mode = template.ModeFieldsOnly
	store.link("child", "parent", cfg)

	r := NewResolver(store, nil)
	resolved, err := r.Resolve(context.Background(), "child")
	require.NoError(t, err)

	assert.Empty(t, resolved.Template.Category)
	assert.NotNil(t, resolved.Template.FieldByName("parent_field"))
}

func TestResolve_MergeActionUnionsPatterns(t *testing.T) {
	store := newFakeStore()

	parent := baseTemplate("parent", textField("f", `(parent)`, `(shared)`))
	store.add(parent)
	child := baseTemplate("child", textField("f", `(shared)`, `(child)`))
	store.add(child)

	cfg := template.DefaultInheritanceConfig()
	cfg.FieldOverrides = map[string]template.FieldOverride{
		"f": {Action: template.ActionMerge, MergePatterns: true},
	}
	store.link("child", "parent", cfg)

	r := NewResolver(store, nil)
	resolved, err := r.Resolve(context.Background(), "child")
	require.NoError(t, err)

	f := resolved.Template.FieldByName("f")
	require.NotNil(t, f)
	assert.Equal(t, []string{`(shared)`, `(child)`, `(parent)`}, f.TextPatterns)
	assert.Equal(t, template.ProvenanceMerged, resolved.Provenance["f"])
}

func TestResolve_RemoveAction(t *testing.T) {
	store := newFakeStore()
	store.add(baseTemplate("parent", textField("drop_me")))
	store.add(baseTemplate("child", textField("drop_me"), textField("keep_me")))

	cfg := template.DefaultInheritanceConfig()
	cfg.FieldOverrides = map[string]template.FieldOverride{
		"drop_me": {Action: template.ActionRemove},
	}
	store.link("child", "parent", cfg)

	r := NewResolver(store, nil)
	resolved, err := r.Resolve(context.Background(), "child")
	require.NoError(t, err)

	assert.Nil(t, resolved.Template.FieldByName("drop_me"))
	assert.NotNil(t, resolved.Template.FieldByName("keep_me"))
	_, tracked := resolved.Provenance["drop_me"]
	assert.False(t, tracked)
}

func TestResolve_AdditionBlockedWithoutPermission(t *testing.T) {
	store := newFakeStore()
	store.add(baseTemplate("parent", textField("parent_field")))
	store.add(baseTemplate("child", textField("child_field")))

	cfg := template.DefaultInheritanceConfig()
	cfg.AllowFieldAddition = false
	store.link("child", "parent", cfg)

	r := NewResolver(store, nil)
	resolved, err := r.Resolve(context.Background(), "child")
	require.NoError(t, err)

	assert.Nil(t, resolved.Template.FieldByName("parent_field"))
}

func TestResolve_GrandparentFieldsReachTheLeaf(t *testing.T) {
	store := newFakeStore()
	store.add(baseTemplate("root", textField("root_field")))
	store.add(baseTemplate("mid", textField("mid_field")))
	store.add(baseTemplate("leaf", textField("leaf_field")))
	store.link("mid", "root", template.DefaultInheritanceConfig())
	store.link("leaf", "mid", template.DefaultInheritanceConfig())

	r := NewResolver(store, nil)
	resolved, err := r.Resolve(context.Background(), "leaf")
	require.NoError(t, err)

	for _, name := range []string{"root_field", "mid_field", "leaf_field"} {
		assert.NotNil(t, resolved.Template.FieldByName(name), name)
	}
	assert.Equal(t, template.ProvenanceInherited, resolved.Provenance["root_field"])
}

func TestResolve_DoesNotMutateStoredTemplate(t *testing.T) {
	store := newFakeStore()
	store.add(baseTemplate("parent", textField("parent_field")))
	store.add(baseTemplate("child", textField("child_field")))
	store.link("child", "parent", template.DefaultInheritanceConfig())

	r := NewResolver(store, nil)
	_, err := r.Resolve(context.Background(), "child")
	require.NoError(t, err)

	stored, _ := store.GetTemplate(context.Background(), "child")
	assert.Len(t, stored.Fields, 1, "resolution must work on a clone")
}

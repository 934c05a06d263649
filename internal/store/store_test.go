package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docintake/template-engine/internal/errs"
	"github.com/docintake/template-engine/internal/template"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func storedTemplate(id string) *template.Template {
	return &template.Template{
		ID:               id,
		Name:             "Invoice " + id,
		Version:          "1.0.0",
		Category:         "finance",
		Tags:             []string{"billing"},
		SupportedFormats: []string{"pdf"},
		Fields: []template.Field{
			{
				Name:         "invoice_number",
				Type:         template.FieldTypeTicketNumber,
				Method:       template.MethodText,
				TextPatterns: []string{`(INV-\d+)`},
				Required:     true,
			},
		},
		Matching: template.MatchingCriteria{MinConfidence: 0.6},
		Active:   true,
	}
}

func TestSaveAndGetTemplate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tmpl := storedTemplate("inv-1")
	require.NoError(t, s.SaveTemplate(ctx, tmpl))
	assert.False(t, tmpl.CreatedAt.IsZero())
	assert.False(t, tmpl.UpdatedAt.IsZero())

	loaded, err := s.GetTemplate(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, tmpl.Name, loaded.Name)
	assert.Equal(t, tmpl.Category, loaded.Category)
	assert.Equal(t, tmpl.SupportedFormats, loaded.SupportedFormats)
	require.Len(t, loaded.Fields, 1)
	assert.Equal(t, "invoice_number", loaded.Fields[0].Name)
	assert.True(t, loaded.Fields[0].Required)
}

func TestSaveTemplate_RejectsInvalid(t *testing.T) {
	s := openTestStore(t)

	tmpl := storedTemplate("bad")
	tmpl.Fields = nil
	err := s.SaveTemplate(context.Background(), tmpl)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestGetTemplate_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetTemplate(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestListTemplates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	inactive := storedTemplate("b-inactive")
	inactive.Active = false
	require.NoError(t, s.SaveTemplate(ctx, storedTemplate("c-active")))
	require.NoError(t, s.SaveTemplate(ctx, inactive))
	require.NoError(t, s.SaveTemplate(ctx, storedTemplate("a-active")))

	all, err := s.ListTemplates(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a-active", all[0].ID)

	active, err := s.ListTemplates(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, tmpl := range active {
		assert.True(t, tmpl.Active)
	}
}

func TestUpdateStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveTemplate(ctx, storedTemplate("inv-1")))

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	stats := template.UsageStats{
		TotalUses:             3,
		SuccessfulExtractions: 2,
		FailedExtractions:     1,
		AverageExtractionTime: 40 * time.Millisecond,
		LastUsedAt:            &at,
	}
	require.NoError(t, s.UpdateStats(ctx, "inv-1", stats))

	loaded, err := s.GetTemplate(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Stats.TotalUses)
	assert.Equal(t, 2, loaded.Stats.SuccessfulExtractions)

	// Stats updates must not append version history.
	history, err := s.GetVersionHistory(ctx, "inv-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestUpdateStats_NotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateStats(context.Background(), "ghost", template.UsageStats{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestVersionHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tmpl := storedTemplate("inv-1")
	require.NoError(t, s.SaveTemplate(ctx, tmpl))

	tmpl.Version = "1.1.0"
	tmpl.Name = "Invoice v1.1"
	require.NoError(t, s.SaveTemplate(ctx, tmpl))

	history, err := s.GetVersionHistory(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "1.1.0", history[0].Version)
	assert.Equal(t, "Invoice v1.1", history[0].Template.Name)
	assert.Equal(t, "1.0.0", history[1].Version)
}

func TestVersionHistory_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetVersionHistory(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestDeleteTemplate_Cascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTemplate(ctx, storedTemplate("parent")))
	require.NoError(t, s.SaveTemplate(ctx, storedTemplate("child")))
	rel := &template.InheritanceRelationship{
		ChildID:  "child",
		ParentID: "parent",
		Config:   template.DefaultInheritanceConfig(),
	}
	require.NoError(t, s.CreateRelationship(ctx, rel))

	require.NoError(t, s.DeleteTemplate(ctx, "child"))

	_, err := s.GetTemplate(ctx, "child")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	parents, err := s.GetParentRelationships(ctx, "child")
	require.NoError(t, err)
	assert.Empty(t, parents)

	_, err = s.GetVersionHistory(ctx, "child")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestDeleteTemplate_NotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.DeleteTemplate(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestRelationships(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rel := &template.InheritanceRelationship{
		ChildID:  "child",
		ParentID: "parent",
		Config:   template.DefaultInheritanceConfig(),
	}
	require.NoError(t, s.CreateRelationship(ctx, rel))
	assert.NotEmpty(t, rel.ID)
	assert.False(t, rel.CreatedAt.IsZero())

	parents, err := s.GetParentRelationships(ctx, "child")
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, "parent", parents[0].ParentID)
	assert.Equal(t, template.ModeFull, parents[0].Config.Mode)

	children, err := s.GetChildRelationships(ctx, "parent")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "child", children[0].ChildID)

	require.NoError(t, s.DeleteRelationship(ctx, rel.ID))
	parents, err = s.GetParentRelationships(ctx, "child")
	require.NoError(t, err)
	assert.Empty(t, parents)
}

func TestCreateRelationship_RejectsSelfReference(t *testing.T) {
	s := openTestStore(t)
	rel := &template.InheritanceRelationship{
		ChildID:  "same",
		ParentID: "same",
		Config:   template.DefaultInheritanceConfig(),
	}
	err := s.CreateRelationship(context.Background(), rel)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestDeleteRelationship_NotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.DeleteRelationship(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

package store

import (
	"encoding/json"
	"time"

	"github.com/docintake/template-engine/internal/template"
)

// TemplateModel is the persisted form of a template. Nested collections
// (fields, matching criteria, stats) are stored as JSON sub-documents so
// their schemas can evolve independently of the table.
type TemplateModel struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	Name             string    `json:"name"`
	Version          string    `json:"version"`
	Category         string    `gorm:"index" json:"category"`
	Tags             string    `json:"tags"`              // JSON array
	SupportedFormats string    `json:"supported_formats"` // JSON array
	Fields           string    `json:"fields"`            // JSON array of template.Field
	Matching         string    `json:"matching"`          // JSON template.MatchingCriteria
	Active           bool      `gorm:"index" json:"active"`
	Stats            string    `json:"stats"` // JSON template.UsageStats
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RelationshipModel is a persisted parent -> child inheritance edge
type RelationshipModel struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	ChildID   string    `gorm:"index" json:"child_id"`
	ParentID  string    `gorm:"index" json:"parent_id"`
	Config    string    `json:"config"` // JSON template.InheritanceConfig
	Validated bool      `json:"validated"`
	CreatedAt time.Time `json:"created_at"`
}

// VersionModel is one historical snapshot of a template, appended on
// every save
type VersionModel struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TemplateID string    `gorm:"index" json:"template_id"`
	Version    string    `json:"version"`
	Snapshot   string    `json:"snapshot"` // full template JSON
	CreatedAt  time.Time `json:"created_at"`
}

func toModel(t *template.Template) (*TemplateModel, error) {
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return nil, err
	}
	formats, err := json.Marshal(t.SupportedFormats)
	if err != nil {
		return nil, err
	}
	fields, err := json.Marshal(t.Fields)
	if err != nil {
		return nil, err
	}
	matching, err := json.Marshal(t.Matching)
	if err != nil {
		return nil, err
	}
	stats, err := json.Marshal(t.Stats)
	if err != nil {
		return nil, err
	}

	return &TemplateModel{
		ID:               t.ID,
		Name:             t.Name,
		Version:          t.Version,
		Category:         t.Category,
		Tags:             string(tags),
		SupportedFormats: string(formats),
		Fields:           string(fields),
		Matching:         string(matching),
		Active:           t.Active,
		Stats:            string(stats),
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}, nil
}

func fromModel(m *TemplateModel) (*template.Template, error) {
	t := &template.Template{
		ID:        m.ID,
		Name:      m.Name,
		Version:   m.Version,
		Category:  m.Category,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(m.Tags), &t.Tags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(m.SupportedFormats), &t.SupportedFormats); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(m.Fields), &t.Fields); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(m.Matching), &t.Matching); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(m.Stats), &t.Stats); err != nil {
		return nil, err
	}
	return t, nil
}

func toRelationshipModel(rel *template.InheritanceRelationship) (*RelationshipModel, error) {
	cfg, err := json.Marshal(rel.Config)
	if err != nil {
		return nil, err
	}
	return &RelationshipModel{
		ID:        rel.ID,
		ChildID:   rel.ChildID,
		ParentID:  rel.ParentID,
		Config:    string(cfg),
		Validated: rel.Validated,
		CreatedAt: rel.CreatedAt,
	}, nil
}

func fromRelationshipModel(m *RelationshipModel) (*template.InheritanceRelationship, error) {
	rel := &template.InheritanceRelationship{
		ID:        m.ID,
		ChildID:   m.ChildID,
		ParentID:  m.ParentID,
		Validated: m.Validated,
		CreatedAt: m.CreatedAt,
	}
	if err := json.Unmarshal([]byte(m.Config), &rel.Config); err != nil {
		return nil, err
	}
	return rel, nil
}

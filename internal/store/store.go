package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/docintake/template-engine/internal/errs"
	"github.com/docintake/template-engine/internal/template"
)

// Store persists templates, inheritance relationships, and template
// version history in sqlite. It satisfies the read interface the
// inheritance resolver consumes.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open opens (or creates) the template database at path and migrates the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open template database: %w", err)
	}
	if err := db.AutoMigrate(&TemplateModel{}, &RelationshipModel{}, &VersionModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate template database: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// SaveTemplate validates and persists a template, appending a version
// snapshot in the same transaction so a failure leaves no partial write.
func (s *Store) SaveTemplate(ctx context.Context, t *template.Template) error {
	if err := template.Validate(t); err != nil {
		return err
	}

	now := s.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	model, err := toModel(t)
	if err != nil {
		return fmt.Errorf("failed to encode template %s: %w", t.ID, err)
	}
	snapshot, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to snapshot template %s: %w", t.ID, err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(model).Error; err != nil {
			return err
		}
		return tx.Create(&VersionModel{
			TemplateID: t.ID,
			Version:    t.Version,
			Snapshot:   string(snapshot),
			CreatedAt:  now,
		}).Error
	})
}

// UpdateStats persists usage statistics only, without touching the
// template definition or appending a version snapshot
func (s *Store) UpdateStats(ctx context.Context, templateID string, stats template.UsageStats) error {
	encoded, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats for %s: %w", templateID, err)
	}
	res := s.db.WithContext(ctx).
		Model(&TemplateModel{}).
		Where("id = ?", templateID).
		Update("stats", string(encoded))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("template", templateID)
	}
	return nil
}

// GetTemplate loads a template by id
func (s *Store) GetTemplate(ctx context.Context, id string) (*template.Template, error) {
	var model TemplateModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("template", id)
	}
	if err != nil {
		return nil, err
	}
	return fromModel(&model)
}

// ListTemplates returns all templates; when activeOnly is set, inactive
// templates are excluded
func (s *Store) ListTemplates(ctx context.Context, activeOnly bool) ([]*template.Template, error) {
	var models []TemplateModel
	q := s.db.WithContext(ctx).Order("id")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*template.Template, 0, len(models))
	for i := range models {
		t, err := fromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("corrupt template record %s: %w", models[i].ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// DeleteTemplate removes a template, its relationships, and its history
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&TemplateModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.NotFound("template", id)
		}
		if err := tx.Delete(&RelationshipModel{}, "child_id = ? OR parent_id = ?", id, id).Error; err != nil {
			return err
		}
		return tx.Delete(&VersionModel{}, "template_id = ?", id).Error
	})
}

// CreateRelationship persists a validated inheritance edge. Cycle
// checking is the resolver's job and must happen before this call.
func (s *Store) CreateRelationship(ctx context.Context, rel *template.InheritanceRelationship) error {
	if err := template.ValidateRelationship(rel); err != nil {
		return err
	}
	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = s.now()
	}

	model, err := toRelationshipModel(rel)
	if err != nil {
		return fmt.Errorf("failed to encode relationship %s: %w", rel.ID, err)
	}
	return s.db.WithContext(ctx).Create(model).Error
}

// DeleteRelationship removes an inheritance edge by id
func (s *Store) DeleteRelationship(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&RelationshipModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("relationship", id)
	}
	return nil
}

// GetParentRelationships returns the edges in which the template is the
// child
func (s *Store) GetParentRelationships(ctx context.Context, childID string) ([]template.InheritanceRelationship, error) {
	return s.queryRelationships(ctx, "child_id = ?", childID)
}

// GetChildRelationships returns the edges in which the template is the
// parent
func (s *Store) GetChildRelationships(ctx context.Context, parentID string) ([]template.InheritanceRelationship, error) {
	return s.queryRelationships(ctx, "parent_id = ?", parentID)
}

func (s *Store) queryRelationships(ctx context.Context, query string, arg string) ([]template.InheritanceRelationship, error) {
	var models []RelationshipModel
	if err := s.db.WithContext(ctx).Where(query, arg).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]template.InheritanceRelationship, 0, len(models))
	for i := range models {
		rel, err := fromRelationshipModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("corrupt relationship record %s: %w", models[i].ID, err)
		}
		out = append(out, *rel)
	}
	return out, nil
}

// TemplateVersion is one historical snapshot of a template
type TemplateVersion struct {
	Version   string             `json:"version"`
	Template  *template.Template `json:"template"`
	CreatedAt time.Time          `json:"created_at"`
}

// GetVersionHistory returns the template's snapshots, newest first
func (s *Store) GetVersionHistory(ctx context.Context, templateID string) ([]TemplateVersion, error) {
	var models []VersionModel
	err := s.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("id desc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, errs.NotFound("template history", templateID)
	}

	out := make([]TemplateVersion, 0, len(models))
	for i := range models {
		var t template.Template
		if err := json.Unmarshal([]byte(models[i].Snapshot), &t); err != nil {
			return nil, fmt.Errorf("corrupt version snapshot for %s: %w", templateID, err)
		}
		out = append(out, TemplateVersion{
			Version:   models[i].Version,
			Template:  &t,
			CreatedAt: models[i].CreatedAt,
		})
	}
	return out, nil
}

// Close releases the underlying database handle
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

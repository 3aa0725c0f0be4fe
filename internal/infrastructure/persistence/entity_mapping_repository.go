package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormEntityMappingRepository implements migration.EntityMappingRepository using GORM
type GormEntityMappingRepository struct {
	db *gorm.DB
}

// NewGormEntityMappingRepository creates a new GormEntityMappingRepository
func NewGormEntityMappingRepository(db *gorm.DB) *GormEntityMappingRepository {
	return &GormEntityMappingRepository{db: db}
}

// Upsert writes the mapping keyed by (project, entity type)
func (r *GormEntityMappingRepository) Upsert(ctx context.Context, projectID uuid.UUID, mapping migration.EntityMapping) error {
	model, err := models.EntityMappingModelFromDomain(projectID, mapping)
	if err != nil {
		return fmt.Errorf("encode mapping fields: %w", err)
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "entity_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "fields", "updated_at"}),
		}).
		Create(model).Error
}

// FindByProject returns the stored mappings of a project
func (r *GormEntityMappingRepository) FindByProject(ctx context.Context, projectID uuid.UUID) ([]migration.EntityMapping, error) {
	var rows []models.EntityMappingModel
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]migration.EntityMapping, 0, len(rows))
	for i := range rows {
		m, err := rows[i].ToDomain()
		if err != nil {
			return nil, fmt.Errorf("decode mapping %s: %w", rows[i].EntityType, err)
		}
		out = append(out, m)
	}
	return out, nil
}

package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProjectRepository implements migration.ProjectRepository using GORM
type GormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository creates a new GormProjectRepository
func NewGormProjectRepository(db *gorm.DB) *GormProjectRepository {
	return &GormProjectRepository{db: db}
}

// Save inserts or updates the project row
func (r *GormProjectRepository) Save(ctx context.Context, project *migration.Project) error {
	model := models.ProjectModelFromDomain(project)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "source_kind", "dest_kind", "updated_at"}),
		}).
		Create(model).Error
}

// FindByID loads the project row; connections and mappings are not loaded
func (r *GormProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*migration.Project, error) {
	var model models.ProjectModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, migration.ErrProjectNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns all projects, newest first
func (r *GormProjectRepository) List(ctx context.Context) ([]*migration.Project, error) {
	var rows []models.ProjectModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	projects := make([]*migration.Project, 0, len(rows))
	for i := range rows {
		projects = append(projects, rows[i].ToDomain())
	}
	return projects, nil
}

// Delete removes the project and everything stored under it
func (r *GormProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{
			&models.ConnectionConfigModel{},
			&models.EntityMappingModel{},
			&models.SyncedItemModel{},
			&models.MigrationRunModel{},
		} {
			if err := tx.Where("project_id = ?", id).Delete(m).Error; err != nil {
				return fmt.Errorf("delete project children: %w", err)
			}
		}
		result := tx.Delete(&models.ProjectModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return migration.ErrProjectNotFound
		}
		return nil
	})
}

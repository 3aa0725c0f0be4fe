package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormMigrationRunRepository implements migration.MigrationRunRepository using GORM
type GormMigrationRunRepository struct {
	db *gorm.DB
}

// NewGormMigrationRunRepository creates a new GormMigrationRunRepository
func NewGormMigrationRunRepository(db *gorm.DB) *GormMigrationRunRepository {
	return &GormMigrationRunRepository{db: db}
}

// Save inserts a finished run
func (r *GormMigrationRunRepository) Save(ctx context.Context, run *migration.MigrationRun) error {
	model, err := models.MigrationRunModelFromDomain(run)
	if err != nil {
		return fmt.Errorf("encode migration run: %w", err)
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// ListByProject returns the latest runs of a project, newest first
func (r *GormMigrationRunRepository) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*migration.MigrationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.MigrationRunModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	runs := make([]*migration.MigrationRun, 0, len(rows))
	for i := range rows {
		run, err := rows[i].ToDomain()
		if err != nil {
			return nil, fmt.Errorf("decode migration run %s: %w", rows[i].ID, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

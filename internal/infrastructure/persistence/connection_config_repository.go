package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormConnectionConfigRepository implements migration.ConnectionConfigRepository using GORM
type GormConnectionConfigRepository struct {
	db *gorm.DB
}

// NewGormConnectionConfigRepository creates a new GormConnectionConfigRepository
func NewGormConnectionConfigRepository(db *gorm.DB) *GormConnectionConfigRepository {
	return &GormConnectionConfigRepository{db: db}
}

// Upsert writes the connection keyed by (project, role)
func (r *GormConnectionConfigRepository) Upsert(ctx context.Context, conn migration.StoredConnection) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "role"}},
			DoUpdates: clause.AssignmentColumns([]string{"url", "auth_blob", "updated_at"}),
		}).
		Create(models.ConnectionConfigModelFromDomain(conn)).Error
}

// FindByProject returns the stored connections of a project (at most two)
func (r *GormConnectionConfigRepository) FindByProject(ctx context.Context, projectID uuid.UUID) ([]migration.StoredConnection, error) {
	var rows []models.ConnectionConfigModel
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("role").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]migration.StoredConnection, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

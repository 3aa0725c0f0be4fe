package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// syncedItemBatchSize bounds the rows per INSERT statement
const syncedItemBatchSize = 500

// GormSyncedItemRepository implements migration.SyncedItemRepository using GORM
type GormSyncedItemRepository struct {
	db *gorm.DB
}

// NewGormSyncedItemRepository creates a new GormSyncedItemRepository
func NewGormSyncedItemRepository(db *gorm.DB) *GormSyncedItemRepository {
	return &GormSyncedItemRepository{db: db}
}

// UpsertBatch writes items in a single transaction. Items sharing a key are
// collapsed to the last occurrence, since one statement cannot update the
// same row twice.
func (r *GormSyncedItemRepository) UpsertBatch(ctx context.Context, items []migration.SyncedItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := dedupeSyncedItems(items)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "entity_type"}, {Name: "original_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "synced_at"}),
		}).CreateInBatches(rows, syncedItemBatchSize).Error
	})
}

func dedupeSyncedItems(items []migration.SyncedItem) []models.SyncedItemModel {
	type key struct {
		project    uuid.UUID
		entityType migration.EntityType
		originalID string
	}
	index := make(map[key]int, len(items))
	rows := make([]models.SyncedItemModel, 0, len(items))
	for _, item := range items {
		k := key{item.ProjectID, item.EntityType, item.OriginalID}
		if i, ok := index[k]; ok {
			rows[i] = models.SyncedItemModelFromDomain(item)
			continue
		}
		index[k] = len(rows)
		rows = append(rows, models.SyncedItemModelFromDomain(item))
	}
	return rows
}

// List returns one page of cached items ordered by original id, plus the total
func (r *GormSyncedItemRepository) List(ctx context.Context, projectID uuid.UUID, t migration.EntityType, page, pageSize int) ([]migration.SyncedItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	total, err := r.Count(ctx, projectID, t)
	if err != nil {
		return nil, 0, err
	}

	var rows []models.SyncedItemModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND entity_type = ?", projectID, t).
		Order("original_id").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	items := make([]migration.SyncedItem, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ToDomain())
	}
	return items, total, nil
}

// Count returns the number of cached items for (project, entity type)
func (r *GormSyncedItemRepository) Count(ctx context.Context, projectID uuid.UUID, t migration.EntityType) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.SyncedItemModel{}).
		Where("project_id = ? AND entity_type = ?", projectID, t).
		Count(&total).Error
	return total, err
}

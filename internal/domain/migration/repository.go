package migration

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ProjectRepository persists project rows
type ProjectRepository interface {
	Save(ctx context.Context, project *Project) error
	FindByID(ctx context.Context, id uuid.UUID) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// StoredConnection is a connection config as persisted: the auth payload is
// an encrypted blob.
type StoredConnection struct {
	ProjectID uuid.UUID
	Role      Role
	URL       string
	AuthBlob  string
	UpdatedAt time.Time
}

// ConnectionConfigRepository upserts connection configs keyed by (project, role)
type ConnectionConfigRepository interface {
	Upsert(ctx context.Context, conn StoredConnection) error
	FindByProject(ctx context.Context, projectID uuid.UUID) ([]StoredConnection, error)
}

// EntityMappingRepository upserts mappings keyed by (project, entity type)
type EntityMappingRepository interface {
	Upsert(ctx context.Context, projectID uuid.UUID, mapping EntityMapping) error
	FindByProject(ctx context.Context, projectID uuid.UUID) ([]EntityMapping, error)
}

// SyncedItem is a cached raw source record
type SyncedItem struct {
	ProjectID  uuid.UUID       `json:"project_id"`
	EntityType EntityType      `json:"entity_type"`
	OriginalID string          `json:"original_id"`
	Payload    json.RawMessage `json:"payload"`
	SyncedAt   time.Time       `json:"synced_at"`
}

// SyncedItemRepository stores the sync cache keyed by (project, entity type, original id)
type SyncedItemRepository interface {
	// UpsertBatch writes all items in one transaction; on failure nothing changes.
	UpsertBatch(ctx context.Context, items []SyncedItem) error
	List(ctx context.Context, projectID uuid.UUID, t EntityType, page, pageSize int) ([]SyncedItem, int64, error)
	Count(ctx context.Context, projectID uuid.UUID, t EntityType) (int64, error)
}

// MigrationRunRepository keeps the history of finished runs
type MigrationRunRepository interface {
	Save(ctx context.Context, run *MigrationRun) error
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*MigrationRun, error)
}

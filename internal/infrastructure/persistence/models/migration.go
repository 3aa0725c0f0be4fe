package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
	"gorm.io/datatypes"
)

// ProjectModel is the persistence model of a migration project
type ProjectModel struct {
	BaseModel
	Name       string                 `gorm:"type:varchar(200);not null"`
	SourceKind migration.PlatformKind `gorm:"type:varchar(32);not null"`
	DestKind   migration.PlatformKind `gorm:"type:varchar(32);not null"`
}

// TableName returns the table name for GORM
func (ProjectModel) TableName() string {
	return "projects"
}

// ProjectModelFromDomain maps the project row fields; connections and
// mappings are stored in their own tables.
func ProjectModelFromDomain(p *migration.Project) *ProjectModel {
	return &ProjectModel{
		BaseModel: BaseModel{
			ID:        p.ID,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		},
		Name:       p.Name,
		SourceKind: p.SourceKind,
		DestKind:   p.DestKind,
	}
}

// ToDomain converts the row to a project without connections or mappings
func (m *ProjectModel) ToDomain() *migration.Project {
	return &migration.Project{
		ID:         m.ID,
		Name:       m.Name,
		SourceKind: m.SourceKind,
		DestKind:   m.DestKind,
		Mappings:   make(map[migration.EntityType]migration.EntityMapping),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// ConnectionConfigModel stores one side of a project; AuthBlob is vault ciphertext
type ConnectionConfigModel struct {
	ProjectID uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Role      migration.Role `gorm:"type:varchar(16);primaryKey"`
	URL       string         `gorm:"type:text;not null"`
	AuthBlob  string         `gorm:"type:text;not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConnectionConfigModel) TableName() string {
	return "connection_configs"
}

// ConnectionConfigModelFromDomain maps a stored connection to its row
func ConnectionConfigModelFromDomain(c migration.StoredConnection) *ConnectionConfigModel {
	return &ConnectionConfigModel{
		ProjectID: c.ProjectID,
		Role:      c.Role,
		URL:       c.URL,
		AuthBlob:  c.AuthBlob,
		UpdatedAt: c.UpdatedAt,
	}
}

// ToDomain converts the row to a stored connection
func (m *ConnectionConfigModel) ToDomain() migration.StoredConnection {
	return migration.StoredConnection{
		ProjectID: m.ProjectID,
		Role:      m.Role,
		URL:       m.URL,
		AuthBlob:  m.AuthBlob,
		UpdatedAt: m.UpdatedAt,
	}
}

// EntityMappingModel stores one entity type's mapping; Fields keeps key order
type EntityMappingModel struct {
	ProjectID  uuid.UUID            `gorm:"type:uuid;primaryKey"`
	EntityType migration.EntityType `gorm:"type:varchar(32);primaryKey"`
	Enabled    bool                 `gorm:"not null"`
	Fields     datatypes.JSON       `gorm:"type:jsonb;not null"`
	UpdatedAt  time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EntityMappingModel) TableName() string {
	return "entity_mappings"
}

// EntityMappingModelFromDomain maps a mapping to its row
func EntityMappingModelFromDomain(projectID uuid.UUID, m migration.EntityMapping) (*EntityMappingModel, error) {
	fields := m.Fields
	if fields == nil {
		fields = migration.NewFieldMap()
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return &EntityMappingModel{
		ProjectID:  projectID,
		EntityType: m.EntityType,
		Enabled:    m.Enabled,
		Fields:     datatypes.JSON(raw),
		UpdatedAt:  time.Now().UTC(),
	}, nil
}

// ToDomain converts the row to a mapping
func (m *EntityMappingModel) ToDomain() (migration.EntityMapping, error) {
	fields := migration.NewFieldMap()
	if len(m.Fields) > 0 {
		if err := json.Unmarshal(m.Fields, fields); err != nil {
			return migration.EntityMapping{}, err
		}
	}
	return migration.EntityMapping{
		EntityType: m.EntityType,
		Enabled:    m.Enabled,
		Fields:     fields,
	}, nil
}

// SyncedItemModel is one cached source record
type SyncedItemModel struct {
	ProjectID  uuid.UUID            `gorm:"type:uuid;primaryKey"`
	EntityType migration.EntityType `gorm:"type:varchar(32);primaryKey"`
	OriginalID string               `gorm:"type:varchar(64);primaryKey"`
	Payload    datatypes.JSON       `gorm:"type:jsonb;not null"`
	SyncedAt   time.Time            `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SyncedItemModel) TableName() string {
	return "synced_items"
}

// SyncedItemModelFromDomain maps a synced item to its row
func SyncedItemModelFromDomain(i migration.SyncedItem) SyncedItemModel {
	return SyncedItemModel{
		ProjectID:  i.ProjectID,
		EntityType: i.EntityType,
		OriginalID: i.OriginalID,
		Payload:    datatypes.JSON(i.Payload),
		SyncedAt:   i.SyncedAt,
	}
}

// ToDomain converts the row to a synced item
func (m *SyncedItemModel) ToDomain() migration.SyncedItem {
	return migration.SyncedItem{
		ProjectID:  m.ProjectID,
		EntityType: m.EntityType,
		OriginalID: m.OriginalID,
		Payload:    json.RawMessage(m.Payload),
		SyncedAt:   m.SyncedAt,
	}
}

// MigrationRunModel is the history row of a finished migration
type MigrationRunModel struct {
	ID         uuid.UUID            `gorm:"type:uuid;primary_key"`
	ProjectID  uuid.UUID            `gorm:"type:uuid;not null;index"`
	Outcome    migration.RunOutcome `gorm:"type:varchar(16);not null"`
	Error      string               `gorm:"type:text"`
	Entities   datatypes.JSON       `gorm:"type:jsonb;not null"`
	Logs       datatypes.JSON       `gorm:"type:jsonb;not null"`
	StartedAt  time.Time            `gorm:"not null;index"`
	FinishedAt time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MigrationRunModel) TableName() string {
	return "migration_runs"
}

// MigrationRunModelFromDomain maps a run to its row
func MigrationRunModelFromDomain(r *migration.MigrationRun) (*MigrationRunModel, error) {
	entities, err := json.Marshal(r.Entities)
	if err != nil {
		return nil, err
	}
	logs := r.Logs
	if logs == nil {
		logs = []string{}
	}
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return nil, err
	}
	return &MigrationRunModel{
		ID:         r.ID,
		ProjectID:  r.ProjectID,
		Outcome:    r.Outcome,
		Error:      r.Error,
		Entities:   datatypes.JSON(entities),
		Logs:       datatypes.JSON(logsJSON),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}, nil
}

// ToDomain converts the row to a run
func (m *MigrationRunModel) ToDomain() (*migration.MigrationRun, error) {
	run := &migration.MigrationRun{
		ID:         m.ID,
		ProjectID:  m.ProjectID,
		Outcome:    m.Outcome,
		Error:      m.Error,
		Entities:   make(map[migration.EntityType]migration.EntityCounter),
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
	if len(m.Entities) > 0 {
		if err := json.Unmarshal(m.Entities, &run.Entities); err != nil {
			return nil, err
		}
	}
	if len(m.Logs) > 0 {
		if err := json.Unmarshal(m.Logs, &run.Logs); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// AllModels lists every model, for AutoMigrate in tests
func AllModels() []any {
	return []any{
		&ProjectModel{},
		&ConnectionConfigModel{},
		&EntityMappingModel{},
		&SyncedItemModel{},
		&MigrationRunModel{},
	}
}

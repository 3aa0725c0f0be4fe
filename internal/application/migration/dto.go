package migration

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
)

// CreateProjectRequest represents a request to create a migration project
type CreateProjectRequest struct {
	Name       string `json:"name" binding:"required,min=1,max=200"`
	SourceKind string `json:"source_kind" binding:"required,oneof=woocommerce shopify"`
	DestKind   string `json:"dest_kind" binding:"required,oneof=woocommerce shopify"`
}

// UpdateProjectRequest represents a request to rename a project
type UpdateProjectRequest struct {
	Name string `json:"name" binding:"required,min=1,max=200"`
}

// ConnectionRequest sets one side of a project
type ConnectionRequest struct {
	URL         string `json:"url" binding:"required,url"`
	Token       string `json:"token" binding:"omitempty,max=512"`
	Key         string `json:"key" binding:"omitempty,max=512"`
	Secret      string `json:"secret" binding:"omitempty,max=512"`
	User        string `json:"user" binding:"omitempty,max=200"`
	AppPassword string `json:"app_password" binding:"omitempty,max=512"`
}

// Config converts the request to a connection config
func (r ConnectionRequest) Config() migration.ConnectionConfig {
	return migration.ConnectionConfig{
		URL: r.URL,
		Auth: migration.Auth{
			Token:       r.Token,
			Key:         r.Key,
			Secret:      r.Secret,
			User:        r.User,
			AppPassword: r.AppPassword,
		},
	}
}

// UpdateMappingRequest edits one entity mapping. Omitted fields keep their value.
type UpdateMappingRequest struct {
	Enabled *bool               `json:"enabled"`
	Fields  *migration.FieldMap `json:"fields"`
}

// ConnectionResponse describes a configured side without secrets
type ConnectionResponse struct {
	Role              migration.Role         `json:"role"`
	Platform          migration.PlatformKind `json:"platform"`
	URL               string                 `json:"url"`
	Configured        bool                   `json:"configured"`
	ContentCredential bool                   `json:"content_credentials,omitempty"`
}

// MappingResponse represents an entity mapping in API responses
type MappingResponse struct {
	EntityType migration.EntityType `json:"entity_type"`
	Enabled    bool                 `json:"enabled"`
	Fields     *migration.FieldMap  `json:"fields"`
}

// ProjectResponse represents a project in API responses
type ProjectResponse struct {
	ID          uuid.UUID              `json:"id"`
	Name        string                 `json:"name"`
	SourceKind  migration.PlatformKind `json:"source_kind"`
	DestKind    migration.PlatformKind `json:"dest_kind"`
	Source      *ConnectionResponse    `json:"source,omitempty"`
	Destination *ConnectionResponse    `json:"destination,omitempty"`
	Mappings    []MappingResponse      `json:"mappings,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// FieldsResponse lists the fields both sides offer for one entity type
type FieldsResponse struct {
	EntityType        migration.EntityType `json:"entity_type"`
	SourceFields      []string             `json:"source_fields"`
	DestinationFields []string             `json:"destination_fields"`
}

// SyncedItemResponse is one cached source record
type SyncedItemResponse struct {
	OriginalID string          `json:"original_id"`
	Payload    json.RawMessage `json:"payload"`
	SyncedAt   time.Time       `json:"synced_at"`
}

// SyncedPage is a page of cached records
type SyncedPage struct {
	Items    []SyncedItemResponse `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// RunResponse summarizes a finished migration run
type RunResponse struct {
	ID         uuid.UUID                                        `json:"id"`
	Outcome    migration.RunOutcome                             `json:"outcome"`
	Error      string                                           `json:"error,omitempty"`
	Entities   map[migration.EntityType]migration.EntityCounter `json:"entities"`
	Totals     migration.EntityCounter                          `json:"totals"`
	Logs       []string                                         `json:"logs"`
	StartedAt  time.Time                                        `json:"started_at"`
	FinishedAt time.Time                                        `json:"finished_at"`
	DurationMS int64                                            `json:"duration_ms"`
}

// ToProjectResponse converts a project; connections are included when loaded
func ToProjectResponse(p *migration.Project) *ProjectResponse {
	resp := &ProjectResponse{
		ID:         p.ID,
		Name:       p.Name,
		SourceKind: p.SourceKind,
		DestKind:   p.DestKind,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	resp.Source = toConnectionResponse(migration.RoleSource, p.SourceKind, p.Source)
	resp.Destination = toConnectionResponse(migration.RoleDestination, p.DestKind, p.Destination)
	for _, m := range p.AllMappings() {
		resp.Mappings = append(resp.Mappings, ToMappingResponse(m))
	}
	return resp
}

func toConnectionResponse(role migration.Role, kind migration.PlatformKind, cfg migration.ConnectionConfig) *ConnectionResponse {
	return &ConnectionResponse{
		Role:              role,
		Platform:          kind,
		URL:               cfg.URL,
		Configured:        !cfg.IsZero(),
		ContentCredential: cfg.Auth.HasContentCredentials(),
	}
}

// ToMappingResponse converts a mapping
func ToMappingResponse(m migration.EntityMapping) MappingResponse {
	fields := m.Fields
	if fields == nil {
		fields = migration.NewFieldMap()
	}
	return MappingResponse{EntityType: m.EntityType, Enabled: m.Enabled, Fields: fields}
}

// ToRunResponse converts a run record
func ToRunResponse(r *migration.MigrationRun) RunResponse {
	var totals migration.EntityCounter
	for _, c := range r.Entities {
		totals = totals.Add(c)
	}
	logs := r.Logs
	if logs == nil {
		logs = []string{}
	}
	return RunResponse{
		ID:         r.ID,
		Outcome:    r.Outcome,
		Error:      r.Error,
		Entities:   r.Entities,
		Totals:     totals,
		Logs:       logs,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMS: r.Duration().Milliseconds(),
	}
}

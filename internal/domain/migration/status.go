package migration

import (
	"time"

	"github.com/google/uuid"
)

// EntityCounter holds per-entity import counters
type EntityCounter struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Total returns success + failed
func (c EntityCounter) Total() int {
	return c.Success + c.Failed
}

// Add returns the sum of two counters
func (c EntityCounter) Add(o EntityCounter) EntityCounter {
	return EntityCounter{Success: c.Success + o.Success, Failed: c.Failed + o.Failed}
}

// MigrationStatus is the process-wide state of the current or last migration.
// Values handed to observers are snapshots; mutate only through the orchestrator.
type MigrationStatus struct {
	IsRunning  bool                         `json:"is_running"`
	ProjectID  *uuid.UUID                   `json:"project_id,omitempty"`
	Logs       []string                     `json:"logs"`
	Entities   map[EntityType]EntityCounter `json:"entities"`
	StartedAt  *time.Time                   `json:"started_at,omitempty"`
	FinishedAt *time.Time                   `json:"finished_at,omitempty"`
	Error      string                       `json:"error,omitempty"`
}

// IdleStatus is the zero state before any run
func IdleStatus() MigrationStatus {
	return MigrationStatus{Logs: []string{}, Entities: map[EntityType]EntityCounter{}}
}

// NewRunningStatus is the fresh state at the start of a run
func NewRunningStatus(projectID uuid.UUID, startedAt time.Time) MigrationStatus {
	id := projectID
	started := startedAt
	return MigrationStatus{
		IsRunning: true,
		ProjectID: &id,
		Logs:      []string{},
		Entities:  map[EntityType]EntityCounter{},
		StartedAt: &started,
	}
}

// Snapshot returns a deep copy safe to share with observers
func (s MigrationStatus) Snapshot() MigrationStatus {
	out := s
	out.Logs = append([]string(nil), s.Logs...)
	if out.Logs == nil {
		out.Logs = []string{}
	}
	out.Entities = make(map[EntityType]EntityCounter, len(s.Entities))
	for k, v := range s.Entities {
		out.Entities[k] = v
	}
	if s.ProjectID != nil {
		id := *s.ProjectID
		out.ProjectID = &id
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

// BelongsTo reports whether the status describes projectID
func (s MigrationStatus) BelongsTo(projectID uuid.UUID) bool {
	return s.ProjectID != nil && *s.ProjectID == projectID
}

// Totals sums the counters of all entity types
func (s MigrationStatus) Totals() EntityCounter {
	var total EntityCounter
	for _, c := range s.Entities {
		total = total.Add(c)
	}
	return total
}

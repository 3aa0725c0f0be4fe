package migration

import (
	"time"

	"github.com/google/uuid"
)

// RunOutcome is how a migration run ended
type RunOutcome string

const (
	RunCompleted RunOutcome = "completed"
	RunFailed    RunOutcome = "failed"
)

// MigrationRun is the persisted record of one finished run
type MigrationRun struct {
	ID         uuid.UUID                    `json:"id"`
	ProjectID  uuid.UUID                    `json:"project_id"`
	Outcome    RunOutcome                   `json:"outcome"`
	Error      string                       `json:"error,omitempty"`
	Entities   map[EntityType]EntityCounter `json:"entities"`
	Logs       []string                     `json:"logs"`
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
}

// NewMigrationRun records a finished run from its final status
func NewMigrationRun(projectID uuid.UUID, status MigrationStatus, runErr error) *MigrationRun {
	snap := status.Snapshot()
	run := &MigrationRun{
		ID:         uuid.New(),
		ProjectID:  projectID,
		Outcome:    RunCompleted,
		Entities:   snap.Entities,
		Logs:       snap.Logs,
		FinishedAt: time.Now().UTC(),
	}
	if snap.StartedAt != nil {
		run.StartedAt = *snap.StartedAt
	}
	if snap.FinishedAt != nil {
		run.FinishedAt = *snap.FinishedAt
	}
	if runErr != nil {
		run.Outcome = RunFailed
		run.Error = runErr.Error()
	}
	return run
}

// Duration returns how long the run took
func (r *MigrationRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

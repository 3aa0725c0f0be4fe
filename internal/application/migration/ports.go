// Package migration holds the use cases of StoreShift: project management,
// the sync cache and the single-flight migration runner.
package migration

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
)

// ConnectorFactory resolves platform connectors for a project side
type ConnectorFactory interface {
	NewSource(kind migration.PlatformKind, cfg migration.ConnectionConfig) (migration.Source, error)
	NewDestination(kind migration.PlatformKind, cfg migration.ConnectionConfig) (migration.Destination, error)
}

// CredentialSealer encrypts connection auth at rest
type CredentialSealer interface {
	SealAuth(auth migration.Auth) (string, error)
	OpenAuth(blob string) (migration.Auth, error)
}

// ProjectLoader loads a project with decrypted connections and mappings
type ProjectLoader interface {
	Load(ctx context.Context, id uuid.UUID) (*migration.Project, error)
}

// StatusPublisher receives migration status snapshots and log lines
type StatusPublisher interface {
	PublishStatus(status migration.MigrationStatus)
	PublishLog(projectID uuid.UUID, line string)
}

// RunArchive stores finished run reports outside the database
type RunArchive interface {
	Archive(ctx context.Context, run *migration.MigrationRun) (string, error)
}

// ItemRecorder counts imported items per entity type
type ItemRecorder interface {
	RecordItems(ctx context.Context, t migration.EntityType, counter migration.EntityCounter)
}

// TableWriter renders rows as a spreadsheet
type TableWriter interface {
	WriteTable(w io.Writer, sheet string, columns []string, rows [][]string) error
}

type nopPublisher struct{}

func (nopPublisher) PublishStatus(migration.MigrationStatus) {}
func (nopPublisher) PublishLog(uuid.UUID, string)            {}

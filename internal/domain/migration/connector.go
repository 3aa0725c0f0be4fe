package migration

import "context"

// SourcePage is one page of a source collection. DeclaredTotal is the collection
// size the platform reported, 0 when unknown.
type SourcePage struct {
	Items         []Entity
	DeclaredTotal int
}

// Source is the read side of a platform connector
type Source interface {
	Kind() PlatformKind
	// Connect performs one lightweight authenticated read and returns a
	// *ConnectionError on failure.
	Connect(ctx context.Context) error
	// Disconnect is idempotent and always succeeds.
	Disconnect(ctx context.Context) error
	// ExportFields is advisory: a static list merged with a live sample,
	// degrading to the static list when sampling fails.
	ExportFields(ctx context.Context, t EntityType) []string
	// Fetch reads the full collection, reporting progress as pages arrive.
	Fetch(ctx context.Context, t EntityType, onProgress ProgressFunc) ([]Entity, error)
	// FetchPage reads one page, numbered from 1. An empty page ends the collection.
	FetchPage(ctx context.Context, t EntityType, page, perPage int) (SourcePage, error)
}

// Destination is the write side of a platform connector
type Destination interface {
	Kind() PlatformKind
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	ImportFields(ctx context.Context, t EntityType) []string
	// Import writes entities one by one. Per-item failures are returned as
	// failed results, never as an error; the error return is reserved for
	// cancellation.
	Import(ctx context.Context, t EntityType, entities []Entity) ([]ImportResult, error)
	ImportStoreSettings(ctx context.Context, settings *StoreSettings) (ImportResult, error)
}

package migration

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Migration Errors
// ---------------------------------------------------------------------------

var (
	// Taxonomy roots, matched with errors.Is
	ErrConnection          = errors.New("migration: connection failed")
	ErrDecryption          = errors.New("migration: credential decryption failed")
	ErrItemImport          = errors.New("migration: item import failed")
	ErrSchemaFetch         = errors.New("migration: field discovery failed")
	ErrConcurrencyConflict = errors.New("migration: migration already in progress")

	// Lookup and validation errors
	ErrProjectNotFound     = errors.New("migration: project not found")
	ErrUnsupportedPlatform = errors.New("migration: unsupported platform")
	ErrInvalidEntityType   = errors.New("migration: invalid entity type")
	ErrInvalidConnection   = errors.New("migration: invalid connection config")
	ErrMissingConnection   = errors.New("migration: connection not configured")
	ErrEntityNotSupported  = errors.New("migration: entity type not supported by platform")

	// Sync cache errors
	ErrSyncInProgress = errors.New("migration: sync already running for this entity type")
)

// ConnectionError means a connector could not reach or authenticate against
// its platform. It is fatal to a run.
type ConnectionError struct {
	Platform PlatformKind
	Message  string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("connect to %s: %s", e.Platform.DisplayName(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("connect to %s: %v", e.Platform.DisplayName(), e.Err)
	}
	return fmt.Sprintf("connect to %s failed", e.Platform.DisplayName())
}

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }
func (e *ConnectionError) Unwrap() error        { return e.Err }

// DecryptionError means a stored credential failed authentication: the blob
// was tampered with, corrupted, or sealed with a different master key.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", ErrDecryption, e.Err)
	}
	return ErrDecryption.Error()
}

func (e *DecryptionError) Is(target error) bool { return target == ErrDecryption }
func (e *DecryptionError) Unwrap() error        { return e.Err }

// ItemImportError is a single-record write failure. Connectors turn it into a
// failed ImportResult and keep going.
type ItemImportError struct {
	OriginalID string
	Err        error
}

func (e *ItemImportError) Error() string {
	return fmt.Sprintf("import %s: %v", e.OriginalID, e.Err)
}

func (e *ItemImportError) Is(target error) bool { return target == ErrItemImport }
func (e *ItemImportError) Unwrap() error        { return e.Err }

// SchemaFetchError is a field discovery failure. It is logged and the static
// field list is used instead.
type SchemaFetchError struct {
	Platform   PlatformKind
	EntityType EntityType
	Err        error
}

func (e *SchemaFetchError) Error() string {
	return fmt.Sprintf("sample %s fields from %s: %v", e.EntityType, e.Platform.DisplayName(), e.Err)
}

func (e *SchemaFetchError) Is(target error) bool { return target == ErrSchemaFetch }
func (e *SchemaFetchError) Unwrap() error        { return e.Err }

// MissingConnectionError names the project side that has no config yet
type MissingConnectionError struct {
	Role Role
}

func (e *MissingConnectionError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingConnection, e.Role)
}

func (e *MissingConnectionError) Is(target error) bool { return target == ErrMissingConnection }

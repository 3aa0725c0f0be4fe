package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewS3RunArchive_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3RunArchive(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3RunArchive(&config.StorageConfig{AccessKeyID: "k", SecretAccessKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("half a key pair returns error", func(t *testing.T) {
		_, err := NewS3RunArchive(&config.StorageConfig{Bucket: "reports", AccessKeyID: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "set together")
	})

	t.Run("valid config creates archive", func(t *testing.T) {
		archive, err := NewS3RunArchive(&config.StorageConfig{
			Bucket:          "reports",
			Prefix:          "/runs/",
			AccessKeyID:     "k",
			SecretAccessKey: "s",
			Endpoint:        "localhost:9000",
			UsePathStyle:    true,
		}, WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.Equal(t, "reports", archive.Bucket())
		assert.Equal(t, "runs", archive.prefix)
	})
}

func testRun() *migration.MigrationRun {
	status := migration.NewRunningStatus(uuid.New(), time.Now().UTC())
	status.Entities[migration.EntityProducts] = migration.EntityCounter{Success: 3, Failed: 1}
	status.Logs = append(status.Logs, "Imported products failed=1 success=3")
	return migration.NewMigrationRun(*status.ProjectID, status, nil)
}

func TestS3RunArchive_Key(t *testing.T) {
	run := testRun()
	archive, err := NewS3RunArchive(&config.StorageConfig{Bucket: "reports", AccessKeyID: "k", SecretAccessKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, run.ProjectID.String()+"/"+run.ID.String()+".json", archive.Key(run))

	archive.prefix = "storeshift/runs"
	assert.Equal(t, "storeshift/runs/"+run.ProjectID.String()+"/"+run.ID.String()+".json", archive.Key(run))
}

func TestS3RunArchive_Archive(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		reqURL string
		body   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, reqURL, body = r.Method, r.URL.Path, string(data)
		mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	archive, err := NewS3RunArchive(&config.StorageConfig{
		Bucket:          "reports",
		Prefix:          "runs",
		AccessKeyID:     "k",
		SecretAccessKey: "s",
		Endpoint:        server.URL,
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	run := testRun()
	location, err := archive.Archive(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, "s3://reports/runs/"+run.ProjectID.String()+"/"+run.ID.String()+".json", location)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/reports/runs/"+run.ProjectID.String()+"/"+run.ID.String()+".json", reqURL)
	assert.True(t, strings.Contains(body, run.ID.String()))
	assert.Contains(t, body, `"outcome": "completed"`)
}

func TestS3RunArchive_ArchiveFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
	}))
	defer server.Close()

	archive, err := NewS3RunArchive(&config.StorageConfig{
		Bucket:          "reports",
		AccessKeyID:     "k",
		SecretAccessKey: "s",
		Endpoint:        server.URL,
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	_, err = archive.Archive(context.Background(), testRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload run report")

	_, err = archive.Archive(context.Background(), nil)
	assert.Error(t, err)
}

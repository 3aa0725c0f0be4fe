package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	migrationapp "github.com/storeshift/backend/internal/application/migration"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/interfaces/http/dto"
	"github.com/storeshift/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// MockProjectService is a mock implementation of ProjectService
type MockProjectService struct {
	mock.Mock
}

func (m *MockProjectService) Create(ctx context.Context, req migrationapp.CreateProjectRequest) (*migrationapp.ProjectResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*migrationapp.ProjectResponse), args.Error(1)
}

func (m *MockProjectService) Get(ctx context.Context, id uuid.UUID) (*migrationapp.ProjectResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*migrationapp.ProjectResponse), args.Error(1)
}

func (m *MockProjectService) List(ctx context.Context) ([]migrationapp.ProjectResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]migrationapp.ProjectResponse), args.Error(1)
}

func (m *MockProjectService) Update(ctx context.Context, id uuid.UUID, req migrationapp.UpdateProjectRequest) (*migrationapp.ProjectResponse, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*migrationapp.ProjectResponse), args.Error(1)
}

func (m *MockProjectService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProjectService) SetConnection(ctx context.Context, id uuid.UUID, role migration.Role, req migrationapp.ConnectionRequest) (*migrationapp.ConnectionResponse, error) {
	args := m.Called(ctx, id, role, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*migrationapp.ConnectionResponse), args.Error(1)
}

func (m *MockProjectService) TestConnection(ctx context.Context, id uuid.UUID, role migration.Role) error {
	return m.Called(ctx, id, role).Error(0)
}

func (m *MockProjectService) Mappings(ctx context.Context, id uuid.UUID) ([]migrationapp.MappingResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]migrationapp.MappingResponse), args.Error(1)
}

func (m *MockProjectService) UpdateMapping(ctx context.Context, id uuid.UUID, t migration.EntityType, req migrationapp.UpdateMappingRequest) (*migrationapp.MappingResponse, error) {
	args := m.Called(ctx, id, t, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*migrationapp.MappingResponse), args.Error(1)
}

func (m *MockProjectService) Reconcile(ctx context.Context, id uuid.UUID, t migration.EntityType) (*migrationapp.MappingResponse, error) {
	args := m.Called(ctx, id, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*migrationapp.MappingResponse), args.Error(1)
}

func (m *MockProjectService) Fields(ctx context.Context, id uuid.UUID, t migration.EntityType) (*migrationapp.FieldsResponse, error) {
	args := m.Called(ctx, id, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*migrationapp.FieldsResponse), args.Error(1)
}

// MockSyncService is a mock implementation of SyncService. Events queued
// in events are delivered to onEvent before the mocked result is returned.
type MockSyncService struct {
	mock.Mock
	events []migration.StreamEvent
}

func (m *MockSyncService) Sync(ctx context.Context, projectID uuid.UUID, t migration.EntityType, onEvent func(migration.StreamEvent)) (int, error) {
	args := m.Called(ctx, projectID, t)
	for _, e := range m.events {
		onEvent(e)
	}
	return args.Int(0), args.Error(1)
}

func (m *MockSyncService) List(ctx context.Context, projectID uuid.UUID, t migration.EntityType, page, pageSize int) (*migrationapp.SyncedPage, error) {
	args := m.Called(ctx, projectID, t, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*migrationapp.SyncedPage), args.Error(1)
}

func (m *MockSyncService) Export(ctx context.Context, projectID uuid.UUID, t migration.EntityType, w io.Writer) error {
	args := m.Called(ctx, projectID, t)
	if s := args.String(0); s != "" {
		_, _ = io.WriteString(w, s)
	}
	return args.Error(1)
}

// MockMigrationRunner is a mock implementation of MigrationRunner
type MockMigrationRunner struct {
	mock.Mock
}

func (m *MockMigrationRunner) Start(ctx context.Context, projectID uuid.UUID) error {
	return m.Called(ctx, projectID).Error(0)
}

func (m *MockMigrationRunner) Status() migration.MigrationStatus {
	return m.Called().Get(0).(migration.MigrationStatus)
}

func (m *MockMigrationRunner) History(ctx context.Context, projectID uuid.UUID, limit int) ([]migrationapp.RunResponse, error) {
	args := m.Called(ctx, projectID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]migrationapp.RunResponse), args.Error(1)
}

// serve runs one request through a fresh engine with the RequestID middleware
func serve(register func(r *gin.Engine), method, path string, body io.Reader) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(middleware.RequestID())
	register(r)
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decode unmarshals a response envelope, decoding data into out when given
func decode(t *testing.T, w *httptest.ResponseRecorder, out any) dto.Response {
	t.Helper()
	var raw struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw), w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return raw.Response
}

func requireErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	resp := decode(t, w, nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, code, resp.Error.Code)
	require.NotEmpty(t, resp.Error.RequestID)
}

package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ProjectService manages projects, their connections and entity mappings
type ProjectService struct {
	projects    migration.ProjectRepository
	connections migration.ConnectionConfigRepository
	mappings    migration.EntityMappingRepository
	sealer      CredentialSealer
	connectors  ConnectorFactory
	reconciler  *migration.Reconciler
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewProjectService creates a new ProjectService
func NewProjectService(
	projects migration.ProjectRepository,
	connections migration.ConnectionConfigRepository,
	mappings migration.EntityMappingRepository,
	sealer CredentialSealer,
	connectors ConnectorFactory,
	logger *zap.Logger,
) *ProjectService {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Requests carry gin binding tags; validate them the same way outside HTTP.
	v.SetTagName("binding")
	return &ProjectService{
		projects:    projects,
		connections: connections,
		mappings:    mappings,
		sealer:      sealer,
		connectors:  connectors,
		reconciler:  migration.NewReconciler(migration.DefaultSynonyms()),
		validate:    v,
		logger:      logger.Named("projects"),
	}
}

// Create creates a new project with default mappings
func (s *ProjectService) Create(ctx context.Context, req CreateProjectRequest) (*ProjectResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, invalidInput(err)
	}
	source, err := migration.ParsePlatformKind(req.SourceKind)
	if err != nil {
		return nil, invalidInput(err)
	}
	dest, err := migration.ParsePlatformKind(req.DestKind)
	if err != nil {
		return nil, invalidInput(err)
	}

	project, err := migration.NewProject(req.Name, source, dest)
	if err != nil {
		return nil, invalidInput(err)
	}
	if err := s.projects.Save(ctx, project); err != nil {
		return nil, err
	}
	s.logger.Info("Project created",
		zap.String("project_id", project.ID.String()),
		zap.String("source", source.String()),
		zap.String("destination", dest.String()))
	return ToProjectResponse(project), nil
}

// Get returns a project with its connections and mappings
func (s *ProjectService) Get(ctx context.Context, id uuid.UUID) (*ProjectResponse, error) {
	project, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToProjectResponse(project), nil
}

// List returns all projects, newest first, without connection details
func (s *ProjectService) List(ctx context.Context) ([]ProjectResponse, error) {
	projects, err := s.projects.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, ProjectResponse{
			ID:         p.ID,
			Name:       p.Name,
			SourceKind: p.SourceKind,
			DestKind:   p.DestKind,
			CreatedAt:  p.CreatedAt,
			UpdatedAt:  p.UpdatedAt,
		})
	}
	return out, nil
}

// Update renames a project
func (s *ProjectService) Update(ctx context.Context, id uuid.UUID, req UpdateProjectRequest) (*ProjectResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, invalidInput(err)
	}
	project, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	project.Name = strings.TrimSpace(req.Name)
	if err := s.projects.Save(ctx, project); err != nil {
		return nil, err
	}
	return ToProjectResponse(project), nil
}

// Delete removes a project with its connections, mappings and cache
func (s *ProjectService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.projects.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Project deleted", zap.String("project_id", id.String()))
	return nil
}

// ---------------------------------------------------------------------------
// Connections
// ---------------------------------------------------------------------------

// SetConnection validates and stores one side of a project. The auth
// payload is encrypted before it reaches the repository.
func (s *ProjectService) SetConnection(ctx context.Context, id uuid.UUID, role migration.Role, req ConnectionRequest) (*ConnectionResponse, error) {
	if !role.IsValid() {
		return nil, invalidInput(fmt.Errorf("unknown role %q", role))
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, invalidInput(err)
	}
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	cfg := req.Config()
	kind := project.Kind(role)
	if err := cfg.Validate(kind); err != nil {
		return nil, invalidInput(err)
	}
	blob, err := s.sealer.SealAuth(cfg.Auth)
	if err != nil {
		return nil, err
	}

	project.SetConnection(role, cfg)
	if err := s.connections.Upsert(ctx, migration.StoredConnection{
		ProjectID: id,
		Role:      role,
		URL:       cfg.URL,
		AuthBlob:  blob,
		UpdatedAt: project.UpdatedAt,
	}); err != nil {
		return nil, err
	}
	if err := s.projects.Save(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("Connection updated",
		zap.String("project_id", id.String()),
		zap.String("role", string(role)),
		zap.String("platform", kind.String()))
	return toConnectionResponse(role, kind, cfg), nil
}

// TestConnection connects to one side of a project and disconnects again
func (s *ProjectService) TestConnection(ctx context.Context, id uuid.UUID, role migration.Role) error {
	project, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	cfg := project.Connection(role)
	if cfg.IsZero() {
		return &migration.MissingConnectionError{Role: role}
	}
	if role == migration.RoleDestination {
		dst, err := s.connectors.NewDestination(project.DestKind, cfg)
		if err != nil {
			return err
		}
		defer dst.Disconnect(context.WithoutCancel(ctx))
		return dst.Connect(ctx)
	}
	src, err := s.connectors.NewSource(project.SourceKind, cfg)
	if err != nil {
		return err
	}
	defer src.Disconnect(context.WithoutCancel(ctx))
	return src.Connect(ctx)
}

// Load reads a project with decrypted connections and stored mappings.
// A credential that fails to decrypt is a *migration.DecryptionError.
func (s *ProjectService) Load(ctx context.Context, id uuid.UUID) (*migration.Project, error) {
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	stored, err := s.connections.FindByProject(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, c := range stored {
		auth, err := s.sealer.OpenAuth(c.AuthBlob)
		if err != nil {
			return nil, fmt.Errorf("open %s credentials: %w", c.Role, err)
		}
		cfg := migration.ConnectionConfig{URL: c.URL, Auth: auth}
		if c.Role == migration.RoleDestination {
			project.Destination = cfg
		} else {
			project.Source = cfg
		}
	}

	mappings, err := s.mappings.FindByProject(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, m := range mappings {
		project.SetMapping(m)
	}
	return project, nil
}

// ---------------------------------------------------------------------------
// Mappings
// ---------------------------------------------------------------------------

// Mappings returns one mapping per entity type in migration order
func (s *ProjectService) Mappings(ctx context.Context, id uuid.UUID) ([]MappingResponse, error) {
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stored, err := s.mappings.FindByProject(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, m := range stored {
		project.SetMapping(m)
	}
	out := make([]MappingResponse, 0, len(migration.MigrationOrder))
	for _, m := range project.AllMappings() {
		out = append(out, ToMappingResponse(m))
	}
	return out, nil
}

// UpdateMapping applies a user edit to one entity mapping
func (s *ProjectService) UpdateMapping(ctx context.Context, id uuid.UUID, t migration.EntityType, req UpdateMappingRequest) (*MappingResponse, error) {
	if !t.IsValid() {
		return nil, invalidInput(fmt.Errorf("%w: %q", migration.ErrInvalidEntityType, t))
	}
	project, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	m := project.Mapping(t)
	if req.Enabled != nil {
		m.Enabled = *req.Enabled
	}
	if req.Fields != nil {
		for _, k := range req.Fields.Keys() {
			if strings.TrimSpace(k) == "" {
				return nil, invalidInput(errors.New("field mapping keys must not be empty"))
			}
		}
		m.Fields = req.Fields.Clone()
	}
	if err := s.mappings.Upsert(ctx, id, m); err != nil {
		return nil, err
	}
	resp := ToMappingResponse(m)
	return &resp, nil
}

// Fields lists the source and destination fields of t. Field discovery never
// fails: connectors fall back to their static field lists.
func (s *ProjectService) Fields(ctx context.Context, id uuid.UUID, t migration.EntityType) (*FieldsResponse, error) {
	project, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.fields(ctx, project, t)
}

func (s *ProjectService) fields(ctx context.Context, project *migration.Project, t migration.EntityType) (*FieldsResponse, error) {
	if !t.IsValid() {
		return nil, invalidInput(fmt.Errorf("%w: %q", migration.ErrInvalidEntityType, t))
	}
	if err := project.Ready(); err != nil {
		return nil, err
	}
	src, err := s.connectors.NewSource(project.SourceKind, project.Source)
	if err != nil {
		return nil, err
	}
	defer src.Disconnect(context.WithoutCancel(ctx))
	dst, err := s.connectors.NewDestination(project.DestKind, project.Destination)
	if err != nil {
		return nil, err
	}
	defer dst.Disconnect(context.WithoutCancel(ctx))

	return &FieldsResponse{
		EntityType:        t,
		SourceFields:      src.ExportFields(ctx, t),
		DestinationFields: dst.ImportFields(ctx, t),
	}, nil
}

// Reconcile infers destination-to-source field pairs from the live field
// lists and stores the result. Existing non-empty pairs are kept.
func (s *ProjectService) Reconcile(ctx context.Context, id uuid.UUID, t migration.EntityType) (*MappingResponse, error) {
	project, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	fields, err := s.fields(ctx, project, t)
	if err != nil {
		return nil, err
	}

	m := project.Mapping(t)
	m.Fields = s.reconciler.Reconcile(fields.DestinationFields, fields.SourceFields, m.Fields)
	if err := s.mappings.Upsert(ctx, id, m); err != nil {
		return nil, err
	}

	s.logger.Info("Mapping reconciled",
		zap.String("project_id", id.String()),
		zap.String("entity_type", t.String()),
		zap.Int("fields", m.Fields.Len()))
	resp := ToMappingResponse(m)
	return &resp, nil
}

func invalidInput(err error) error {
	return shared.WrapDomainError(shared.CodeInvalidInput, err.Error(), err)
}

package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	migrationapp "github.com/storeshift/backend/internal/application/migration"
	"github.com/storeshift/backend/internal/domain/migration"
)

// ProjectService is the project use case surface the handler needs
type ProjectService interface {
	Create(ctx context.Context, req migrationapp.CreateProjectRequest) (*migrationapp.ProjectResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*migrationapp.ProjectResponse, error)
	List(ctx context.Context) ([]migrationapp.ProjectResponse, error)
	Update(ctx context.Context, id uuid.UUID, req migrationapp.UpdateProjectRequest) (*migrationapp.ProjectResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetConnection(ctx context.Context, id uuid.UUID, role migration.Role, req migrationapp.ConnectionRequest) (*migrationapp.ConnectionResponse, error)
	TestConnection(ctx context.Context, id uuid.UUID, role migration.Role) error
	Mappings(ctx context.Context, id uuid.UUID) ([]migrationapp.MappingResponse, error)
	UpdateMapping(ctx context.Context, id uuid.UUID, t migration.EntityType, req migrationapp.UpdateMappingRequest) (*migrationapp.MappingResponse, error)
	Reconcile(ctx context.Context, id uuid.UUID, t migration.EntityType) (*migrationapp.MappingResponse, error)
	Fields(ctx context.Context, id uuid.UUID, t migration.EntityType) (*migrationapp.FieldsResponse, error)
}

// ProjectHandler handles project, connection and mapping endpoints
type ProjectHandler struct {
	BaseHandler
	projects ProjectService
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(projects ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// ConnectionTestResponse reports a successful connection test
type ConnectionTestResponse struct {
	Role      migration.Role `json:"role"`
	Connected bool           `json:"connected"`
}

// Create handles POST /projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req migrationapp.CreateProjectRequest
	if !h.bindJSON(c, &req) {
		return
	}
	project, err := h.projects.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, project)
}

// List handles GET /projects
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if projects == nil {
		projects = []migrationapp.ProjectResponse{}
	}
	h.Success(c, projects)
}

// Get handles GET /projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	project, err := h.projects.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, project)
}

// Update handles PUT /projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	var req migrationapp.UpdateProjectRequest
	if !h.bindJSON(c, &req) {
		return
	}
	project, err := h.projects.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, project)
}

// Delete handles DELETE /projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	if err := h.projects.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// SetConnection handles PUT /projects/:id/connections/:role.
// Credentials are write-only: the response never echoes them.
func (h *ProjectHandler) SetConnection(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	role, ok := h.role(c)
	if !ok {
		return
	}
	var req migrationapp.ConnectionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	conn, err := h.projects.SetConnection(c.Request.Context(), id, role, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, conn)
}

// TestConnection handles POST /projects/:id/connections/:role/test
func (h *ProjectHandler) TestConnection(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	role, ok := h.role(c)
	if !ok {
		return
	}
	if err := h.projects.TestConnection(c.Request.Context(), id, role); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ConnectionTestResponse{Role: role, Connected: true})
}

// Mappings handles GET /projects/:id/mappings
func (h *ProjectHandler) Mappings(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	mappings, err := h.projects.Mappings(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mappings)
}

// UpdateMapping handles PUT /projects/:id/mappings/:entityType
func (h *ProjectHandler) UpdateMapping(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	t, ok := h.entityType(c)
	if !ok {
		return
	}
	var req migrationapp.UpdateMappingRequest
	if !h.bindJSON(c, &req) {
		return
	}
	mapping, err := h.projects.UpdateMapping(c.Request.Context(), id, t, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mapping)
}

// Reconcile handles POST /projects/:id/mappings/:entityType/reconcile
func (h *ProjectHandler) Reconcile(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	t, ok := h.entityType(c)
	if !ok {
		return
	}
	mapping, err := h.projects.Reconcile(c.Request.Context(), id, t)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mapping)
}

// Fields handles GET /projects/:id/fields/:entityType
func (h *ProjectHandler) Fields(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	t, ok := h.entityType(c)
	if !ok {
		return
	}
	fields, err := h.projects.Fields(c.Request.Context(), id, t)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, fields)
}

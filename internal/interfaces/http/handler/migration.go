package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	migrationapp "github.com/storeshift/backend/internal/application/migration"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/event"
	"go.uber.org/zap"
)

// MigrationRunner is the orchestrator surface the handler needs
type MigrationRunner interface {
	Start(ctx context.Context, projectID uuid.UUID) error
	Status() migration.MigrationStatus
	History(ctx context.Context, projectID uuid.UUID, limit int) ([]migrationapp.RunResponse, error)
}

// ProjectFinder checks that a project exists
type ProjectFinder interface {
	Get(ctx context.Context, id uuid.UUID) (*migrationapp.ProjectResponse, error)
}

// StatusSubscriber streams hub messages
type StatusSubscriber interface {
	Subscribe(projectID *uuid.UUID) (<-chan event.Message, func())
}

// MigrationHandler handles migration runs and their live status
type MigrationHandler struct {
	BaseHandler
	runner    MigrationRunner
	projects  ProjectFinder
	hub       StatusSubscriber
	logger    *zap.Logger
	heartbeat time.Duration
}

// MigrationHandlerOption configures a MigrationHandler
type MigrationHandlerOption func(*MigrationHandler)

// WithHeartbeat sets the SSE heartbeat interval
func WithHeartbeat(interval time.Duration) MigrationHandlerOption {
	return func(h *MigrationHandler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// NewMigrationHandler creates a new MigrationHandler
func NewMigrationHandler(runner MigrationRunner, projects ProjectFinder, hub StatusSubscriber, logger *zap.Logger, opts ...MigrationHandlerOption) *MigrationHandler {
	h := &MigrationHandler{
		runner:    runner,
		projects:  projects,
		hub:       hub,
		logger:    logger.Named("migration_handler"),
		heartbeat: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start handles POST /projects/:id/migrate. The run continues in the
// background; 409 means another run is active.
func (h *MigrationHandler) Start(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.projects.Get(ctx, id); err != nil {
		h.HandleError(c, err)
		return
	}
	if err := h.runner.Start(ctx, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.logger.Info("Migration started", zap.String("project_id", id.String()))
	h.Accepted(c, h.runner.Status())
}

// Status handles GET /migration/status
func (h *MigrationHandler) Status(c *gin.Context) {
	h.Success(c, h.runner.Status())
}

// Runs handles GET /projects/:id/runs?limit=
func (h *MigrationHandler) Runs(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := h.runner.History(c.Request.Context(), id, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, runs)
}

// Events handles GET /migration/events?project_id=. It is a Server-Sent
// Events stream of "status" and "log" events, starting with the current
// status. Without project_id every project's events are sent.
func (h *MigrationHandler) Events(c *gin.Context) {
	var filter *uuid.UUID
	if s := c.Query("project_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			h.BadRequest(c, "Invalid project_id")
			return
		}
		filter = &id
	}

	messages, cancel := h.hub.Subscribe(filter)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := io.WriteString(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := writeSSE(c.Writer, string(msg.Type), msg); err != nil {
				h.logger.Debug("SSE write failed", zap.Error(err))
				return
			}
			c.Writer.Flush()
		}
	}
}

// writeSSE writes one event with a JSON data line
func writeSSE(w io.Writer, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	migrationapp "github.com/storeshift/backend/internal/application/migration"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/interfaces/http/dto"
	"github.com/storeshift/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// ndjsonContentType is the media type of progress streams
const ndjsonContentType = "application/x-ndjson"

// xlsxContentType is the media type of cache exports
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SyncService is the sync cache use case surface the handler needs
type SyncService interface {
	Sync(ctx context.Context, projectID uuid.UUID, t migration.EntityType, onEvent func(migration.StreamEvent)) (int, error)
	List(ctx context.Context, projectID uuid.UUID, t migration.EntityType, page, pageSize int) (*migrationapp.SyncedPage, error)
	Export(ctx context.Context, projectID uuid.UUID, t migration.EntityType, w io.Writer) error
}

// SyncHandler handles the sync cache endpoints
type SyncHandler struct {
	BaseHandler
	sync   SyncService
	logger *zap.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(sync SyncService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{sync: sync, logger: logger.Named("sync_handler")}
}

// Sync handles POST /projects/:id/sync/:entityType. The response is an
// NDJSON stream of progress events ending with a complete or error event.
// Failures before the first event (unknown type, sync already running) are
// answered with a regular JSON error.
func (h *SyncHandler) Sync(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	t, ok := h.entityType(c)
	if !ok {
		return
	}

	enc := json.NewEncoder(c.Writer)
	started := false
	_, err := h.sync.Sync(c.Request.Context(), id, t, func(e migration.StreamEvent) {
		if !started {
			started = true
			c.Header("Content-Type", ndjsonContentType)
			c.Header("Cache-Control", "no-cache")
			c.Header("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
		}
		if err := enc.Encode(e); err != nil {
			h.logger.Debug("Write stream event failed", zap.Error(err))
			return
		}
		c.Writer.Flush()
	})
	if err != nil && !started {
		h.HandleError(c, err)
	}
}

// List handles GET /projects/:id/synced/:entityType
func (h *SyncHandler) List(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	t, ok := h.entityType(c)
	if !ok {
		return
	}
	var page dto.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.sync.List(c.Request.Context(), id, t, page.Page, page.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Export handles GET /projects/:id/synced/:entityType/export
func (h *SyncHandler) Export(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	t, ok := h.entityType(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.sync.Export(c.Request.Context(), id, t, &buf); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, t))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

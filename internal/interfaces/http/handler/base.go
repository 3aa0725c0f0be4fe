// Package handler implements the StoreShift REST endpoints.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/domain/shared"
	"github.com/storeshift/backend/internal/interfaces/http/dto"
	"github.com/storeshift/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// errorMapping maps migration sentinel errors to API error codes.
// Order matters: the first match wins.
var errorMapping = []struct {
	err     error
	code    string
	message string
}{
	{migration.ErrProjectNotFound, dto.ErrCodeNotFound, "Project not found"},
	{migration.ErrConcurrencyConflict, dto.ErrCodeConcurrencyConflict, "A migration is already in progress"},
	{migration.ErrSyncInProgress, dto.ErrCodeConcurrencyConflict, "A sync is already running for this entity type"},
	{migration.ErrDecryption, dto.ErrCodeDecryptionFailed, "Stored credentials could not be decrypted"},
	{migration.ErrConnection, dto.ErrCodeUpstreamUnavailable, ""},
	{migration.ErrSchemaFetch, dto.ErrCodeUpstreamUnavailable, ""},
	{migration.ErrInvalidEntityType, dto.ErrCodeBadRequest, ""},
	{migration.ErrInvalidConnection, dto.ErrCodeBadRequest, ""},
	{migration.ErrUnsupportedPlatform, dto.ErrCodeBadRequest, ""},
	{migration.ErrMissingConnection, dto.ErrCodeInvalidState, ""},
	{migration.ErrEntityNotSupported, dto.ErrCodeNotSupported, ""},
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 accepted response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError converts domain and migration errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.ErrorWithCode(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)
		return
	}

	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			message := m.message
			if message == "" {
				message = err.Error()
			}
			h.ErrorWithCode(c, m.code, message)
			return
		}
	}

	h.InternalError(c, "An unexpected error occurred")
}

// projectID parses the :id path parameter, answering 400 on failure
func (h *BaseHandler) projectID(c *gin.Context) (uuid.UUID, bool) {
	var uri dto.ProjectURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleValidationError(c, err)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(uri.ID)
	if err != nil {
		h.BadRequest(c, "Invalid project ID")
		return uuid.Nil, false
	}
	return id, true
}

// entityType parses the :entityType path parameter, answering 400 on failure
func (h *BaseHandler) entityType(c *gin.Context) (migration.EntityType, bool) {
	t, err := migration.ParseEntityType(c.Param("entityType"))
	if err != nil {
		h.BadRequest(c, err.Error())
		return "", false
	}
	return t, true
}

// role parses the :role path parameter, answering 400 on failure
func (h *BaseHandler) role(c *gin.Context) (migration.Role, bool) {
	r := migration.Role(c.Param("role"))
	if !r.IsValid() {
		h.BadRequest(c, "Role must be source or destination")
		return "", false
	}
	return r, true
}

// bindJSON binds the request body, answering 400 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

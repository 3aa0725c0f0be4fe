package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHandler_Health(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]HealthCheck
		status int
		state  string
	}{
		{"no checks", nil, http.StatusOK, "ok"},
		{"all healthy", map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		}, http.StatusOK, "ok"},
		{"database down", map[string]HealthCheck{
			"database": func(context.Context) error { return errors.New("connection refused") },
			"redis":    func(context.Context) error { return nil },
		}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(func(r *gin.Engine) {
				r.GET("/health", NewSystemHandler("storeshift", "test", tt.checks).Health)
			}, http.MethodGet, "/health", nil)

			require.Equal(t, tt.status, w.Code)
			var got HealthResponse
			decode(t, w, &got)
			assert.Equal(t, tt.state, got.Status)
			assert.Equal(t, "storeshift", got.Name)
			assert.Len(t, got.Checks, len(tt.checks))
		})
	}
}

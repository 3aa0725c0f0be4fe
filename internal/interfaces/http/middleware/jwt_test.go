package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storeshift/backend/internal/infrastructure/auth"
	"github.com/storeshift/backend/internal/infrastructure/config"
	"github.com/storeshift/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJWTRouter(svc *auth.JWTService) *gin.Engine {
	r := gin.New()
	r.Use(JWTAuthMiddleware(JWTMiddlewareConfig{
		Validator: svc,
		SkipPaths: []string{"/health"},
	}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/private", func(c *gin.Context) {
		c.String(http.StatusOK, GetJWTClaims(c).Subject)
	})
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestJWTAuth(t *testing.T) {
	svc := auth.NewJWTService(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", Issuer: "storeshift"})
	r := newJWTRouter(svc)

	valid, err := svc.Issue("ops", time.Hour)
	require.NoError(t, err)
	expired, err := svc.Issue("ops", -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		status int
		code   string
		body   string
	}{
		{name: "skip path", path: "/health", status: http.StatusOK},
		{name: "missing header", path: "/private", status: http.StatusUnauthorized, code: dto.ErrCodeTokenInvalid},
		{name: "wrong scheme", path: "/private", header: "Basic abc", status: http.StatusUnauthorized, code: dto.ErrCodeTokenInvalid},
		{name: "expired", path: "/private", header: "Bearer " + expired, status: http.StatusUnauthorized, code: dto.ErrCodeTokenExpired},
		{name: "garbage", path: "/private", header: "Bearer nope", status: http.StatusUnauthorized, code: dto.ErrCodeTokenInvalid},
		{name: "valid", path: "/private", header: "Bearer " + valid, status: http.StatusOK, body: "ops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeError(t, w).Code)
			}
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

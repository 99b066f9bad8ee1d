package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), JWTAuthMiddleware(secret))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, GetCaller(c))
	})
	return r
}

func TestJWTAuthMiddleware(t *testing.T) {
	r := newEngine()
	token, err := jwt.GenerateToken(&models.Caller{Username: "ops", TeamID: 3, Role: "admin"}, secret, "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"excluded path", "/health", "", http.StatusOK},
		{"missing header", "/api/me", "", http.StatusUnauthorized},
		{"bad format", "/api/me", "Token " + token, http.StatusUnauthorized},
		{"bad token", "/api/me", "Bearer nope", http.StatusUnauthorized},
		{"valid", "/api/me", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestJWTAuthMiddleware_StoresCaller(t *testing.T) {
	r := newEngine()
	token, _ := jwt.GenerateToken(&models.Caller{Username: "ops", TeamID: 3, Role: "admin"}, secret, "", time.Hour)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me?token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"ops","team_id":3,"role":"admin"}`, w.Body.String())
}

func TestRequestID(t *testing.T) {
	r := newEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	given := uuid.NewString()
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, given)
	r.ServeHTTP(w, req)
	assert.Equal(t, given, w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Header().Get(RequestIDHeader))
}

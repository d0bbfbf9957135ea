package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeco/backoffice/internal/infrastructure/auth"
	"github.com/tradeco/backoffice/internal/infrastructure/config"
)

func newTestJWTService(t *testing.T) *auth.JWTService {
	t.Helper()
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-for-middleware",
		AccessTokenExpiration: time.Hour,
		Issuer:                "backoffice-test",
	})
}

func issueToken(t *testing.T, svc *auth.JWTService, roles ...string) string {
	t.Helper()
	token, _, err := svc.GenerateToken(auth.GenerateTokenInput{
		UserID:   uuid.MustParse("b3b9c6d0-6f1e-4f3a-9a6e-111111111111"),
		Username: "maria",
		Roles:    roles,
	})
	require.NoError(t, err)
	return token
}

func setupJWTRouter(svc *auth.JWTService, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWTAuthMiddleware(svc))
	handlers := append(extra, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":  GetJWTUserID(c),
			"username": GetJWTUsername(c),
			"roles":    GetJWTRoles(c),
		})
	})
	r.GET("/api/v1/invoices", handlers...)
	r.GET("/health", handlers...)
	return r
}

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	svc := newTestJWTService(t)
	r := setupJWTRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+issueToken(t, svc, auth.RoleAccountant))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "maria")
	assert.Contains(t, w.Body.String(), auth.RoleAccountant)
}

func TestJWTAuthMiddleware_MissingHeader(t *testing.T) {
	svc := newTestJWTService(t)
	r := setupJWTRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
}

func TestJWTAuthMiddleware_MalformedHeader(t *testing.T) {
	svc := newTestJWTService(t)
	r := setupJWTRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
	req.Header.Set(AuthHeaderKey, "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuthMiddleware_ExpiredToken(t *testing.T) {
	expired := auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-for-middleware",
		AccessTokenExpiration: -time.Minute,
		Issuer:                "backoffice-test",
	})
	svc := newTestJWTService(t)
	r := setupJWTRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+issueToken(t, expired))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_EXPIRED")
}

func TestJWTAuthMiddleware_SkipPaths(t *testing.T) {
	svc := newTestJWTService(t)
	r := setupJWTRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole(t *testing.T) {
	svc := newTestJWTService(t)
	r := setupJWTRouter(svc, RequireRole(auth.RoleAdmin))

	t.Run("role present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+issueToken(t, svc, auth.RoleAccountant, auth.RoleAdmin))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("role missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+issueToken(t, svc, auth.RoleAccountant))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "FORBIDDEN")
	})
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{JWT: config.JWTConfig{Secret: "middleware-secret", ExpireTime: time.Hour}}
}

func tokenFor(t *testing.T, cfg *config.Config, role model.UserRole) string {
	t.Helper()
	token, err := util.GenerateJWT(&model.User{UUIDBase: model.UUIDBase{ID: "u-1"}, Role: role}, cfg.JWT.Secret, time.Hour)
	require.NoError(t, err)
	return token
}

func serve(r *gin.Engine, path, token string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuthAndRoleMiddleware(t *testing.T) {
	cfg := testConfig()
	r := gin.New()
	r.GET("/me", AuthMiddleware(cfg, nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/admin", AuthMiddleware(cfg, nil), RoleMiddleware(model.Instructor), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, "/me", ""))
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/me", "garbage"))
	assert.Equal(t, http.StatusOK, serve(r, "/me", tokenFor(t, cfg, model.Student)))
	assert.Equal(t, http.StatusOK, serve(r, "/me?token="+tokenFor(t, cfg, model.Student), ""))

	assert.Equal(t, http.StatusForbidden, serve(r, "/admin", tokenFor(t, cfg, model.Student)))
	assert.Equal(t, http.StatusOK, serve(r, "/admin", tokenFor(t, cfg, model.Instructor)))
	assert.Equal(t, http.StatusOK, serve(r, "/admin", tokenFor(t, cfg, model.Admin)))
}

func TestTryAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	r := gin.New()
	r.GET("/catalog", TryAuthMiddleware(cfg, nil), func(c *gin.Context) {
		if util.GetUserFromContext(c) != nil {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, serve(r, "/catalog", ""))
	assert.Equal(t, http.StatusNoContent, serve(r, "/catalog", "garbage"))
	assert.Equal(t, http.StatusOK, serve(r, "/catalog", tokenFor(t, cfg, model.Student)))
}

type userStates map[string]error

func (u userStates) CheckActive(_ context.Context, userID string) error {
	return u[userID]
}

func TestAuthMiddlewareRejectsInactiveUsers(t *testing.T) {
	cfg := testConfig()
	users := userStates{}
	r := gin.New()
	r.GET("/me", AuthMiddleware(cfg, users), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/catalog", TryAuthMiddleware(cfg, users), func(c *gin.Context) {
		if util.GetUserFromContext(c) != nil {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusNoContent)
	})
	token := tokenFor(t, cfg, model.Student)

	assert.Equal(t, http.StatusOK, serve(r, "/me", token))

	users["u-1"] = util.ErrUserDisabled
	assert.Equal(t, http.StatusForbidden, serve(r, "/me", token))
	assert.Equal(t, http.StatusNoContent, serve(r, "/catalog", token))

	users["u-1"] = util.ErrUnauthorized
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/me", token))
}

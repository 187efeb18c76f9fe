package middleware

import (
	"context"
	"errors"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserChecker 校验 token 所属用户当前是否可用
type UserChecker interface {
	CheckActive(ctx context.Context, userID string) error
}

func tokenFromRequest(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	// 无法设置请求头的客户端（如 EventSource、下载链接）通过查询参数携带 token
	return c.Query("token")
}

func AuthMiddleware(cfg *config.Config, users UserChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("JWT解析错误", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		if users != nil {
			if err := users.CheckActive(c.Request.Context(), claims.UserID); err != nil {
				switch {
				case errors.Is(err, util.ErrUserDisabled):
					util.Error(c, http.StatusForbidden, err.Error())
				case errors.Is(err, util.ErrUnauthorized):
					util.Unauthorized(c)
				default:
					util.LogInternalError(c, err)
				}
				c.Abort()
				return
			}
		}

		c.Set("user", claims)
		c.Next()
	}
}

// TryAuthMiddleware 有合法 token 且用户可用时写入用户，否则按匿名访问继续
func TryAuthMiddleware(cfg *config.Config, users UserChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := tokenFromRequest(c); tokenString != "" {
			if claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret); err == nil {
				if users == nil || users.CheckActive(c.Request.Context(), claims.UserID) == nil {
					c.Set("user", claims)
				}
			}
		}
		c.Next()
	}
}

func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := false
		for _, role := range roles {
			// 管理员拥有所有讲师权限
			if user.Role == model.Admin || user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

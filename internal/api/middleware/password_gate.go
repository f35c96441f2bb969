package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const passwordChangeRequiredMessage = "password change required"

// RequirePasswordChangeCompletedMiddleware 在 access token 带有 must_change_password 时返回 403。
// exempt 为仍然放行的路由模板，例如改密与登出本身。
func RequirePasswordChangeCompletedMiddleware(exempt ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(exempt))
	for _, route := range exempt {
		allowed[route] = true
	}
	return func(c *gin.Context) {
		if !c.GetBool(MustChangePasswordKey) || allowed[c.FullPath()] {
			c.Next()
			return
		}
		LoggerFromContext(c).Info("request blocked until password change",
			slog.Uint64("user_id", uint64(c.GetUint(UserIDKey))),
			slog.String("route", c.FullPath()),
		)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": passwordChangeRequiredMessage})
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"recruify/internal/auth"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey             = "userID"
	CompanyIDKey          = "companyID"
	MustChangePasswordKey = "mustChangePassword"
)

type tokenValidator interface {
	ValidateToken(token string) (*auth.TokenClaims, error)
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware 校验访问令牌并将 userID、companyID 注入上下文。
func AuthMiddleware(validator tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c)
			return
		}

		claims, err := validator.ValidateToken(rawToken)
		if err != nil || claims.TokenType != auth.TokenTypeAccess || claims.CompanyID == 0 {
			abortUnauthorized(c)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(CompanyIDKey, claims.CompanyID)
		c.Set(MustChangePasswordKey, claims.MustChangePassword)
		c.Next()
	}
}

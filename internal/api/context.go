package api

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"recruify/internal/api/middleware"
)

var errInvalidID = errors.New("invalid id")

func uintFromContext(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, v != 0
	case int:
		if v <= 0 {
			return 0, false
		}
		return uint(v), true
	case uint64:
		return uint(v), v != 0
	default:
		return 0, false
	}
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	return uintFromContext(c, middleware.UserIDKey)
}

func companyIDFromContext(c *gin.Context) (uint, bool) {
	return uintFromContext(c, middleware.CompanyIDKey)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

// parseOptionalID parses a query id; an empty value yields 0.
func parseOptionalID(raw string) (uint, error) {
	if raw == "" {
		return 0, nil
	}
	return parseID(raw)
}

package middleware

import (
	"github.com/gin-gonic/gin"

	"retailpos/internal/core/security"
)

// RequireRole rejects callers below min. Runs after Auth.
func RequireRole(min security.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, err := security.GetScope(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		if err := scope.RequireRole(min); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}

package middleware

import (
	"net/http" // HTTP status codes

	"ledger_system/internal/domain"

	"github.com/gin-gonic/gin" // Gin web framework
)

// AdminOnlyMiddleware lets only administrator actors through. The role comes from the validated
// token, so no store lookup is needed.
func AdminOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := Actor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.KindUnauthorized, "message": "Unauthorized"})
			return
		}
		if !actor.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": domain.KindUnauthorized, "message": "Admin access required"})
			return
		}
		c.Next()
	}
}

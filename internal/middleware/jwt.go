package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"ledger_system/internal/auth"   // Token parsing
	"ledger_system/internal/domain" // Actor

	"github.com/gin-gonic/gin" // Gin web framework
)

const actorKey = "actor"

// JWTAuthMiddleware validates bearer tokens and stores the resolved actor in the context
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.KindUnauthorized, "message": "Missing or invalid Authorization header"})
			return
		}
		actor, err := auth.ParseToken(strings.TrimPrefix(authHeader, "Bearer "), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.KindUnauthorized, "message": "Invalid or expired token"})
			return
		}
		c.Set(actorKey, actor) // Store actor in context
		c.Next()
	}
}

// Actor returns the actor resolved by JWTAuthMiddleware
func Actor(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}

// SetActor stores an actor in the context; used by tests and alternative identity adapters
func SetActor(c *gin.Context, actor domain.Actor) {
	c.Set(actorKey, actor)
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridematch/internal/auth"
	"ridematch/internal/domain"
)

const (
	actorIDKey   = "actor_id"
	actorRoleKey = "actor_role"
)

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the actor identity on the context.
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abortUnauthorized(c, "missing or malformed authorization header")
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			_ = c.Error(err)
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		c.Set(actorIDKey, claims.UserID)
		c.Set(actorRoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole rejects actors whose role is not listed.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, role := Actor(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "FORBIDDEN",
			"message": "role not allowed",
		})
	}
}

// Actor returns the authenticated actor of the request.
func Actor(c *gin.Context) (string, domain.Role) {
	id := c.GetString(actorIDKey)
	role, _ := c.Get(actorRoleKey)
	r, _ := role.(domain.Role)
	return id, r
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   "UNAUTHORIZED",
		"message": message,
	})
}

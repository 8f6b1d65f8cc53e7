package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mindpex/sanctum/pkg/token"
)

const claimsKey = "authClaims"

// Middleware verifies bearer tokens on protected routes.
type Middleware struct {
	jwt *token.JWTManager
}

// NewMiddleware creates the auth middleware.
func NewMiddleware(jwtManager *token.JWTManager) *Middleware {
	return &Middleware{jwt: jwtManager}
}

// RequireAuth extracts and verifies the Authorization header, storing the
// claims in the request context for handlers.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "No token provided"})
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "No token provided"})
			return
		}

		claims, err := m.jwt.Verify(strings.TrimPrefix(authHeader, bearerPrefix))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid or expired token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// claimsFrom returns the verified claims RequireAuth stored.
func claimsFrom(c *gin.Context) *token.Claims {
	value, _ := c.Get(claimsKey)
	claims, _ := value.(*token.Claims)
	if claims == nil {
		// RequireAuth always runs first on protected routes.
		return &token.Claims{}
	}
	return claims
}

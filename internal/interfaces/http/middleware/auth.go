// internal/interfaces/http/middleware/auth.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/artecho/storefront-backend/internal/pkg/auth"
)

const (
	userIDKey    = "user_id"
	userEmailKey = "user_email"
	identityKey  = "identity"
)

// AuthMiddleware requires a valid bearer token
func AuthMiddleware(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		tokenString := auth.ExtractTokenFromHeader(authHeader)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			c.Abort()
			return
		}

		id, err := verifier.Verify(c.Request.Context(), tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		setIdentity(c, id)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches the identity when a valid token is present.
// Requests without one continue as guests.
func OptionalAuthMiddleware(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := auth.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			c.Next()
			return
		}

		id, err := verifier.Verify(c.Request.Context(), tokenString)
		if err != nil {
			// Invalid token, continue without authentication
			c.Next()
			return
		}

		setIdentity(c, id)
		c.Next()
	}
}

func setIdentity(c *gin.Context, id *auth.Identity) {
	c.Set(userIDKey, id.UserID)
	c.Set(userEmailKey, id.Email)
	c.Set(identityKey, id)
}

// GetUserIDFromContext extracts user ID from gin context
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID := c.GetString(userIDKey)
	return userID, userID != ""
}

// GetIdentityFromContext returns the verified caller, nil for guests
func GetIdentityFromContext(c *gin.Context) *auth.Identity {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil
	}
	id, _ := v.(*auth.Identity)
	return id
}

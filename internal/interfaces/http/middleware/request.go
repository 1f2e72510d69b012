// internal/interfaces/http/middleware/request.go
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/artecho/storefront-backend/internal/config"
)

const (
	// RequestIDKey is the context key of the request id
	RequestIDKey = "request_id"
	// SessionIDKey is the context key of the browser session id
	SessionIDKey = "session_id"

	requestIDHeader = "X-Request-ID"
)

// RequestID assigns every request an id, reusing the caller's when it is a valid UUID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// Session makes sure the browser has a session cookie
func Session(cfg *config.Config) gin.HandlerFunc {
	name := cfg.Auth.CookieName
	maxAge := int(cfg.Auth.CookieMaxAge / time.Second)

	return func(c *gin.Context) {
		id, err := c.Cookie(name)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(name, id, maxAge, "/", "", cfg.Auth.CookieSecure, true)
		c.Set(SessionIDKey, id)
		c.Next()
	}
}

// GetSessionIDFromContext returns the browser session id
func GetSessionIDFromContext(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}

// RequestSizeLimit caps the request body
func RequestSizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Request body too large",
			})
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

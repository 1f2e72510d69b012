// internal/interfaces/http/middleware/security.go
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/artecho/storefront-backend/internal/config"
)

// SecurityHeaders sets the response headers of a JSON-only API
func SecurityHeaders(cfg *config.Config) gin.HandlerFunc {
	// the session cookie is only marked Secure when the API is served over TLS
	hsts := cfg.Auth.CookieSecure

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// carts and tokens are per-session
		h.Set("Cache-Control", "no-store")

		if hsts {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		h.Set("Server", cfg.App.Name)

		c.Next()
	}
}

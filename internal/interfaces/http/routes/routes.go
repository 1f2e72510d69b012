// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/artecho/storefront-backend/internal/config"
	"github.com/artecho/storefront-backend/internal/interfaces/http/handlers"
	"github.com/artecho/storefront-backend/internal/interfaces/http/middleware"
	"github.com/artecho/storefront-backend/internal/pkg/auth"
)

// Handlers groups the API handlers
type Handlers struct {
	Cart        *handlers.CartHandler
	Auth        *handlers.AuthHandler
	Diagnostics *handlers.DiagnosticsHandler
}

// SetupRoutes mounts every API route on rg.
// Every route gets a browser session; a bearer token, when valid, signs it in.
func SetupRoutes(rg *gin.RouterGroup, h Handlers, verifier auth.Verifier, cfg *config.Config) {
	rg.Use(middleware.Session(cfg))
	rg.Use(middleware.OptionalAuthMiddleware(verifier))

	SetupCartRoutes(rg, h.Cart)
	SetupAuthRoutes(rg, h.Auth, verifier)
	SetupDiagnosticsRoutes(rg, h.Diagnostics)
}

// SetupCartRoutes sets up cart routes (guest sessions or authenticated users)
func SetupCartRoutes(rg *gin.RouterGroup, cartHandler *handlers.CartHandler) {
	cart := rg.Group("/cart")
	{
		cart.GET("", cartHandler.GetCart)
		cart.GET("/count", cartHandler.GetCartCount)
		cart.POST("/items", cartHandler.AddToCart)
		cart.PUT("/items/:id", cartHandler.UpdateCartItem)
		cart.DELETE("/items/:id", cartHandler.RemoveFromCart)
		cart.DELETE("", cartHandler.ClearCart)
	}
}

// SetupAuthRoutes sets up authentication related routes
func SetupAuthRoutes(rg *gin.RouterGroup, authHandler *handlers.AuthHandler, verifier auth.Verifier) {
	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.RefreshToken)
		authGroup.POST("/logout", authHandler.Logout)

		protected := authGroup.Group("")
		protected.Use(middleware.AuthMiddleware(verifier))
		{
			protected.GET("/me", authHandler.GetProfile)
		}
	}
}

// SetupDiagnosticsRoutes sets up diagnostics routes
func SetupDiagnosticsRoutes(rg *gin.RouterGroup, diagnosticsHandler *handlers.DiagnosticsHandler) {
	diagnostics := rg.Group("/diagnostics")
	{
		diagnostics.GET("/persistence-errors", diagnosticsHandler.GetPersistenceErrors)
	}
}

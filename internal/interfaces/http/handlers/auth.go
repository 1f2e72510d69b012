// internal/interfaces/http/handlers/auth.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/artecho/storefront-backend/internal/domain/session"
	"github.com/artecho/storefront-backend/internal/domain/user"
	"github.com/artecho/storefront-backend/internal/interfaces/http/middleware"
	"github.com/artecho/storefront-backend/internal/pkg/auth"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	userService *user.Service
	sessions    *session.Manager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *user.Service, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		sessions:    sessions,
	}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req user.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	response, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, user.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		}
		return
	}

	h.signIn(c, response)
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"data":    response,
	})
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req user.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	response, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign in"})
		return
	}

	h.signIn(c, response)
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"data":    response,
	})
}

// RefreshToken handles token refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	response, err := h.userService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Token refreshed successfully",
		"data":    response,
	})
}

// Logout resolves the browser session back to a guest. Tokens are dropped client-side.
func (h *AuthHandler) Logout(c *gin.Context) {
	handle := h.sessions.Acquire(c.Request.Context(), middleware.GetSessionIDFromContext(c), nil)

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
		"data": gin.H{
			"cart": handle.Store,
		},
	})
}

// GetProfile returns the signed-in user
func (h *AuthHandler) GetProfile(c *gin.Context) {
	id := middleware.GetIdentityFromContext(c)
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	profile, err := h.userService.GetProfile(c.Request.Context(), id.UserID)
	switch {
	case errors.Is(err, user.ErrNotFound):
		// externally verified users have no directory entry
		profile = &user.User{UID: id.UserID, Email: id.Email, DisplayName: id.DisplayName}
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load profile",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile retrieved successfully",
		"data":    profile,
	})
}

// signIn moves the browser session to the new user so the guest cart merges now
func (h *AuthHandler) signIn(c *gin.Context, response *user.AuthResponse) {
	h.sessions.Acquire(c.Request.Context(), middleware.GetSessionIDFromContext(c), &auth.Identity{
		UserID:      response.User.UID,
		Email:       response.User.Email,
		DisplayName: response.User.DisplayName,
	})
}

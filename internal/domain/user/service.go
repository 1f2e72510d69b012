// internal/domain/user/service.go
package user

import (
	"context"
	"fmt"

	"github.com/artecho/storefront-backend/internal/config"
	"github.com/artecho/storefront-backend/internal/pkg/auth"
)

// Service handles user business logic
type Service struct {
	directory  *Directory
	config     *config.Config
	jwtManager *auth.JWTManager
}

// NewService creates a new user service
func NewService(directory *Directory, jwtManager *auth.JWTManager, cfg *config.Config) *Service {
	return &Service{
		directory:  directory,
		config:     cfg,
		jwtManager: jwtManager,
	}
}

// RegisterRequest represents user registration data
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
}

// LoginRequest represents user login data
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Register creates a new user account and signs it in
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	u, err := s.directory.Add(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		return nil, err
	}
	return s.issue(u, "")
}

// Login authenticates a user
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	u, err := s.directory.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	return s.issue(u, "")
}

// RefreshToken generates new tokens using refresh token
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	u, err := s.directory.Get(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	reuse := ""
	if !s.config.JWT.RefreshTokenRotation {
		reuse = refreshToken
	}
	return s.issue(u, reuse)
}

// GetProfile returns the user with uid
func (s *Service) GetProfile(ctx context.Context, uid string) (*User, error) {
	return s.directory.Get(ctx, uid)
}

func (s *Service) issue(u *User, refreshToken string) (*AuthResponse, error) {
	id := auth.Identity{UserID: u.UID, Email: u.Email, DisplayName: u.DisplayName}

	accessToken, err := s.jwtManager.GenerateAccessToken(id)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	if refreshToken == "" {
		refreshToken, err = s.jwtManager.GenerateRefreshToken(id)
		if err != nil {
			return nil, fmt.Errorf("failed to generate refresh token: %w", err)
		}
	}

	return &AuthResponse{
		User:         u,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.JWT.AccessTokenExpiry.Seconds()),
	}, nil
}

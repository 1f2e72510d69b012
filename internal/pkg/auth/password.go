// internal/pkg/auth/password.go
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/artecho/storefront-backend/internal/config"
)

// ErrWeakPassword is returned when a password fails validation
var ErrWeakPassword = errors.New("password does not meet requirements")

const maxPasswordLength = 72 // bcrypt ignores anything longer

// PasswordManager handles password operations
type PasswordManager struct {
	cost      int
	minLength int
}

// NewPasswordManager creates a new password manager
func NewPasswordManager(cfg *config.Config) *PasswordManager {
	cost := cfg.Security.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	minLength := cfg.Security.MinPasswordLength
	if minLength < 1 {
		minLength = 6
	}
	return &PasswordManager{cost: cost, minLength: minLength}
}

// HashPassword hashes a password using bcrypt
func (p *PasswordManager) HashPassword(password string) (string, error) {
	if err := p.ValidatePassword(password); err != nil {
		return "", err
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hashedBytes), nil
}

// VerifyPassword verifies a password against its hash
func (p *PasswordManager) VerifyPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// ValidatePassword checks the length rules of the signup form
func (p *PasswordManager) ValidatePassword(password string) error {
	if len(password) < p.minLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, p.minLength)
	}
	if len(password) > maxPasswordLength {
		return fmt.Errorf("%w: must be no more than %d characters", ErrWeakPassword, maxPasswordLength)
	}
	return nil
}

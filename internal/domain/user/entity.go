// internal/domain/user/entity.go
package user

import (
	"strings"
	"time"
)

// User is an account in the storefront's user directory
type User struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

// Public returns a copy without credentials
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// GetDisplayName returns display name (name or email)
func (u *User) GetDisplayName() string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	return u.Email
}

func (u User) valid() bool {
	return u.UID != "" && u.Email != "" && u.DisplayName != ""
}

// normalizeEmail lowercases and trims an address
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// displayNameFromEmail uses the local part of the address
func displayNameFromEmail(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

// DefaultUsers are the demo accounts seeded into an empty directory
func DefaultUsers() []User {
	return []User{
		{UID: "user-1-uid", Email: "elena.rodriguez@example.com", DisplayName: "Elena Rodriguez"},
		{UID: "user-2-uid", Email: "arjun.patel@example.com", DisplayName: "Arjun Patel"},
		{UID: "user-3-uid", Email: "ayesha.khan@example.com", DisplayName: "Ayesha Khan"},
	}
}

// internal/domain/user/directory.go
package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/artecho/storefront-backend/internal/pkg/auth"
	"github.com/artecho/storefront-backend/internal/pkg/kvstore"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when registering an address that already exists
	ErrEmailTaken = errors.New("user with this email already exists")
	// ErrNotFound is returned for an unknown user id
	ErrNotFound = errors.New("user not found")
	// ErrInvalidEmail is returned for a malformed address
	ErrInvalidEmail = errors.New("invalid email address")
)

// Directory is the user list, persisted as one JSON value in a local slot
type Directory struct {
	mu           sync.Mutex
	users        []User
	loaded       bool
	slots        kvstore.Store
	key          string
	passwords    *auth.PasswordManager
	demoPassword string
	logger       *logrus.Entry
}

// NewDirectory creates a directory stored under key
func NewDirectory(slots kvstore.Store, key string, passwords *auth.PasswordManager, demoPassword string, logger *logrus.Logger) *Directory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Directory{
		slots:        slots,
		key:          key,
		passwords:    passwords,
		demoPassword: demoPassword,
		logger:       logger.WithField("component", "user_directory"),
	}
}

// loadLocked reads the stored list once. A missing or malformed value yields the demo users.
func (d *Directory) loadLocked(ctx context.Context) error {
	if d.loaded {
		return nil
	}

	raw, ok, err := d.slots.Read(ctx, d.key)
	if err != nil {
		return fmt.Errorf("failed to read users: %w", err)
	}

	users := DefaultUsers()
	if ok {
		var stored []User
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			d.logger.WithError(err).Warn("stored users are malformed, using defaults")
		} else if len(stored) > 0 && allValid(stored) {
			users = stored
		}
	}

	var demoHash string
	for i := range users {
		if users[i].PasswordHash != "" {
			continue
		}
		if demoHash == "" {
			demoHash, err = d.passwords.HashPassword(d.demoPassword)
			if err != nil {
				return fmt.Errorf("failed to hash demo password: %w", err)
			}
		}
		users[i].PasswordHash = demoHash
	}

	d.users = users
	d.loaded = true
	return nil
}

func allValid(users []User) bool {
	for _, u := range users {
		if !u.valid() {
			return false
		}
	}
	return true
}

func (d *Directory) persistLocked(ctx context.Context) error {
	b, err := json.Marshal(d.users)
	if err != nil {
		return fmt.Errorf("failed to encode users: %w", err)
	}
	if err := d.slots.Write(ctx, d.key, string(b)); err != nil {
		return fmt.Errorf("failed to store users: %w", err)
	}
	return nil
}

// Seed writes the current list, demo users included, back to the slot
func (d *Directory) Seed(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.loadLocked(ctx); err != nil {
		return err
	}
	return d.persistLocked(ctx)
}

// List returns every user without credentials
func (d *Directory) List(ctx context.Context) ([]User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.loadLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u.Public())
	}
	return out, nil
}

// Get returns the user with uid
func (d *Directory) Get(ctx context.Context, uid string) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.loadLocked(ctx); err != nil {
		return nil, err
	}
	for _, u := range d.users {
		if u.UID == uid {
			pub := u.Public()
			return &pub, nil
		}
	}
	return nil, ErrNotFound
}

// Add appends a user and persists the list
func (d *Directory) Add(ctx context.Context, email, password, displayName string) (*User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEmail, email)
	}

	hash, err := d.passwords.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = displayNameFromEmail(email)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.loadLocked(ctx); err != nil {
		return nil, err
	}
	for _, u := range d.users {
		if normalizeEmail(u.Email) == email {
			return nil, ErrEmailTaken
		}
	}

	u := User{
		UID:          "user-" + uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	d.users = append(d.users, u)
	if err := d.persistLocked(ctx); err != nil {
		d.users = d.users[:len(d.users)-1]
		return nil, err
	}

	d.logger.WithField("uid", u.UID).Info("user registered")
	pub := u.Public()
	return &pub, nil
}

// Authenticate checks an email and password
func (d *Directory) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)

	d.mu.Lock()
	if err := d.loadLocked(ctx); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	var found *User
	for i := range d.users {
		if normalizeEmail(d.users[i].Email) == email {
			u := d.users[i]
			found = &u
			break
		}
	}
	d.mu.Unlock()

	if found == nil {
		return nil, ErrInvalidCredentials
	}
	if err := d.passwords.VerifyPassword(password, found.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	pub := found.Public()
	return &pub, nil
}

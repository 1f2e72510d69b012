package user

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/artecho/storefront-backend/internal/config"
	"github.com/artecho/storefront-backend/internal/pkg/auth"
	"github.com/artecho/storefront-backend/internal/pkg/kvstore"
)

const usersKey = "mockUsers"

func newTestService(t *testing.T, slots kvstore.Store) (*Service, *Directory) {
	t.Helper()
	cfg := config.FromEnv()
	cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
	cfg.JWT.AccessTokenExpiry = time.Minute
	cfg.Security.BcryptCost = bcrypt.MinCost
	cfg.Auth.DemoPassword = "demo-pass"

	logger, _ := test.NewNullLogger()
	dir := NewDirectory(slots, usersKey, auth.NewPasswordManager(cfg), cfg.Auth.DemoPassword, logger)
	return NewService(dir, auth.NewJWTManager(cfg), cfg), dir
}

func TestDirectory_SeedsDefaultUsers(t *testing.T) {
	_, dir := newTestService(t, kvstore.NewMemory())

	users, err := dir.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "user-1-uid", users[0].UID)
	for _, u := range users {
		assert.Empty(t, u.PasswordHash)
	}
}

func TestDirectory_MalformedValueFallsBackToDefaults(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":       "{{{",
		"missing fields": `[{"uid":"x","email":"x@example.com"}]`,
		"empty list":     `[]`,
	} {
		t.Run(name, func(t *testing.T) {
			slots := kvstore.NewMemory()
			require.NoError(t, slots.Write(context.Background(), usersKey, raw))
			_, dir := newTestService(t, slots)

			users, err := dir.List(context.Background())
			require.NoError(t, err)
			assert.Equal(t, DefaultUsers(), users)
		})
	}
}

func TestService_DemoUserCanLogin(t *testing.T) {
	svc, _ := newTestService(t, kvstore.NewMemory())

	resp, err := svc.Login(context.Background(), &LoginRequest{Email: "Arjun.Patel@example.com", Password: "demo-pass"})
	require.NoError(t, err)
	assert.Equal(t, "user-2-uid", resp.User.UID)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.EqualValues(t, 60, resp.ExpiresIn)

	_, err = svc.Login(context.Background(), &LoginRequest{Email: "arjun.patel@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), &LoginRequest{Email: "nobody@example.com", Password: "demo-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_RegisterPersistsUser(t *testing.T) {
	slots := kvstore.NewMemory()
	svc, _ := newTestService(t, slots)
	ctx := context.Background()

	resp, err := svc.Register(ctx, &RegisterRequest{Email: "new.buyer@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "new.buyer", resp.User.DisplayName)
	assert.Empty(t, resp.User.PasswordHash)

	_, err = svc.Register(ctx, &RegisterRequest{Email: "NEW.BUYER@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Register(ctx, &RegisterRequest{Email: "short@example.com", Password: "123"})
	assert.ErrorIs(t, err, auth.ErrWeakPassword)

	// a fresh directory over the same slot sees the new user
	svc2, dir2 := newTestService(t, slots)
	users, err := dir2.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 4)

	_, err = svc2.Login(ctx, &LoginRequest{Email: "new.buyer@example.com", Password: "secret1"})
	assert.NoError(t, err)
}

func TestService_RefreshToken(t *testing.T) {
	svc, _ := newTestService(t, kvstore.NewMemory())
	ctx := context.Background()

	resp, err := svc.Login(ctx, &LoginRequest{Email: "ayesha.khan@example.com", Password: "demo-pass"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-3-uid", refreshed.User.UID)

	_, err = svc.RefreshToken(ctx, resp.AccessToken)
	assert.Error(t, err)
}

func TestService_GetProfile(t *testing.T) {
	svc, _ := newTestService(t, kvstore.NewMemory())

	u, err := svc.GetProfile(context.Background(), "user-1-uid")
	require.NoError(t, err)
	assert.Equal(t, "Elena Rodriguez", u.GetDisplayName())

	_, err = svc.GetProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirectory_SeedPersistsDemoUsers(t *testing.T) {
	slots := kvstore.NewMemory()
	_, dir := newTestService(t, slots)
	ctx := context.Background()

	require.NoError(t, dir.Seed(ctx))

	raw, ok, err := slots.Read(ctx, usersKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, "elena.rodriguez@example.com")
	assert.Contains(t, raw, "passwordHash")

	_, reopened := newTestService(t, slots)
	u, err := reopened.Authenticate(ctx, "arjun.patel@example.com", "demo-pass")
	require.NoError(t, err)
	assert.Equal(t, "user-2-uid", u.UID)
}

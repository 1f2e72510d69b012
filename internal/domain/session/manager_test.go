package session

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artecho/storefront-backend/internal/domain/cart"
	"github.com/artecho/storefront-backend/internal/pkg/auth"
	"github.com/artecho/storefront-backend/internal/pkg/docstore"
	"github.com/artecho/storefront-backend/internal/pkg/events"
	"github.com/artecho/storefront-backend/internal/pkg/kvstore"
)

func newTestManager(t *testing.T) (*Manager, *docstore.Memory, *kvstore.Memory) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	docs := docstore.NewMemory()
	slots := kvstore.NewMemory()
	m := NewManager(docs, slots, events.NewEmitter(logger), Options{IdleTTL: time.Minute}, logger)
	return m, docs, slots
}

func TestManager_GuestSessionIsInitialized(t *testing.T) {
	m, _, _ := newTestManager(t)

	h := m.Acquire(context.Background(), "s1", nil)

	assert.True(t, h.Identity.Resolved)
	assert.False(t, h.Identity.SignedIn())
	assert.True(t, h.Store.Initialized())
	assert.True(t, h.Store.Scope().IsGuest())
	assert.Same(t, h.Store, m.Acquire(context.Background(), "s1", nil).Store)
}

func TestManager_LoginMergesGuestCart(t *testing.T) {
	m, docs, slots := newTestManager(t)
	ctx := context.Background()

	guest := m.Acquire(ctx, "s1", nil)
	require.NoError(t, guest.Store.AddToCart(ctx, cart.Product{ProductID: "print-1", Price: 4500}, 2))

	user := m.Acquire(ctx, "s1", &auth.Identity{UserID: "u1", Email: "u1@example.com"})
	require.NoError(t, user.Store.Flush(ctx))

	assert.NotSame(t, guest.Store, user.Store)
	assert.Equal(t, "u1", user.Store.Scope().UserID())
	require.Len(t, user.Store.Items(), 1)
	assert.Equal(t, 2, user.Store.Items()[0].Quantity)

	doc, err := docs.Get(ctx, cart.LinePath("u1", "print-1"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, doc.Data["quantity"])

	_, ok, err := slots.Read(ctx, "cart:session:s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_LogoutStartsEmptyGuestCart(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	user := m.Acquire(ctx, "s1", &auth.Identity{UserID: "u1"})
	require.NoError(t, user.Store.AddToCart(ctx, cart.Product{ProductID: "a"}, 1))

	guest := m.Acquire(ctx, "s1", nil)

	assert.True(t, guest.Store.Scope().IsGuest())
	assert.Empty(t, guest.Store.Items())
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	a := m.Acquire(ctx, "s1", nil)
	b := m.Acquire(ctx, "s2", nil)
	require.NoError(t, a.Store.AddToCart(ctx, cart.Product{ProductID: "a"}, 1))

	assert.Empty(t, b.Store.Items())
	assert.Equal(t, 2, m.Count())
}

func TestManager_SweepDropsIdleSessions(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Acquire(ctx, "old", nil)
	now = now.Add(2 * time.Minute)
	m.Acquire(ctx, "fresh", nil)

	assert.Equal(t, 1, m.Sweep(ctx))
	_, ok := m.Peek("old")
	assert.False(t, ok)
	_, ok = m.Peek("fresh")
	assert.True(t, ok)
}

func TestManager_GuestCartSurvivesSweep(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	now := time.Now()
	m.now = func() time.Time { return now }

	h := m.Acquire(ctx, "s1", nil)
	require.NoError(t, h.Store.AddToCart(ctx, cart.Product{ProductID: "a"}, 3))

	now = now.Add(time.Hour)
	require.Equal(t, 1, m.Sweep(ctx))

	again := m.Acquire(ctx, "s1", nil)
	assert.Equal(t, 3, again.Store.Items()[0].Quantity)
}

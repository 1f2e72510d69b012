package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artecho/storefront-backend/internal/domain/identity"
	"github.com/artecho/storefront-backend/internal/pkg/docstore"
	"github.com/artecho/storefront-backend/internal/pkg/events"
	"github.com/artecho/storefront-backend/internal/pkg/kvstore"
)

var errBackend = errors.New("backend unavailable")

// flakyDocs counts calls and fails the ones configured to fail
type flakyDocs struct {
	*docstore.Memory

	mu        sync.Mutex
	lists     int
	listErr   error
	commitErr error
	setErr    error

	// listEntered and listRelease hold List until the test releases it
	listEntered chan struct{}
	listRelease chan struct{}
}

func (f *flakyDocs) blockLists() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listEntered = make(chan struct{}, 1)
	f.listRelease = make(chan struct{})
}

func (f *flakyDocs) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	f.mu.Lock()
	f.lists++
	err := f.listErr
	entered, release := f.listEntered, f.listRelease
	f.mu.Unlock()
	if release != nil {
		entered <- struct{}{}
		<-release
	}
	if err != nil {
		return nil, err
	}
	return f.Memory.List(ctx, collection)
}

func (f *flakyDocs) Commit(ctx context.Context, writes []docstore.Write) error {
	f.mu.Lock()
	err := f.commitErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Memory.Commit(ctx, writes)
}

func (f *flakyDocs) Set(ctx context.Context, path string, data map[string]any, opts docstore.SetOptions) error {
	f.mu.Lock()
	err := f.setErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Memory.Set(ctx, path, data, opts)
}

func (f *flakyDocs) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

// countingSlots counts reads of the local slots
type countingSlots struct {
	*kvstore.Memory

	mu    sync.Mutex
	reads int
}

func (c *countingSlots) Read(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	return c.Memory.Read(ctx, key)
}

func (c *countingSlots) readCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

type harness struct {
	session  *identity.Session
	docs     *flakyDocs
	slots    *countingSlots
	recorder *events.Recorder
	emitter  *events.Emitter
	logger   *logrus.Logger
	store    *Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger, _ := test.NewNullLogger()

	h := &harness{
		session:  identity.NewSession(),
		docs:     &flakyDocs{Memory: docstore.NewMemory()},
		slots:    &countingSlots{Memory: kvstore.NewMemory()},
		recorder: events.NewRecorder(0),
	}
	h.logger = logger
	h.emitter = events.NewEmitter(logger)
	h.emitter.Subscribe(h.recorder.Handle)
	h.store = h.newStore()
	return h
}

// newStore builds another store over the same backends, as a page reload would
func (h *harness) newStore() *Store {
	return NewStore(Dependencies{
		Identity: h.session,
		Docs:     h.docs,
		Slots:    h.slots,
		Emitter:  h.emitter,
		Logger:   h.logger,
	}, Options{})
}

func (h *harness) setCommitErr(err error) {
	h.docs.mu.Lock()
	h.docs.commitErr = err
	h.docs.mu.Unlock()
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, h.store.Flush(context.Background()))
}

func (h *harness) seedRemote(t *testing.T, uid string, lines ...Line) {
	t.Helper()
	for _, l := range lines {
		require.NoError(t, h.docs.Memory.Set(context.Background(), LinePath(uid, l.ProductID), l.toDocument(), docstore.SetOptions{}))
	}
}

func (h *harness) seedSlot(t *testing.T, key, raw string) {
	t.Helper()
	require.NoError(t, h.slots.Memory.Write(context.Background(), key, raw))
}

func docFixture(id string, data map[string]any) docstore.Document {
	return docstore.Document{ID: id, Data: data}
}

func quantities(lines []Line) map[string]int {
	out := make(map[string]int, len(lines))
	for _, l := range lines {
		out[l.ProductID] = l.Quantity
	}
	return out
}

func TestStore_GuestRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.session.ResolveGuest()

	require.NoError(t, h.store.Initialize(ctx))
	assert.Empty(t, h.store.Items())
	assert.True(t, h.store.Initialized())
	assert.Equal(t, StateReady, h.store.State())

	a := Product{ProductID: "a", Price: 10, Name: "A", ImageURL: "u"}
	require.NoError(t, h.store.AddToCart(ctx, a, 1))
	assert.Equal(t, []Line{{ProductID: "a", Name: "A", Price: 10, ImageURL: "u", Quantity: 1}}, h.store.Items())

	require.NoError(t, h.store.AddToCart(ctx, a, 1))
	assert.Equal(t, map[string]int{"a": 2}, quantities(h.store.Items()))

	require.NoError(t, h.store.UpdateQuantity(ctx, "a", 0))
	assert.Empty(t, h.store.Items())

	h.flush(t)
	raw, ok, err := h.slots.Memory.Read(ctx, DefaultGuestKey)
	require.NoError(t, err)
	require.True(t, ok)
	slot := decodeSlot(raw)
	assert.Empty(t, slot.Items)
	assert.NotEmpty(t, slot.MergeID)
	assert.Empty(t, h.recorder.Events())
}

func TestStore_GuestSlotHoldsLatestCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.session.ResolveGuest()
	require.NoError(t, h.store.Initialize(ctx))

	require.NoError(t, h.store.AddToCart(ctx, Product{ProductID: "a", Price: 5}, 2))
	require.NoError(t, h.store.AddToCart(ctx, Product{ProductID: "b", Price: 7}, 1))
	require.NoError(t, h.store.UpdateQuantity(ctx, "a", 4))
	h.flush(t)

	raw, ok, err := h.slots.Memory.Read(ctx, DefaultGuestKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"a": 4, "b": 1}, quantities(decodeSlot(raw).Items))
}

func TestStore_SignInMergesGuestCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedSlot(t, DefaultGuestKey, `[{"productId":"b","quantity":1}]`)

	rule := NewSync(h.session, h.store, nil)
	rule.Start(ctx)
	defer rule.Stop()
	assert.False(t, h.store.Initialized())

	h.session.Login("u1", "u1@example.com")
	h.flush(t)

	assert.Equal(t, []Line{{ProductID: "b", Quantity: 1}}, h.store.Items())

	doc, err := h.docs.Get(ctx, LinePath("u1", "b"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, doc.Data["quantity"])

	_, ok, err := h.slots.Memory.Read(ctx, DefaultGuestKey)
	require.NoError(t, err)
	assert.False(t, ok, "guest slot should be cleared")
	assert.Empty(t, h.recorder.Events())
}

func TestStore_EmptyGuestSlotLeavesRemoteUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	remote := []Line{{ProductID: "p1", Name: "P1", Price: 100, Quantity: 3}, {ProductID: "p2", Price: 5, Quantity: 1}}
	h.seedRemote(t, "u1", remote...)

	h.session.Login("u1", "")
	require.NoError(t, h.store.Initialize(ctx))
	h.flush(t)

	assert.ElementsMatch(t, remote, h.store.Items())
	docs, err := h.docs.Memory.List(ctx, CollectionPath("u1"))
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestStore_MergeAddsQuantities(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedRemote(t, "u1",
		Line{ProductID: "p1", Name: "User P1", Price: 100, ImageURL: "user.png", Quantity: 3},
		Line{ProductID: "p2", Name: "P2", Price: 20, Quantity: 1},
	)
	h.seedSlot(t, DefaultGuestKey, `{"mergeId":"m1","items":[{"productId":"p1","name":"Guest P1","price":1,"quantity":2}]}`)

	h.session.Login("u1", "")
	require.NoError(t, h.store.Initialize(ctx))
	h.flush(t)

	items := h.store.Items()
	assert.Equal(t, map[string]int{"p1": 5, "p2": 1}, quantities(items))
	for _, l := range items {
		if l.ProductID == "p1" {
			assert.Equal(t, "User P1", l.Name)
			assert.EqualValues(t, 100, l.Price)
			assert.Equal(t, "user.png", l.ImageURL)
		}
	}

	doc, err := h.docs.Get(ctx, LinePath("u1", "p1"))
	require.NoError(t, err)
	assert.EqualValues(t, 5, doc.Data["quantity"])

	_, err = h.docs.Get(ctx, MergeMarkerPath("u1", "m1"))
	assert.NoError(t, err, "merge marker should be written")

	_, ok, _ := h.slots.Memory.Read(ctx, DefaultGuestKey)
	assert.False(t, ok)
}

func TestStore_MergeAppendsNewProducts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedRemote(t, "u1", Line{ProductID: "p1", Quantity: 3})
	h.seedSlot(t, DefaultGuestKey, `[{"productId":"p3","quantity":1}]`)

	h.session.Login("u1", "")
	require.NoError(t, h.store.Initialize(ctx))
	h.flush(t)

	assert.Equal(t, map[string]int{"p1": 3, "p3": 1}, quantities(h.store.Items()))
}

func TestStore_MergeCommitFailureEmitsOneWriteEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.docs.commitErr = errBackend
	h.seedRemote(t, "u1", Line{ProductID: "p1", Quantity: 1})
	h.seedSlot(t, DefaultGuestKey, `[{"productId":"p1","quantity":2},{"productId":"p2","quantity":1}]`)

	h.session.Login("u1", "")
	require.NoError(t, h.store.Initialize(ctx))
	h.flush(t)

	evs := h.recorder.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.OperationWrite, evs[0].Operation)
	assert.Contains(t, evs[0].Path, "users/u1/cart")
	assert.ErrorIs(t, evs[0], errBackend)

	assert.True(t, h.store.Initialized())
	assert.Equal(t, map[string]int{"p1": 3, "p2": 1}, quantities(h.store.Items()))

	_, ok, _ := h.slots.Memory.Read(ctx, DefaultGuestKey)
	assert.True(t, ok, "guest slot is kept when the merge did not persist")
}

func TestStore_MergeAlreadyAppliedIsNotRepeated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedRemote(t, "u1", Line{ProductID: "p1", Quantity: 5})
	require.NoError(t, h.docs.Memory.Set(ctx, MergeMarkerPath("u1", "m1"), map[string]any{"lines": 1}, docstore.SetOptions{}))
	h.seedSlot(t, DefaultGuestKey, `{"mergeId":"m1","items":[{"productId":"p1","quantity":2}]}`)

	h.session.Login("u1", "")
	require.NoError(t, h.store.Initialize(ctx))
	h.flush(t)

	assert.Equal(t, map[string]int{"p1": 5}, quantities(h.store.Items()))
	_, ok, _ := h.slots.Memory.Read(ctx, DefaultGuestKey)
	assert.False(t, ok)
}

func TestStore_ListFailureFallsBackToMirror(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.docs.listErr = errBackend
	h.seedSlot(t, DefaultUserKeyPrefix+"u1", `{"items":[{"productId":"p9","quantity":2}]}`)
	h.seedSlot(t, DefaultGuestKey, `[{"productId":"p1","quantity":1}]`)

	h.session.Login("u1", "")
	require.NoError(t, h.store.Initialize(ctx))
	h.flush(t)

	assert.Equal(t, map[string]int{"p9": 2, "p1": 1}, quantities(h.store.Items()))

	evs := h.recorder.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.OperationList, evs[0].Operation)
	assert.Equal(t, CollectionPath("u1"), evs[0].Path)

	_, ok, _ := h.slots.Memory.Read(ctx, DefaultGuestKey)
	assert.True(t, ok)
}

func TestStore_InitializeTwiceReadsOnce(t *testing.T) {
	t.Run("guest", func(t *testing.T) {
		h := newHarness(t)
		h.session.ResolveGuest()

		require.NoError(t, h.store.Initialize(context.Background()))
		require.NoError(t, h.store.Initialize(context.Background()))

		assert.Equal(t, 1, h.slots.readCalls())
	})

	t.Run("user", func(t *testing.T) {
		h := newHarness(t)
		h.session.Login("u1", "")

		require.NoError(t, h.store.Initialize(context.Background()))
		require.NoError(t, h.store.Initialize(context.Background()))

		assert.Equal(t, 1, h.docs.listCalls())
	})
}

func TestStore_InitializedOnlyAfterLoadCompletes(t *testing.T) {
	h := newHarness(t)
	h.seedRemote(t, "u1", Line{ProductID: "p1", Quantity: 2})
	h.docs.blockLists()
	h.session.Login("u1", "")

	done := make(chan error, 1)
	go func() { done <- h.store.Initialize(context.Background()) }()
	<-h.docs.listEntered

	assert.Equal(t, StateInitializing, h.store.State())
	assert.False(t, h.store.Initialized())
	assert.Empty(t, h.store.Items())

	close(h.docs.listRelease)
	require.NoError(t, <-done)

	assert.True(t, h.store.Initialized())
	assert.Equal(t, map[string]int{"p1": 2}, quantities(h.store.Items()))
}

func TestStore_InitializeDuringLoadIsNoop(t *testing.T) {
	h := newHarness(t)
	h.docs.blockLists()
	h.session.Login("u1", "")

	done := make(chan error, 1)
	go func() { done <- h.store.Initialize(context.Background()) }()
	<-h.docs.listEntered

	second := make(chan error, 1)
	go func() { second <- h.store.Initialize(context.Background()) }()
	require.NoError(t, <-second)

	assert.Equal(t, 1, h.docs.listCalls())
	assert.Equal(t, StateInitializing, h.store.State())
	assert.False(t, h.store.Initialized())

	close(h.docs.listRelease)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.docs.listCalls())
	assert.Equal(t, StateReady, h.store.State())
}

func TestStore_FailedMergeIsNotRepeatedAfterUserWrites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedSlot(t, DefaultGuestKey, `{"mergeId":"m1","items":[{"productId":"p1","quantity":2},{"productId":"p2","quantity":1}]}`)
	h.setCommitErr(errBackend)

	h.session.Login("u1", "")
	require.NoError(t, h.store.Initialize(ctx))
	h.flush(t)
	assert.Equal(t, map[string]int{"p1": 2, "p2": 1}, quantities(h.store.Items()))

	h.setCommitErr(nil)
	require.NoError(t, h.store.UpdateQuantity(ctx, "p2", 3))
	h.flush(t)

	raw, ok, err := h.slots.Memory.Read(ctx, DefaultGuestKey)
	require.NoError(t, err)
	require.True(t, ok, "unwritten guest lines stay for the next load")
	slot := decodeSlot(raw)
	assert.Equal(t, "m1", slot.MergeID)
	assert.Equal(t, map[string]int{"p1": 2}, quantities(slot.Items))

	reloaded := h.newStore()
	require.NoError(t, reloaded.Initialize(ctx))
	require.NoError(t, reloaded.Flush(ctx))
	assert.Equal(t, map[string]int{"p1": 2, "p2": 3}, quantities(reloaded.Items()))

	_, ok, err = h.slots.Memory.Read(ctx, DefaultGuestKey)
	require.NoError(t, err)
	assert.False(t, ok)

	again := h.newStore()
	require.NoError(t, again.Initialize(ctx))
	assert.Equal(t, map[string]int{"p1": 2, "p2": 3}, quantities(again.Items()))
}

func TestStore_FailedMergeSettledByClearCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedSlot(t, DefaultGuestKey, `{"mergeId":"m1","items":[{"productId":"p1","quantity":2}]}`)
	h.setCommitErr(errBackend)

	h.session.Login("u1", "")
	require.NoError(t, h.store.Initialize(ctx))
	h.flush(t)

	h.setCommitErr(nil)
	require.NoError(t, h.store.ClearCart(ctx))
	h.flush(t)

	_, ok, err := h.slots.Memory.Read(ctx, DefaultGuestKey)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded := h.newStore()
	require.NoError(t, reloaded.Initialize(ctx))
	assert.Empty(t, reloaded.Items())
}

func TestStore_ClearCartDeletesLargeCartsInBatches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lines := make([]Line, 0, docstore.MaxBatchWrites+20)
	for i := range docstore.MaxBatchWrites + 20 {
		lines = append(lines, Line{ProductID: fmt.Sprintf("p%04d", i), Quantity: 1})
	}
	h.seedRemote(t, "u1", lines...)
	h.session.Login("u1", "")
	require.NoError(t, h.store.Initialize(ctx))

	require.NoError(t, h.store.ClearCart(ctx))
	h.flush(t)

	docs, err := h.docs.Memory.List(ctx, CollectionPath("u1"))
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, h.recorder.Events())
}

func TestStore_SkipsRemoteLinesWithFractionalNumbers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.docs.Memory.Set(ctx, LinePath("u1", "bad"), map[string]any{"price": 19.99, "quantity": 1}, docstore.SetOptions{}))
	h.seedRemote(t, "u1", Line{ProductID: "ok", Price: 1999, Quantity: 1})
	h.session.Login("u1", "")

	require.NoError(t, h.store.Initialize(ctx))

	assert.Equal(t, map[string]int{"ok": 1}, quantities(h.store.Items()))
}

func TestStore_InitializeBeforeResolution(t *testing.T) {
	h := newHarness(t)

	err := h.store.Initialize(context.Background())

	assert.ErrorIs(t, err, ErrIdentityUnresolved)
	assert.Equal(t, StateUninitialized, h.store.State())
	assert.Equal(t, 0, h.slots.readCalls())
}

func TestStore_UserMutationsPersistDocuments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.session.Login("u1", "")
	require.NoError(t, h.store.Initialize(ctx))

	require.NoError(t, h.store.AddToCart(ctx, Product{ProductID: "a", Name: "A", Price: 10}, 2))
	require.NoError(t, h.store.AddToCart(ctx, Product{ProductID: "b", Price: 4}, 1))
	require.NoError(t, h.store.UpdateQuantity(ctx, "a", 6))
	require.NoError(t, h.store.RemoveFromCart(ctx, "b"))
	h.flush(t)

	doc, err := h.docs.Get(ctx, LinePath("u1", "a"))
	require.NoError(t, err)
	assert.EqualValues(t, 6, doc.Data["quantity"])
	assert.Equal(t, "A", doc.Data["name"])

	_, err = h.docs.Get(ctx, LinePath("u1", "b"))
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	raw, ok, err := h.slots.Memory.Read(ctx, DefaultUserKeyPrefix+"u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"a": 6}, quantities(decodeSlot(raw).Items))
	assert.Empty(t, h.recorder.Events())
}

func TestStore_AddFailureKeepsOptimisticLine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.session.Login("u1", "")
	require.NoError(t, h.store.Initialize(ctx))
	h.docs.setErr = errBackend

	require.NoError(t, h.store.AddToCart(ctx, Product{ProductID: "a", Price: 10}, 1))
	h.flush(t)

	assert.Equal(t, map[string]int{"a": 1}, quantities(h.store.Items()))

	evs := h.recorder.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.OperationWrite, evs[0].Operation)
	assert.Equal(t, LinePath("u1", "a"), evs[0].Path)
	assert.Equal(t, Line{ProductID: "a", Price: 10, Quantity: 1}, evs[0].RequestData)

	failed := h.store.Outbox().Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "a", failed[0].Op.LineID)
}

func TestStore_UpdateFailureReportsUpdate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.session.Login("u1", "")
	require.NoError(t, h.store.Initialize(ctx))
	require.NoError(t, h.store.AddToCart(ctx, Product{ProductID: "a"}, 1))
	h.flush(t)

	h.docs.setErr = errBackend
	require.NoError(t, h.store.UpdateQuantity(ctx, "a", 3))
	h.flush(t)

	evs := h.recorder.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.OperationUpdate, evs[0].Operation)
}

func TestStore_ClearCartDeletesUserNamespace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedRemote(t, "u1", Line{ProductID: "p1", Quantity: 1}, Line{ProductID: "p2", Quantity: 2})
	h.session.Login("u1", "")
	require.NoError(t, h.store.Initialize(ctx))

	require.NoError(t, h.store.ClearCart(ctx))
	assert.Empty(t, h.store.Items())
	h.flush(t)

	docs, err := h.docs.Memory.List(ctx, CollectionPath("u1"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestStore_ClearCartFailureReportsDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedRemote(t, "u1", Line{ProductID: "p1", Quantity: 1})
	h.session.Login("u1", "")
	require.NoError(t, h.store.Initialize(ctx))
	h.docs.commitErr = errBackend

	require.NoError(t, h.store.ClearCart(ctx))
	h.flush(t)

	evs := h.recorder.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.OperationDelete, evs[0].Operation)
	assert.Equal(t, CollectionPath("u1"), evs[0].Path)
}

func TestStore_RejectsCallerMisuse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.session.ResolveGuest()
	require.NoError(t, h.store.Initialize(ctx))

	assert.ErrorIs(t, h.store.AddToCart(ctx, Product{}, 1), ErrInvalidLine)
	assert.ErrorIs(t, h.store.AddToCart(ctx, Product{ProductID: "a"}, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, h.store.UpdateQuantity(ctx, "missing", 2), ErrLineNotFound)
	assert.NoError(t, h.store.RemoveFromCart(ctx, "missing"))
	assert.Empty(t, h.store.Items())
}

func TestStore_UpdateToZeroMatchesRemove(t *testing.T) {
	for _, q := range []int{0, -1, -20} {
		h := newHarness(t)
		ctx := context.Background()
		h.session.ResolveGuest()
		require.NoError(t, h.store.Initialize(ctx))
		require.NoError(t, h.store.AddToCart(ctx, Product{ProductID: "a"}, 1))
		require.NoError(t, h.store.AddToCart(ctx, Product{ProductID: "b"}, 1))

		require.NoError(t, h.store.UpdateQuantity(ctx, "a", q))

		assert.Equal(t, map[string]int{"b": 1}, quantities(h.store.Items()))
	}
}

func TestStore_CallerCancellationDoesNotStopPersistence(t *testing.T) {
	h := newHarness(t)
	h.session.Login("u1", "")
	require.NoError(t, h.store.Initialize(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.store.AddToCart(ctx, Product{ProductID: "a"}, 1))
	cancel()
	h.flush(t)

	_, err := h.docs.Get(context.Background(), LinePath("u1", "a"))
	assert.NoError(t, err)
}

// internal/domain/cart/store.go
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/artecho/storefront-backend/internal/domain/identity"
	"github.com/artecho/storefront-backend/internal/pkg/docstore"
	"github.com/artecho/storefront-backend/internal/pkg/events"
	"github.com/artecho/storefront-backend/internal/pkg/kvstore"
)

// State is the lifecycle of a Store
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

// String implements fmt.Stringer
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const (
	// DefaultGuestKey is the local slot used when no per-session key is configured
	DefaultGuestKey = "guestCart"
	// DefaultUserKeyPrefix prefixes the per-user mirror slot
	DefaultUserKeyPrefix = "cart:user:"

	wholeCart = "*"
)

// Options configures a Store
type Options struct {
	GuestKey       string
	UserKeyPrefix  string
	FailedOpsLimit int
}

// Dependencies are the collaborators of a Store
type Dependencies struct {
	Identity identity.Signal
	Docs     docstore.Store
	Slots    kvstore.Store
	Emitter  *events.Emitter
	Logger   *logrus.Logger
}

// Store is the cart of one session. Mutations update memory first and persist
// asynchronously; persistence failures are published on the emitter, never returned.
type Store struct {
	mu      sync.RWMutex
	lines   []Line
	state   State
	mergeID string // identifies the guest slot content for merge-on-login
	// unmerged is set while the guest slot holds lines whose merge did not persist
	unmerged bool

	identity identity.Signal
	docs     docstore.Store
	slots    kvstore.Store
	emitter  *events.Emitter
	outbox   *Outbox
	opts     Options
	logger   *logrus.Entry
}

// NewStore creates an uninitialized store
func NewStore(deps Dependencies, opts Options) *Store {
	if opts.GuestKey == "" {
		opts.GuestKey = DefaultGuestKey
	}
	if opts.UserKeyPrefix == "" {
		opts.UserKeyPrefix = DefaultUserKeyPrefix
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithFields(logrus.Fields{"component": "cart", "guest_key": opts.GuestKey})

	return &Store{
		lines:    []Line{},
		identity: deps.Identity,
		docs:     deps.Docs,
		slots:    deps.Slots,
		emitter:  deps.Emitter,
		outbox:   NewOutbox(deps.Emitter, entry, opts.FailedOpsLimit),
		opts:     opts,
		logger:   entry,
	}
}

// Items returns a copy of the current lines
func (s *Store) Items() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneLines(s.lines)
}

// Totals summarises the current lines
func (s *Store) Totals() Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CalculateTotals(s.lines)
}

// State returns the lifecycle state
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Initialized reports whether the first load has completed
func (s *Store) Initialized() bool {
	return s.State() == StateReady
}

// Scope derives the current owner from the identity signal
func (s *Store) Scope() Scope {
	return ScopeOf(s.identity.Current())
}

// Outbox exposes the persistence queue
func (s *Store) Outbox() *Outbox {
	return s.outbox
}

// Flush waits for queued persistence calls to finish
func (s *Store) Flush(ctx context.Context) error {
	return s.outbox.Flush(ctx)
}

// Initialize loads the cart for the current scope once. Later calls are no-ops.
// Persistence failures are published, and the store becomes ready regardless.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return nil
	}
	current := s.identity.Current()
	if !current.Resolved {
		s.mu.Unlock()
		return ErrIdentityUnresolved
	}
	s.state = StateInitializing
	s.mu.Unlock()

	scope := ScopeOf(current)
	var (
		lines    []Line
		mergeID  string
		unmerged bool
	)
	if scope.IsGuest() {
		slot := s.readSlot(ctx, s.opts.GuestKey)
		lines, mergeID = slot.Items, slot.MergeID
	} else {
		lines, unmerged = s.loadUser(ctx, scope.UserID())
	}

	s.mu.Lock()
	s.lines = lines
	s.mergeID = mergeID
	s.unmerged = unmerged
	s.state = StateReady
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"scope": scope.String(), "lines": len(lines)}).Debug("cart initialized")

	if !scope.IsGuest() {
		s.enqueueMirror(ctx, scope.UserID(), wholeCart, lines)
	}
	return nil
}

// loadUser lists the user's lines and folds the guest slot into them. The flag
// reports that the guest slot was kept because the merge did not persist.
func (s *Store) loadUser(ctx context.Context, userID string) ([]Line, bool) {
	remote, listErr := s.listRemote(ctx, userID)
	if listErr != nil {
		s.report(CollectionPath(userID), events.OperationList, nil, listErr)
		remote = s.readSlot(ctx, s.userKey(userID)).Items
	}

	guest := s.readSlot(ctx, s.opts.GuestKey)
	if len(guest.Items) == 0 {
		return remote, false
	}

	merged, affected := Merge(remote, guest.Items)
	if listErr != nil {
		// the remote state is unknown; keep the guest slot for the next initialization
		return merged, true
	}

	if guest.MergeID != "" {
		applied, err := s.mergeApplied(ctx, userID, guest.MergeID)
		if err != nil {
			s.report(MergeMarkerPath(userID, guest.MergeID), events.OperationRead, nil, err)
		}
		if applied {
			s.removeSlot(ctx, s.opts.GuestKey)
			return remote, false
		}
	}

	mergeID := guest.MergeID
	if mergeID == "" {
		mergeID = uuid.NewString()
	}

	writes := make([]docstore.Write, 0, len(affected)+1)
	for _, line := range affected {
		writes = append(writes, docstore.Write{
			Kind:  docstore.WriteSet,
			Path:  LinePath(userID, line.ProductID),
			Data:  line.toDocument(),
			Merge: true,
		})
	}
	writes = append(writes, docstore.Write{
		Kind: docstore.WriteSet,
		Path: MergeMarkerPath(userID, mergeID),
		Data: map[string]any{
			"mergedAt": time.Now().UTC().Format(time.RFC3339Nano),
			"lines":    len(affected),
		},
	})

	if err := s.docs.Commit(ctx, writes); err != nil {
		s.report(CollectionPath(userID), events.OperationWrite, affected, err)
		return merged, true
	}

	s.removeSlot(ctx, s.opts.GuestKey)
	return merged, false
}

func (s *Store) listRemote(ctx context.Context, userID string) ([]Line, error) {
	docs, err := s.docs.List(ctx, CollectionPath(userID))
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(docs))
	for _, doc := range docs {
		line, err := lineFromDocument(doc)
		if err != nil {
			s.logger.WithError(err).WithField("doc_id", doc.ID).Warn("skipping unreadable cart line")
			continue
		}
		lines = append(lines, line)
	}
	return normalizeLines(lines), nil
}

func (s *Store) mergeApplied(ctx context.Context, userID, mergeID string) (bool, error) {
	_, err := s.docs.Get(ctx, MergeMarkerPath(userID, mergeID))
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// readSlot reads a local slot; read failures are published and treated as empty
func (s *Store) readSlot(ctx context.Context, key string) guestSlot {
	raw, ok, err := s.slots.Read(ctx, key)
	if err != nil {
		s.report(LocalPath(key), events.OperationRead, nil, err)
		return guestSlot{Items: []Line{}}
	}
	if !ok {
		return guestSlot{Items: []Line{}}
	}
	return decodeSlot(raw)
}

func (s *Store) removeSlot(ctx context.Context, key string) {
	if err := s.slots.Remove(ctx, key); err != nil {
		s.report(LocalPath(key), events.OperationDelete, nil, err)
	}
}

// AddToCart adds quantity units of p, creating the line if needed
func (s *Store) AddToCart(ctx context.Context, p Product, quantity int) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	scope := s.Scope()

	s.mu.Lock()
	lines, line := addLine(s.lines, p, quantity)
	s.lines = lines
	snapshot, mergeID := s.snapshotLocked(scope)
	s.mu.Unlock()

	if scope.IsGuest() {
		s.enqueueGuest(ctx, line.ProductID, events.OperationWrite, snapshot, mergeID)
		return nil
	}
	s.enqueueUpsert(ctx, scope.UserID(), line, events.OperationWrite)
	s.enqueueMirror(ctx, scope.UserID(), line.ProductID, snapshot)
	return nil
}

// RemoveFromCart drops the line for productID; unknown ids are a no-op in memory
func (s *Store) RemoveFromCart(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fmt.Errorf("%w: productId is required", ErrInvalidLine)
	}
	scope := s.Scope()

	s.mu.Lock()
	s.lines, _ = removeLine(s.lines, productID)
	snapshot, mergeID := s.snapshotLocked(scope)
	s.mu.Unlock()

	if scope.IsGuest() {
		s.enqueueGuest(ctx, productID, events.OperationDelete, snapshot, mergeID)
		return nil
	}

	uid := scope.UserID()
	path := LinePath(uid, productID)
	s.outbox.Enqueue(ctx, Op{LineID: productID, Operation: events.OperationDelete, Path: path},
		func(ctx context.Context) error {
			if err := s.docs.Delete(ctx, path); err != nil {
				return err
			}
			s.settleGuestLines(ctx, productID)
			return nil
		})
	s.enqueueMirror(ctx, uid, productID, snapshot)
	return nil
}

// UpdateQuantity sets an absolute quantity. Zero or less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveFromCart(ctx, productID)
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fmt.Errorf("%w: productId is required", ErrInvalidLine)
	}
	scope := s.Scope()

	s.mu.Lock()
	lines, line, ok := setQuantity(s.lines, productID, quantity)
	if !ok {
		s.mu.Unlock()
		return ErrLineNotFound
	}
	s.lines = lines
	snapshot, mergeID := s.snapshotLocked(scope)
	s.mu.Unlock()

	if scope.IsGuest() {
		s.enqueueGuest(ctx, productID, events.OperationUpdate, snapshot, mergeID)
		return nil
	}
	s.enqueueUpsert(ctx, scope.UserID(), line, events.OperationUpdate)
	s.enqueueMirror(ctx, scope.UserID(), productID, snapshot)
	return nil
}

// ClearCart empties the cart
func (s *Store) ClearCart(ctx context.Context) error {
	scope := s.Scope()

	s.mu.Lock()
	s.lines = []Line{}
	snapshot, mergeID := s.snapshotLocked(scope)
	s.mu.Unlock()

	if scope.IsGuest() {
		s.enqueueGuest(ctx, wholeCart, events.OperationDelete, snapshot, mergeID)
		return nil
	}

	uid := scope.UserID()
	collection := CollectionPath(uid)
	s.outbox.Enqueue(ctx, Op{LineID: wholeCart, Operation: events.OperationDelete, Path: collection},
		func(ctx context.Context) error {
			docs, err := s.docs.List(ctx, collection)
			if err != nil {
				return fmt.Errorf("list %s: %w", collection, err)
			}
			writes := make([]docstore.Write, 0, len(docs))
			for _, doc := range docs {
				writes = append(writes, docstore.Write{Kind: docstore.WriteDelete, Path: docstore.Join(collection, doc.ID)})
			}
			// deletes carry no atomicity requirement, so large carts go in several batches
			if err := docstore.CommitChunked(ctx, s.docs, writes, docstore.MaxBatchWrites); err != nil {
				return err
			}
			s.settleGuestLines(ctx, wholeCart)
			return nil
		})
	s.enqueueMirror(ctx, uid, wholeCart, snapshot)
	return nil
}

// snapshotLocked copies the lines for a slot rewrite; the guest merge id is minted on first write
func (s *Store) snapshotLocked(scope Scope) ([]Line, string) {
	if scope.IsGuest() && s.mergeID == "" {
		s.mergeID = uuid.NewString()
	}
	return cloneLines(s.lines), s.mergeID
}

func (s *Store) enqueueGuest(ctx context.Context, lineID string, op events.Operation, lines []Line, mergeID string) {
	key := s.opts.GuestKey
	s.outbox.Enqueue(ctx, Op{LineID: lineID, Operation: op, Path: LocalPath(key), RequestData: lines},
		func(ctx context.Context) error {
			return s.writeSlot(ctx, key, guestSlot{MergeID: mergeID, Items: lines})
		})
}

func (s *Store) enqueueUpsert(ctx context.Context, userID string, line Line, op events.Operation) {
	path := LinePath(userID, line.ProductID)
	data := line.toDocument()
	s.outbox.Enqueue(ctx, Op{LineID: line.ProductID, Operation: op, Path: path, RequestData: line},
		func(ctx context.Context) error {
			if err := s.docs.Set(ctx, path, data, docstore.SetOptions{Merge: true}); err != nil {
				return err
			}
			s.settleGuestLines(ctx, line.ProductID)
			return nil
		})
}

// settleGuestLines drops productID (or every line, for wholeCart) from a guest
// slot whose merge did not persist. The user write already carries the merged
// quantity, so the guest line must not be merged again on the next load.
func (s *Store) settleGuestLines(ctx context.Context, productID string) {
	s.mu.RLock()
	unmerged := s.unmerged
	s.mu.RUnlock()
	if !unmerged {
		return
	}

	key := s.opts.GuestKey
	raw, ok, err := s.slots.Read(ctx, key)
	if err != nil {
		s.report(LocalPath(key), events.OperationRead, nil, err)
		return
	}
	slot := guestSlot{Items: []Line{}}
	if ok {
		slot = decodeSlot(raw)
	}

	kept := make([]Line, 0, len(slot.Items))
	if productID != wholeCart {
		for _, l := range slot.Items {
			if l.ProductID != productID {
				kept = append(kept, l)
			}
		}
	}

	switch {
	case len(kept) == 0:
		if ok {
			if err := s.slots.Remove(ctx, key); err != nil {
				s.report(LocalPath(key), events.OperationDelete, nil, err)
				return
			}
		}
		s.mu.Lock()
		s.unmerged = false
		s.mu.Unlock()
	case len(kept) < len(slot.Items):
		if err := s.writeSlot(ctx, key, guestSlot{MergeID: slot.MergeID, Items: kept}); err != nil {
			s.report(LocalPath(key), events.OperationWrite, kept, err)
		}
	}
}

// enqueueMirror keeps the per-user local copy used when the remote list fails
func (s *Store) enqueueMirror(ctx context.Context, userID, lineID string, lines []Line) {
	key := s.userKey(userID)
	s.outbox.Enqueue(ctx, Op{LineID: lineID, Operation: events.OperationWrite, Path: LocalPath(key)},
		func(ctx context.Context) error {
			return s.writeSlot(ctx, key, guestSlot{Items: lines})
		})
}

func (s *Store) writeSlot(ctx context.Context, key string, slot guestSlot) error {
	raw, err := encodeSlot(slot)
	if err != nil {
		return fmt.Errorf("encode slot %s: %w", key, err)
	}
	return s.slots.Write(ctx, key, raw)
}

func (s *Store) userKey(userID string) string {
	return s.opts.UserKeyPrefix + userID
}

// report publishes a failure that happened outside the outbox
func (s *Store) report(path string, op events.Operation, data any, err error) {
	s.logger.WithFields(logrus.Fields{"path": path, "operation": op}).WithError(err).Warn("cart persistence failed")
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(events.PersistenceError{Path: path, Operation: op, RequestData: data, Err: err})
}

// MarshalJSON renders the cart for API responses
func (s *Store) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(struct {
		Items  []Line `json:"items"`
		Totals Totals `json:"totals"`
		State  string `json:"state"`
	}{
		Items:  cloneLines(s.lines),
		Totals: CalculateTotals(s.lines),
		State:  s.state.String(),
	})
}

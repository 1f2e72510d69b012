// internal/domain/session/manager.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/artecho/storefront-backend/internal/domain/cart"
	"github.com/artecho/storefront-backend/internal/domain/identity"
	"github.com/artecho/storefront-backend/internal/pkg/auth"
	"github.com/artecho/storefront-backend/internal/pkg/docstore"
	"github.com/artecho/storefront-backend/internal/pkg/events"
	"github.com/artecho/storefront-backend/internal/pkg/kvstore"
)

// Options configures a Manager
type Options struct {
	GuestKeyPrefix string
	UserKeyPrefix  string
	FailedOpsLimit int
	IdleTTL        time.Duration
}

// Handle is what a request gets for its browser session
type Handle struct {
	ID       string
	Identity identity.State
	Store    *cart.Store
}

type entry struct {
	mu       sync.Mutex // serializes identity transitions
	identity *identity.Session
	store    *cart.Store
	sync     *cart.Sync
	lastSeen time.Time
}

// Manager keeps one identity, cart store and sync rule per browser session.
// A session whose user changes gets a fresh store, the way a page reload would.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry

	docs    docstore.Store
	slots   kvstore.Store
	emitter *events.Emitter
	opts    Options
	logger  *logrus.Logger
	log     *logrus.Entry
	now     func() time.Time
}

// NewManager creates an empty manager
func NewManager(docs docstore.Store, slots kvstore.Store, emitter *events.Emitter, opts Options, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.GuestKeyPrefix == "" {
		opts.GuestKeyPrefix = "cart:session:"
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	return &Manager{
		sessions: make(map[string]*entry),
		docs:     docs,
		slots:    slots,
		emitter:  emitter,
		opts:     opts,
		logger:   logger,
		log:      logger.WithField("component", "session_manager"),
		now:      time.Now,
	}
}

// Acquire returns the session's cart, resolving its identity to user (nil for a guest).
// The returned store is initialized unless initialization is still running elsewhere.
func (m *Manager) Acquire(ctx context.Context, sessionID string, user *auth.Identity) Handle {
	e := m.entryFor(ctx, sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.identity.Current()
	targetUID := ""
	if user != nil {
		targetUID = user.UserID
	}

	if current.Resolved && current.UserID != targetUID {
		m.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"from":       current.UserID,
			"to":         targetUID,
		}).Info("identity changed, reloading cart")
		m.reload(ctx, sessionID, e)
	}

	if user != nil {
		e.identity.Login(user.UserID, user.Email)
	} else {
		e.identity.ResolveGuest()
	}
	e.lastSeen = m.now()

	return Handle{ID: sessionID, Identity: e.identity.Current(), Store: e.store}
}

// Peek returns the session without changing its identity
func (m *Manager) Peek(sessionID string) (Handle, bool) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return Handle{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return Handle{ID: sessionID, Identity: e.identity.Current(), Store: e.store}, true
}

func (m *Manager) entryFor(ctx context.Context, sessionID string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[sessionID]; ok {
		return e
	}
	e := &entry{lastSeen: m.now()}
	m.attach(ctx, sessionID, e)
	m.sessions[sessionID] = e
	return e
}

// attach gives e a fresh unresolved identity, store and sync rule
func (m *Manager) attach(ctx context.Context, sessionID string, e *entry) {
	e.identity = identity.NewSession()
	e.store = cart.NewStore(cart.Dependencies{
		Identity: e.identity,
		Docs:     m.docs,
		Slots:    m.slots,
		Emitter:  m.emitter,
		Logger:   m.logger,
	}, cart.Options{
		GuestKey:       m.opts.GuestKeyPrefix + sessionID,
		UserKeyPrefix:  m.opts.UserKeyPrefix,
		FailedOpsLimit: m.opts.FailedOpsLimit,
	})
	e.sync = cart.NewSync(e.identity, e.store, m.logger)
	e.sync.Start(context.WithoutCancel(ctx))
}

func (m *Manager) reload(ctx context.Context, sessionID string, e *entry) {
	e.sync.Stop()
	// earlier writes to the guest slot must land before the next store reads it
	if err := e.store.Flush(ctx); err != nil {
		m.log.WithError(err).WithField("session_id", sessionID).Warn("flush before reload interrupted")
	}
	m.attach(ctx, sessionID, e)
}

// Sweep drops sessions idle for longer than the configured TTL and returns how many were dropped
func (m *Manager) Sweep(ctx context.Context) int {
	cutoff := m.now().Add(-m.opts.IdleTTL)

	m.mu.Lock()
	var idle []*entry
	for id, e := range m.sessions {
		e.mu.Lock()
		stale := e.lastSeen.Before(cutoff)
		e.mu.Unlock()
		if stale {
			idle = append(idle, e)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range idle {
		e.mu.Lock()
		e.sync.Stop()
		if err := e.store.Flush(ctx); err != nil {
			m.log.WithError(err).Warn("flush of idle session interrupted")
		}
		e.mu.Unlock()
	}

	if len(idle) > 0 {
		m.log.WithField("count", len(idle)).Debug("swept idle sessions")
	}
	return len(idle)
}

// Run sweeps on every tick until ctx is done
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// FlushAll waits for every session's pending persistence
func (m *Manager) FlushAll(ctx context.Context) error {
	m.mu.Lock()
	stores := make([]*cart.Store, 0, len(m.sessions))
	for _, e := range m.sessions {
		e.mu.Lock()
		stores = append(stores, e.store)
		e.mu.Unlock()
	}
	m.mu.Unlock()

	for _, s := range stores {
		if err := s.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

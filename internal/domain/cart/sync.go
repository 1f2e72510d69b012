// internal/domain/cart/sync.go
package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/artecho/storefront-backend/internal/domain/identity"
)

// Sync initializes a Store once the identity signal has resolved
type Sync struct {
	signal identity.Signal
	store  *Store
	logger *logrus.Entry

	mu          sync.Mutex
	unsubscribe func()
}

// NewSync creates the rule; call Start to attach it
func NewSync(signal identity.Signal, store *Store, logger *logrus.Logger) *Sync {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sync{
		signal: signal,
		store:  store,
		logger: logger.WithField("component", "cart_sync"),
	}
}

// Start subscribes to the signal and evaluates the current state immediately
func (s *Sync) Start(ctx context.Context) {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.mu.Unlock()
		return
	}
	s.unsubscribe = s.signal.Subscribe(func(st identity.State) {
		s.evaluate(ctx, st)
	})
	s.mu.Unlock()

	s.evaluate(ctx, s.signal.Current())
}

// Stop detaches the rule from the signal
func (s *Sync) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *Sync) evaluate(ctx context.Context, st identity.State) {
	if !st.Resolved || s.store.Initialized() {
		return
	}
	if err := s.store.Initialize(ctx); err != nil && !errors.Is(err, ErrIdentityUnresolved) {
		s.logger.WithError(err).Error("cart initialization failed")
	}
}

// internal/domain/identity/session.go
package identity

import "sync"

// State is a snapshot of the identity signal
type State struct {
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Resolved bool   `json:"resolved"`
}

// SignedIn reports whether a user is known
func (s State) SignedIn() bool {
	return s.Resolved && s.UserID != ""
}

// Signal exposes the current user and notifies on change
type Signal interface {
	Current() State
	Subscribe(func(State)) (unsubscribe func())
}

// Session holds the identity of one browser session.
// It starts unresolved, like a page that has not heard back from the auth provider yet.
type Session struct {
	mu     sync.RWMutex
	state  State
	subs   map[uint64]func(State)
	order  []uint64
	nextID uint64
}

// NewSession creates an unresolved session
func NewSession() *Session {
	return &Session{subs: make(map[uint64]func(State))}
}

// Current returns the current state
func (s *Session) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn for state changes
func (s *Session) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// ResolveGuest marks the session as resolved with no user
func (s *Session) ResolveGuest() {
	s.set(State{Resolved: true})
}

// Login resolves the session to the given user
func (s *Session) Login(userID, email string) {
	s.set(State{UserID: userID, Email: email, Resolved: true})
}

// Logout resolves the session back to no user
func (s *Session) Logout() {
	s.set(State{Resolved: true})
}

func (s *Session) set(next State) {
	s.mu.Lock()
	if s.state == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	fns := make([]func(State), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()

	// notify outside the lock so subscribers may read Current()
	for _, fn := range fns {
		fn(next)
	}
}

// internal/pkg/events/recorder.go
package events

import "sync"

// Recorder keeps the most recent persistence errors for diagnostics
type Recorder struct {
	mu     sync.Mutex
	limit  int
	events []PersistenceError
}

// NewRecorder creates a recorder that retains at most limit events
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 50
	}
	return &Recorder{limit: limit}
}

// Handle records an event. It satisfies Handler.
func (r *Recorder) Handle(ev PersistenceError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
	if over := len(r.events) - r.limit; over > 0 {
		r.events = append([]PersistenceError(nil), r.events[over:]...)
	}
}

// Events returns recorded events, oldest first
func (r *Recorder) Events() []PersistenceError {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]PersistenceError, len(r.events))
	copy(out, r.events)
	return out
}

// Reset drops all recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

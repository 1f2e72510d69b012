// internal/pkg/events/emitter.go
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PersistenceErrorChannel is the name of the channel persistence failures are published on
const PersistenceErrorChannel = "persistence-error"

// Operation identifies the kind of persistence call that failed
type Operation string

// Persistence operations reported on the error channel
const (
	OperationCreate Operation = "create"
	OperationRead   Operation = "read"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationWrite  Operation = "write"
	OperationList   Operation = "list"
)

// PersistenceError describes one failed persistence attempt
type PersistenceError struct {
	Path        string    `json:"path"`
	Operation   Operation `json:"operation"`
	RequestData any       `json:"request_data,omitempty"`
	Err         error     `json:"-"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Error implements the error interface
func (e PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s failed", e.Operation, e.Path)
}

// Unwrap returns the underlying error
func (e PersistenceError) Unwrap() error {
	return e.Err
}

// Handler receives persistence errors
type Handler func(PersistenceError)

type subscription struct {
	id      uint64
	handler Handler
}

// Emitter is a publish/subscribe channel for persistence errors.
// Handlers run synchronously in registration order.
type Emitter struct {
	mu       sync.RWMutex
	handlers []subscription
	nextID   uint64
	logger   *logrus.Entry
}

// NewEmitter creates a new emitter
func NewEmitter(logger *logrus.Logger) *Emitter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Emitter{
		logger: logger.WithField("channel", PersistenceErrorChannel),
	}
}

// Subscribe registers a handler and returns a function that removes it
func (e *Emitter) Subscribe(h Handler) func() {
	if h == nil {
		return func() {}
	}

	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, subscription{id: id, handler: h})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.unsubscribe(id) })
	}
}

func (e *Emitter) unsubscribe(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, sub := range e.handlers {
		if sub.id == id {
			e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
			return
		}
	}
}

// Emit delivers the event to every current subscriber
func (e *Emitter) Emit(ev PersistenceError) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	e.mu.RLock()
	subs := make([]subscription, len(e.handlers))
	copy(subs, e.handlers)
	e.mu.RUnlock()

	for _, sub := range subs {
		e.deliver(sub, ev)
	}
}

// SubscriberCount returns the number of registered handlers
func (e *Emitter) SubscriberCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

func (e *Emitter) deliver(sub subscription, ev PersistenceError) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(logrus.Fields{
				"subscriber": sub.id,
				"path":       ev.Path,
				"operation":  ev.Operation,
				"panic":      r,
			}).Error("Persistence error subscriber panicked")
		}
	}()
	sub.handler(ev)
}

// LogHandler returns a handler that writes every event to the logger
func LogHandler(logger *logrus.Logger) Handler {
	return func(ev PersistenceError) {
		entry := logger.WithFields(logrus.Fields{
			"channel":   PersistenceErrorChannel,
			"path":      ev.Path,
			"operation": ev.Operation,
		})
		if ev.Err != nil {
			entry = entry.WithError(ev.Err)
		}
		entry.Warn("Persistence operation failed")
	}
}

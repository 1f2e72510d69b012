// internal/domain/cart/outbox.go
package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/artecho/storefront-backend/internal/pkg/events"
)

const defaultFailedLimit = 100

// Op is one queued persistence call
type Op struct {
	ID          string           `json:"id"`
	LineID      string           `json:"line_id"` // product id, or "*" for whole-cart writes
	Operation   events.Operation `json:"operation"`
	Path        string           `json:"path"`
	RequestData any              `json:"request_data,omitempty"`
	EnqueuedAt  time.Time        `json:"enqueued_at"`

	ctx context.Context
	run func(ctx context.Context) error
}

// FailedOp is an op whose persistence call returned an error
type FailedOp struct {
	Op       Op        `json:"op"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// Outbox runs persistence calls for one cart in enqueue order on a single lane.
// Failures are published on the emitter and kept in a bounded list; nothing is retried.
type Outbox struct {
	mu          sync.Mutex
	queue       []*Op
	inflight    *Op
	pending     map[string]int
	failed      []FailedOp
	failedLimit int
	running     bool
	idle        chan struct{}

	emitter *events.Emitter
	logger  *logrus.Entry
}

// NewOutbox creates an idle outbox
func NewOutbox(emitter *events.Emitter, logger *logrus.Entry, failedLimit int) *Outbox {
	if failedLimit <= 0 {
		failedLimit = defaultFailedLimit
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	idle := make(chan struct{})
	close(idle)
	return &Outbox{
		pending:     make(map[string]int),
		failedLimit: failedLimit,
		idle:        idle,
		emitter:     emitter,
		logger:      logger,
	}
}

// Enqueue schedules op. The caller's cancellation does not reach the persistence call.
func (o *Outbox) Enqueue(ctx context.Context, op Op, run func(ctx context.Context) error) {
	if ctx == nil {
		ctx = context.Background()
	}
	op.ID = uuid.NewString()
	op.EnqueuedAt = time.Now().UTC()
	op.ctx = context.WithoutCancel(ctx)
	op.run = run

	o.mu.Lock()
	o.queue = append(o.queue, &op)
	o.pending[op.LineID]++
	if !o.running {
		o.running = true
		o.idle = make(chan struct{})
		go o.drain()
	}
	o.mu.Unlock()
}

func (o *Outbox) drain() {
	for {
		o.mu.Lock()
		if len(o.queue) == 0 {
			o.running = false
			o.inflight = nil
			close(o.idle)
			o.mu.Unlock()
			return
		}
		op := o.queue[0]
		o.queue[0] = nil
		o.queue = o.queue[1:]
		o.inflight = op
		o.mu.Unlock()

		err := o.execute(op)

		o.mu.Lock()
		o.inflight = nil
		if o.pending[op.LineID]--; o.pending[op.LineID] <= 0 {
			delete(o.pending, op.LineID)
		}
		if err != nil {
			o.failed = append(o.failed, FailedOp{Op: op.snapshot(), Error: err.Error(), FailedAt: time.Now().UTC()})
			if over := len(o.failed) - o.failedLimit; over > 0 {
				o.failed = append([]FailedOp(nil), o.failed[over:]...)
			}
		}
		o.mu.Unlock()

		if err != nil {
			o.report(op, err)
		}
	}
}

func (o *Outbox) execute(op *Op) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("persistence call panicked: %v", r)
		}
	}()
	return op.run(op.ctx)
}

func (o *Outbox) report(op *Op, err error) {
	o.logger.WithFields(logrus.Fields{
		"op_id":     op.ID,
		"line_id":   op.LineID,
		"operation": op.Operation,
		"path":      op.Path,
	}).WithError(err).Warn("cart persistence failed")

	if o.emitter != nil {
		o.emitter.Emit(events.PersistenceError{
			Path:        op.Path,
			Operation:   op.Operation,
			RequestData: op.RequestData,
			Err:         err,
		})
	}
}

// Pending returns the in-flight op followed by the queued ones
func (o *Outbox) Pending() []Op {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Op, 0, len(o.queue)+1)
	if o.inflight != nil {
		out = append(out, o.inflight.snapshot())
	}
	for _, op := range o.queue {
		out = append(out, op.snapshot())
	}
	return out
}

// PendingFor returns how many ops for lineID have not finished
func (o *Outbox) PendingFor(lineID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending[lineID]
}

// Failed returns the most recent failed ops, oldest first
func (o *Outbox) Failed() []FailedOp {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]FailedOp(nil), o.failed...)
}

// Flush waits until every op enqueued so far has finished
func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	idle := o.idle
	o.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (op *Op) snapshot() Op {
	return Op{
		ID:          op.ID,
		LineID:      op.LineID,
		Operation:   op.Operation,
		Path:        op.Path,
		RequestData: op.RequestData,
		EnqueuedAt:  op.EnqueuedAt,
	}
}

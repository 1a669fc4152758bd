// Package correlation implements the correlation tracker (spec component
// C10): it maps an outbound correlation id to a future that resolves when
// a matching response event arrives, or to a timeout. The map+mutex shape
// mirrors the teacher's InMemoryStateManager (agents/cortex/state), traded
// for channels instead of a stored ConversationState since here the
// "state" being waited on is a single event delivery.
package correlation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/owulveryck/amcp/internal/amcperr"
	"github.com/owulveryck/amcp/internal/envelope"
)

const component = "correlation"

type pending struct {
	ch    chan *envelope.Event
	timer *time.Timer
	done  bool
}

// Tracker registers correlation ids awaiting a response and resolves them
// either when RecordResponse sees a matching event or when the timeout
// elapses, whichever comes first. A correlation id is unique across active
// entries: Register fails if one is already live for the same id.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]*pending
	logger  *slog.Logger
}

// NewTracker constructs an empty Tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{pending: make(map[string]*pending), logger: logger}
}

// Register opens a future for correlationID and arms a timeout; the
// returned channel yields exactly one event (on match) or is closed without
// a value (on timeout or Cancel). correlationID must be unique across
// active entries: registering an id with a still-live (not yet resolved,
// expired, or canceled) pending entry fails rather than stealing the
// channel out from under the original waiter.
func (t *Tracker) Register(correlationID string, timeout time.Duration) (<-chan *envelope.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, exists := t.pending[correlationID]; exists && !old.done {
		return nil, amcperr.New(amcperr.KindConflict, component, "Register", errAlreadyInUse)
	}

	p := &pending{ch: make(chan *envelope.Event, 1)}
	p.timer = time.AfterFunc(timeout, func() { t.expire(correlationID) })
	t.pending[correlationID] = p
	return p.ch, nil
}

// RecordResponse resolves the future registered for e.CorrelationID, if
// any, delivering e and returning true. Events with no matching pending
// entry are dropped (no waiter to notify); callers (e.g. the A2A bridge or
// the orchestrator) typically subscribe broadly and let RecordResponse
// decide relevance.
func (t *Tracker) RecordResponse(e *envelope.Event) bool {
	if e.CorrelationID == "" {
		return false
	}

	t.mu.Lock()
	p, ok := t.pending[e.CorrelationID]
	if !ok || p.done {
		t.mu.Unlock()
		return false
	}
	p.done = true
	delete(t.pending, e.CorrelationID)
	t.mu.Unlock()

	p.timer.Stop()
	p.ch <- e
	close(p.ch)
	return true
}

// Cancel aborts a pending wait without delivering a response, closing its
// channel so any blocked receiver unblocks immediately.
func (t *Tracker) Cancel(correlationID string) {
	t.mu.Lock()
	p, ok := t.pending[correlationID]
	if !ok || p.done {
		t.mu.Unlock()
		return
	}
	p.done = true
	delete(t.pending, correlationID)
	t.mu.Unlock()

	p.timer.Stop()
	close(p.ch)
}

func (t *Tracker) expire(correlationID string) {
	t.mu.Lock()
	p, ok := t.pending[correlationID]
	if !ok || p.done {
		t.mu.Unlock()
		return
	}
	p.done = true
	delete(t.pending, correlationID)
	t.mu.Unlock()

	t.logger.Debug("correlation wait expired", "correlationId", correlationID)
	close(p.ch)
}

// Pending reports how many correlation ids are currently awaiting a
// response, useful for health/metrics reporting.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Wait blocks on ch until a response arrives or ctx is cancelled, wrapping
// the plain channel receive with an amcperr.KindTimeout on context
// cancellation so callers get a uniform error taxonomy.
func Wait(ctx context.Context, ch <-chan *envelope.Event) (*envelope.Event, error) {
	select {
	case e, ok := <-ch:
		if !ok {
			return nil, amcperr.New(amcperr.KindTimeout, component, "Wait", errTimedOut)
		}
		return e, nil
	case <-ctx.Done():
		return nil, amcperr.New(amcperr.KindTimeout, component, "Wait", ctx.Err())
	}
}

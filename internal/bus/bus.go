// Package bus implements the pluggable event broker abstraction (spec
// component C3) and its in-memory reference implementation: a subscriber
// registry indexed by a topic trie, async publish with per-subscriber
// serialized dispatch, and the three delivery semantics (BEST_EFFORT,
// RELIABLE, ORDERED_BY_CORRELATION).
//
// The dispatch shape — one buffered channel per subscriber, a goroutine
// pumping it with panic recovery, and a deadline on blocking sends — is
// grounded on the teacher's internal/agenthub EventBusService, generalized
// from a fixed set of gRPC streaming methods to an arbitrary topic/pattern
// subscriber table.
package bus

import (
	"context"

	"github.com/owulveryck/amcp/internal/envelope"
)

// Handler processes one delivered event. An error from a RELIABLE
// subscription triggers retry-with-backoff and, on exhaustion,
// dead-lettering; errors from other delivery options are logged and
// counted but do not block subsequent events.
type Handler func(ctx context.Context, e *envelope.Event) error

// Metrics is a snapshot of the bus's counters, exposed via metrics() per
// spec section 4.2.
type Metrics struct {
	Published   uint64
	Delivered   uint64
	Dropped     uint64
	DeadLettered uint64
	HandlerErrors uint64
}

// Broker is the pluggable event bus contract. The core mandates only the
// in-memory reference implementation (InMemoryBroker); remote
// implementations (kafka, nats, solace — spec section 6) are out of scope
// but would satisfy the same interface.
type Broker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool

	Publish(ctx context.Context, e *envelope.Event) error
	Subscribe(subscriberID, pattern string, handler Handler) error
	Unsubscribe(subscriberID, pattern string) error

	CreatePublisher(sourceID string) *Publisher
	CreateSubscriber(id string) *Subscriber

	Metrics() Metrics
}

// Publisher is a scoped handle bound to one source identity.
type Publisher struct {
	bus      Broker
	sourceID string
}

func (p *Publisher) SourceID() string { return p.sourceID }

func (p *Publisher) Publish(ctx context.Context, e *envelope.Event) error {
	return p.bus.Publish(ctx, e)
}

// Subscriber is a scoped handle bound to one subscriber identity.
type Subscriber struct {
	bus Broker
	id  string
}

func (s *Subscriber) ID() string { return s.id }

func (s *Subscriber) Subscribe(pattern string, handler Handler) error {
	return s.bus.Subscribe(s.id, pattern, handler)
}

func (s *Subscriber) Unsubscribe(pattern string) error {
	return s.bus.Unsubscribe(s.id, pattern)
}

package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/owulveryck/amcp/internal/amcperr"
	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/owulveryck/amcp/internal/observability"
	"github.com/owulveryck/amcp/internal/topic"
)

const component = "bus"

const (
	defaultQueueSize     = 256
	defaultReliableRetry = 5
	defaultEnqueueDeadline = 5 * time.Second
)

// DeadLetterEntry is published onto system.deadletter when a RELIABLE
// event exhausts its retry budget.
type DeadLetterEntry struct {
	Original      *envelope.Event
	SubscriberID  string
	FailureReason string
}

type deliveryItem struct {
	event   *envelope.Event
	pattern string
	handler Handler
}

type subscriberState struct {
	id       string
	queue    chan deliveryItem
	patterns map[string]Handler // pattern -> handler, guarded by InMemoryBroker.mu
	stopCh   chan struct{}
}

// InMemoryBroker is the reference Broker implementation: it keeps every
// subscription in-process and never persists across restarts (spec
// section 9's open question on RELIABLE durability is resolved here in
// favor of "not durable" for the in-memory core).
type InMemoryBroker struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriberState
	index       *topic.Trie[*subscriberState]

	running int32
	metrics Metrics

	queueSize       int
	reliableRetries int
	enqueueDeadline time.Duration

	logger *slog.Logger
	trace  *observability.TraceManager
	stats  *observability.MetricsManager

	deadLetterMu  sync.Mutex
	deadLetterLog []DeadLetterEntry
}

// Option configures an InMemoryBroker at construction.
type Option func(*InMemoryBroker)

func WithQueueSize(n int) Option             { return func(b *InMemoryBroker) { b.queueSize = n } }
func WithReliableRetries(n int) Option       { return func(b *InMemoryBroker) { b.reliableRetries = n } }
func WithEnqueueDeadline(d time.Duration) Option { return func(b *InMemoryBroker) { b.enqueueDeadline = d } }
func WithLogger(l *slog.Logger) Option       { return func(b *InMemoryBroker) { b.logger = l } }
func WithTraceManager(tm *observability.TraceManager) Option {
	return func(b *InMemoryBroker) { b.trace = tm }
}
func WithMetricsManager(mm *observability.MetricsManager) Option {
	return func(b *InMemoryBroker) { b.stats = mm }
}

// NewInMemoryBroker constructs a stopped broker; call Start before
// publishing.
func NewInMemoryBroker(opts ...Option) *InMemoryBroker {
	b := &InMemoryBroker{
		subscribers:     make(map[string]*subscriberState),
		index:           topic.NewTrie[*subscriberState](),
		queueSize:       defaultQueueSize,
		reliableRetries: defaultReliableRetry,
		enqueueDeadline: defaultEnqueueDeadline,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *InMemoryBroker) Start(ctx context.Context) error {
	atomic.StoreInt32(&b.running, 1)
	b.logger.InfoContext(ctx, "event bus started")
	return nil
}

func (b *InMemoryBroker) Stop(ctx context.Context) error {
	atomic.StoreInt32(&b.running, 0)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		close(sub.stopCh)
		close(sub.queue)
	}
	b.subscribers = make(map[string]*subscriberState)
	b.index = topic.NewTrie[*subscriberState]()

	b.logger.InfoContext(ctx, "event bus stopped")
	return nil
}

func (b *InMemoryBroker) IsRunning() bool {
	return atomic.LoadInt32(&b.running) == 1
}

func (b *InMemoryBroker) CreatePublisher(sourceID string) *Publisher {
	return &Publisher{bus: b, sourceID: sourceID}
}

func (b *InMemoryBroker) CreateSubscriber(id string) *Subscriber {
	return &Subscriber{bus: b, id: id}
}

func (b *InMemoryBroker) Metrics() Metrics {
	return Metrics{
		Published:     atomic.LoadUint64(&b.metrics.Published),
		Delivered:     atomic.LoadUint64(&b.metrics.Delivered),
		Dropped:       atomic.LoadUint64(&b.metrics.Dropped),
		DeadLettered:  atomic.LoadUint64(&b.metrics.DeadLettered),
		HandlerErrors: atomic.LoadUint64(&b.metrics.HandlerErrors),
	}
}

// DeadLetters returns a snapshot of every entry ever routed to
// system.deadletter, for operator inspection.
func (b *InMemoryBroker) DeadLetters() []DeadLetterEntry {
	b.deadLetterMu.Lock()
	defer b.deadLetterMu.Unlock()
	out := make([]DeadLetterEntry, len(b.deadLetterLog))
	copy(out, b.deadLetterLog)
	return out
}

func (b *InMemoryBroker) Subscribe(subscriberID, pattern string, handler Handler) error {
	if err := topic.ValidatePattern(pattern); err != nil {
		return amcperr.New(amcperr.KindValidation, component, "Subscribe", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscribers[subscriberID]
	if !ok {
		sub = &subscriberState{
			id:       subscriberID,
			queue:    make(chan deliveryItem, b.queueSize),
			patterns: make(map[string]Handler),
			stopCh:   make(chan struct{}),
		}
		b.subscribers[subscriberID] = sub
		go b.dispatchLoop(sub)
	}

	if _, exists := sub.patterns[pattern]; exists {
		return amcperr.New(amcperr.KindConflict, component, "Subscribe", fmt.Errorf("subscriber %q already subscribed to %q", subscriberID, pattern))
	}

	sub.patterns[pattern] = handler
	b.index.Insert(pattern, subscriberID, sub)
	return nil
}

func (b *InMemoryBroker) Unsubscribe(subscriberID, pattern string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscribers[subscriberID]
	if !ok {
		return amcperr.New(amcperr.KindNotFound, component, "Unsubscribe", fmt.Errorf("unknown subscriber %q", subscriberID))
	}
	delete(sub.patterns, pattern)
	b.index.Remove(pattern, subscriberID)
	return nil
}

// Publish fans the event out to every matching subscriber. It returns once
// the event has been handed to each subscriber's queue (enqueued, for
// RELIABLE possibly after blocking up to the enqueue deadline) — the
// in-memory reference implementation's definition of "broker has accepted
// the event" per spec section 4.2.
func (b *InMemoryBroker) Publish(ctx context.Context, e *envelope.Event) error {
	if !b.IsRunning() {
		return amcperr.New(amcperr.KindUnavailable, component, "Publish", errBrokerStopped)
	}
	if err := topic.Validate(e.Topic); err != nil {
		return amcperr.New(amcperr.KindValidation, component, "Publish", err)
	}

	atomic.AddUint64(&b.metrics.Published, 1)
	if b.stats != nil {
		b.stats.IncrementEventsPublished(ctx, e.Type, e.Topic)
	}

	b.mu.RLock()
	matches := b.index.MatchAll(e.Topic)
	type matched struct {
		sub     *subscriberState
		pattern string
		handler Handler
	}
	targets := make([]matched, 0, len(matches))
	for subID, sub := range matches {
		for pattern, handler := range sub.patterns {
			if topic.Match(e.Topic, pattern) {
				targets = append(targets, matched{sub: sub, pattern: pattern, handler: handler})
			}
		}
		_ = subID
	}
	b.mu.RUnlock()

	for _, m := range targets {
		b.enqueue(ctx, m.sub, m.pattern, m.handler, e)
	}

	return nil
}

func (b *InMemoryBroker) enqueue(ctx context.Context, sub *subscriberState, pattern string, handler Handler, e *envelope.Event) {
	item := deliveryItem{event: e, pattern: pattern, handler: handler}

	switch e.DeliveryOptions {
	case envelope.BestEffort:
		select {
		case sub.queue <- item:
		default:
			atomic.AddUint64(&b.metrics.Dropped, 1)
			b.logger.WarnContext(ctx, "dropping event, subscriber queue full", "subscriber", sub.id, "topic", e.Topic)
		}
	default: // Reliable, OrderedByCorrelation: block up to the enqueue deadline
		timer := time.NewTimer(b.enqueueDeadline)
		defer timer.Stop()
		select {
		case sub.queue <- item:
		case <-timer.C:
			b.deadLetter(ctx, sub.id, e, "subscriber queue saturated past enqueue deadline")
		case <-ctx.Done():
		}
	}
}

func (b *InMemoryBroker) dispatchLoop(sub *subscriberState) {
	ctx := context.Background()
	for item := range sub.queue {
		b.dispatchOne(ctx, sub, item)
	}
}

func (b *InMemoryBroker) dispatchOne(ctx context.Context, sub *subscriberState, item deliveryItem) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddUint64(&b.metrics.HandlerErrors, 1)
			b.logger.ErrorContext(ctx, "subscriber handler panicked", "subscriber", sub.id, "recover", r)
		}
	}()

	dctx := ctx
	endSpan := func() {}
	if b.trace != nil {
		c, s := b.trace.StartConsumeSpan(ctx, sub.id, item.event.Type)
		dctx = c
		endSpan = func() { s.End() }
	}
	defer endSpan()

	if item.event.DeliveryOptions == envelope.Reliable {
		b.dispatchReliable(dctx, sub, item)
		return
	}

	if err := item.handler(dctx, item.event); err != nil {
		atomic.AddUint64(&b.metrics.HandlerErrors, 1)
		if b.stats != nil {
			b.stats.IncrementEventErrors(dctx, item.event.Type, item.event.Source, "handler_failure")
		}
		b.logger.ErrorContext(dctx, "subscriber handler failed", "subscriber", sub.id, "topic", item.event.Topic, "error", err)
		return
	}
	atomic.AddUint64(&b.metrics.Delivered, 1)
	if b.stats != nil {
		b.stats.IncrementEventsProcessed(dctx, item.event.Type, item.event.Source, true)
	}
}

func (b *InMemoryBroker) dispatchReliable(ctx context.Context, sub *subscriberState, item deliveryItem) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 10 * time.Second

	var lastErr error
	for attempt := 0; attempt < b.reliableRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(bo.NextBackOff())
		}
		err := item.handler(ctx, item.event)
		if err == nil {
			atomic.AddUint64(&b.metrics.Delivered, 1)
			if b.stats != nil {
				b.stats.IncrementEventsProcessed(ctx, item.event.Type, item.event.Source, true)
			}
			return
		}
		lastErr = err
	}

	atomic.AddUint64(&b.metrics.HandlerErrors, 1)
	if b.stats != nil {
		b.stats.IncrementEventErrors(ctx, item.event.Type, item.event.Source, "retry_exhausted")
	}
	b.deadLetter(ctx, sub.id, item.event, fmt.Sprintf("handler failed after %d attempts: %v", b.reliableRetries, lastErr))
}

func (b *InMemoryBroker) deadLetter(ctx context.Context, subscriberID string, e *envelope.Event, reason string) {
	atomic.AddUint64(&b.metrics.DeadLettered, 1)

	b.deadLetterMu.Lock()
	b.deadLetterLog = append(b.deadLetterLog, DeadLetterEntry{Original: e, SubscriberID: subscriberID, FailureReason: reason})
	b.deadLetterMu.Unlock()

	b.logger.WarnContext(ctx, "event dead-lettered", "subscriber", subscriberID, "topic", e.Topic, "reason", reason)

	dl, err := envelope.NewBuilder(e.Source, "system.deadletter").
		WithType("io.amcp.system.deadletter").
		WithCorrelationID(e.CorrelationID).
		WithMetadata("originalTopic", e.Topic).
		WithMetadata("failureReason", reason).
		WithMetadata("subscriberId", subscriberID).
		Build()
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to build deadletter envelope", "error", err)
		return
	}

	b.mu.RLock()
	matches := b.index.MatchAll(dl.Topic)
	b.mu.RUnlock()
	for subID, sub := range matches {
		for pattern, handler := range sub.patterns {
			if topic.Match(dl.Topic, pattern) {
				b.enqueue(ctx, sub, pattern, handler, dl)
			}
		}
		_ = subID
	}
}

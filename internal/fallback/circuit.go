package fallback

import (
	"context"
	"sync"
	"time"

	"github.com/owulveryck/amcp/internal/observability"
)

// CircuitState is a node in the per-downstream circuit breaker state
// machine described in spec section 4.10.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// circuitStateValue is the numeric projection of CircuitState reported on
// the circuit_breaker_state gauge (0=closed, 1=half_open, 2=open).
func circuitStateValue(s CircuitState) int64 {
	switch s {
	case CircuitHalfOpen:
		return 1
	case CircuitOpen:
		return 2
	default:
		return 0
	}
}

type circuit struct {
	state            CircuitState
	consecutiveFails int
	openedAt         time.Time
	reportedValue    int64
}

// CircuitBreaker tracks one state machine per downstream service name:
// CLOSED -> (failureThreshold consecutive failures) OPEN -> (after
// cooldown) HALF_OPEN -> (one success) CLOSED / (failure) OPEN.
type CircuitBreaker struct {
	mu        sync.Mutex
	circuits  map[string]*circuit
	threshold int
	cooldown  time.Duration
	stats     *observability.MetricsManager
}

// NewCircuitBreaker constructs a breaker with the given failure threshold
// and cooldown, per spec section 6's fallback.circuit.* options. stats may
// be nil, in which case circuit_breaker_state is never reported.
func NewCircuitBreaker(threshold int, cooldown time.Duration, stats *observability.MetricsManager) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{circuits: make(map[string]*circuit), threshold: threshold, cooldown: cooldown, stats: stats}
}

// reportState emits the delta between c's last reported numeric state and
// its current one, since circuit_breaker_state is an UpDownCounter. Caller
// must hold cb.mu.
func (cb *CircuitBreaker) reportState(c *circuit, service string) {
	if cb.stats == nil {
		return
	}
	value := circuitStateValue(c.state)
	delta := value - c.reportedValue
	c.reportedValue = value
	cb.stats.RecordCircuitBreakerStateDelta(context.Background(), service, delta)
}

func (cb *CircuitBreaker) get(service string) *circuit {
	c, ok := cb.circuits[service]
	if !ok {
		c = &circuit{state: CircuitClosed}
		cb.circuits[service] = c
	}
	return c
}

// Allow reports whether a call to service may proceed. OPEN circuits
// automatically move to HALF_OPEN once the cooldown has elapsed. Calls are
// admitted while HALF_OPEN until a recorded success closes the circuit or
// a recorded failure re-opens it; the number of trial calls is not limited.
func (cb *CircuitBreaker) Allow(service string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(service)
	switch c.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if time.Since(c.openedAt) >= cb.cooldown {
			c.state = CircuitHalfOpen
			cb.reportState(c, service)
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess closes the circuit (from CLOSED or HALF_OPEN) and resets
// the failure counter.
func (cb *CircuitBreaker) RecordSuccess(service string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(service)
	c.state = CircuitClosed
	c.consecutiveFails = 0
	cb.reportState(c, service)
}

// RecordFailure increments the failure counter and trips the circuit open
// once threshold consecutive failures accumulate (or immediately, if the
// call was a HALF_OPEN trial).
func (cb *CircuitBreaker) RecordFailure(service string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(service)
	if c.state == CircuitHalfOpen {
		c.state = CircuitOpen
		c.openedAt = time.Now()
		c.consecutiveFails = cb.threshold
		cb.reportState(c, service)
		return
	}

	c.consecutiveFails++
	if c.consecutiveFails >= cb.threshold {
		c.state = CircuitOpen
		c.openedAt = time.Now()
		cb.reportState(c, service)
	}
}

// State reports the current CircuitState for service.
func (cb *CircuitBreaker) State(service string) CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.get(service).state
}

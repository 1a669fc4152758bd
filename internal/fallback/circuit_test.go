package fallback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 50*time.Millisecond, nil)
	svc := "llm"

	assert.Equal(t, CircuitClosed, cb.State(svc))
	cb.RecordFailure(svc)
	cb.RecordFailure(svc)
	assert.True(t, cb.Allow(svc))
	cb.RecordFailure(svc)

	assert.Equal(t, CircuitOpen, cb.State(svc))
	assert.False(t, cb.Allow(svc))
}

func TestCircuitBreakerHalfOpenThenClosesOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(1, 20*time.Millisecond, nil)
	svc := "llm"

	cb.RecordFailure(svc)
	assert.Equal(t, CircuitOpen, cb.State(svc))
	assert.False(t, cb.Allow(svc))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, cb.Allow(svc))
	assert.Equal(t, CircuitHalfOpen, cb.State(svc))

	cb.RecordSuccess(svc)
	assert.Equal(t, CircuitClosed, cb.State(svc))
}

func TestCircuitBreakerHalfOpenReopenOnFailure(t *testing.T) {
	cb := NewCircuitBreaker(1, 20*time.Millisecond, nil)
	svc := "llm"

	cb.RecordFailure(svc)
	time.Sleep(30 * time.Millisecond)
	assert.True(t, cb.Allow(svc))

	cb.RecordFailure(svc)
	assert.Equal(t, CircuitOpen, cb.State(svc))
}

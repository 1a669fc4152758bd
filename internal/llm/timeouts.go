package llm

import (
	"strings"
	"time"
)

// TimeoutTable resolves a per-model timeout keyed by model name prefix,
// falling back to a configured default for unknown models, per spec
// section 4.9 step 3.
type TimeoutTable struct {
	byPrefix       map[string]time.Duration
	defaultTimeout time.Duration
	// performanceMode trims every resolved timeout by ~30-50%, per spec
	// section 4.9's "performance mode env flag".
	performanceMode bool
}

// NewTimeoutTable constructs a TimeoutTable. performanceMode true enables
// the trim; byPrefix may be nil/empty.
func NewTimeoutTable(defaultTimeout time.Duration, byPrefix map[string]time.Duration, performanceMode bool) *TimeoutTable {
	if byPrefix == nil {
		byPrefix = make(map[string]time.Duration)
	}
	return &TimeoutTable{byPrefix: byPrefix, defaultTimeout: defaultTimeout, performanceMode: performanceMode}
}

// Resolve returns the timeout to use for model, applying the performance
// trim if enabled.
func (t *TimeoutTable) Resolve(model string) time.Duration {
	timeout := t.defaultTimeout
	for prefix, d := range t.byPrefix {
		if strings.HasPrefix(model, prefix) {
			timeout = d
			break
		}
	}
	if t.performanceMode {
		timeout = time.Duration(float64(timeout) * 0.6)
	}
	return timeout
}

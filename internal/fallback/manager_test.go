package fallback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManagerEmergencyResponseAndLearn(t *testing.T) {
	m := NewManager("", 3, time.Second, nil, nil)

	resp := m.EmergencyResponse("how to sort a list in code", "llm timeout")
	assert.Contains(t, resp, "how to sort a list in code")

	m.Learn("how to sort a list in code", "use sort.Slice with a custom less function for structs, or sort.Ints for plain integer slices")
	rule := findRule(m.Rules(), "coding")
	assert.NotEmpty(t, rule.ResponseTemplate)
}

func TestManagerCircuitBreakerIntegration(t *testing.T) {
	m := NewManager("", 1, 10*time.Millisecond, nil, nil)
	assert.True(t, m.Allow("llm"))
	m.RecordFailure("llm")
	assert.False(t, m.Allow("llm"))
	assert.Equal(t, CircuitOpen, m.CircuitState("llm"))
}

func TestManagerMissingRulesPathFallsBackToDefaults(t *testing.T) {
	m := NewManager("/nonexistent/rules.yaml", 3, time.Second, nil, nil)
	assert.NotEmpty(t, m.Rules())
}

func TestManagerSummarizeResults(t *testing.T) {
	m := NewManager("", 3, time.Second, nil, nil)
	summary := m.SummarizeResults("weather in Paris and Rome", map[string]string{
		"t1": "Paris: sunny, 22C",
		"t2": "Rome: cloudy, 19C",
	})
	assert.Contains(t, summary, "weather in Paris and Rome")
	assert.Contains(t, summary, "t1: Paris: sunny, 22C")
	assert.Contains(t, summary, "t2: Rome: cloudy, 19C")
}

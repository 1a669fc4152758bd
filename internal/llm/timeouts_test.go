package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeoutTableResolvesByPrefix(t *testing.T) {
	table := NewTimeoutTable(10*time.Second, map[string]time.Duration{
		"llama3":  20 * time.Second,
		"phi3":    8 * time.Second,
	}, false)

	assert.Equal(t, 20*time.Second, table.Resolve("llama3:8b"))
	assert.Equal(t, 8*time.Second, table.Resolve("phi3"))
	assert.Equal(t, 10*time.Second, table.Resolve("unknown-model"))
}

func TestTimeoutTablePerformanceModeTrims(t *testing.T) {
	table := NewTimeoutTable(10*time.Second, nil, true)
	resolved := table.Resolve("anything")
	assert.Less(t, resolved, 10*time.Second)
	assert.Greater(t, resolved, 5*time.Second)
}

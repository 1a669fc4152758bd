package registry

import (
	"testing"
	"time"

	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		HeartbeatWindow:  time.Second,
		DegradedAfter:    50 * time.Millisecond,
		UnreachableAfter: 150 * time.Millisecond,
	}
}

func TestRegisterAndFindByCapability(t *testing.T) {
	r := New(testConfig(), nil)
	a := envelope.NewAgentID("weather-agent", "ns")
	r.Register(a, "specialist", "ctx1", []string{"weather"}, nil)

	matches := r.FindByCapability("weather")
	require.Len(t, matches, 1)
	assert.Equal(t, a, matches[0].AgentID)
	assert.Equal(t, Healthy, matches[0].Health)
}

func TestAgeAllTransitionsHealth(t *testing.T) {
	r := New(testConfig(), nil)
	a := envelope.NewAgentID("weather-agent", "ns")
	r.Register(a, "specialist", "ctx1", []string{"weather"}, nil)

	r.AgeAll(time.Now().Add(100 * time.Millisecond))
	matches := r.FindByCapability("weather")
	require.Len(t, matches, 1)
	assert.Equal(t, Degraded, matches[0].Health)

	r.AgeAll(time.Now().Add(200 * time.Millisecond))
	matches = r.FindByCapability("weather")
	require.Len(t, matches, 1)
	assert.Equal(t, Unreachable, matches[0].Health)
}

func TestHeartbeatRestoresHealthy(t *testing.T) {
	r := New(testConfig(), nil)
	a := envelope.NewAgentID("weather-agent", "ns")
	r.Register(a, "specialist", "ctx1", []string{"weather"}, nil)
	r.AgeAll(time.Now().Add(100 * time.Millisecond))

	require.True(t, r.Heartbeat(a))
	matches := r.FindByCapability("weather")
	require.Len(t, matches, 1)
	assert.Equal(t, Healthy, matches[0].Health)
}

func TestFindByCapabilityRanksHealthThenLatency(t *testing.T) {
	r := New(testConfig(), nil)
	slow := envelope.NewAgentID("slow", "ns")
	fast := envelope.NewAgentID("fast", "ns")
	degraded := envelope.NewAgentID("degraded", "ns")

	r.Register(slow, "specialist", "ctx1", []string{"weather"}, nil)
	r.Register(fast, "specialist", "ctx1", []string{"weather"}, nil)
	r.Register(degraded, "specialist", "ctx1", []string{"weather"}, nil)

	r.RecordLatency(slow, 200*time.Millisecond)
	r.RecordLatency(fast, 10*time.Millisecond)
	r.records[degraded.String()].Health = Degraded

	matches := r.FindByCapability("weather")
	require.Len(t, matches, 3)
	assert.Equal(t, fast, matches[0].AgentID)
	assert.Equal(t, slow, matches[1].AgentID)
	assert.Equal(t, degraded, matches[2].AgentID)
}

func TestDeregisterRemovesRecord(t *testing.T) {
	r := New(testConfig(), nil)
	a := envelope.NewAgentID("weather-agent", "ns")
	r.Register(a, "specialist", "ctx1", []string{"weather"}, nil)
	r.Deregister(a)
	assert.Empty(t, r.FindByCapability("weather"))
}

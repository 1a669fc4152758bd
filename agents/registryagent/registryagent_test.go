package registryagent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owulveryck/amcp/internal/bus"
	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/owulveryck/amcp/internal/registry"
)

func newTestAgent(t *testing.T) (*Agent, *bus.InMemoryBroker) {
	t.Helper()
	b := bus.NewInMemoryBroker()
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop(context.Background()) })

	reg := registry.New(registry.Config{
		HeartbeatWindow:  10 * time.Millisecond,
		DegradedAfter:    time.Hour,
		UnreachableAfter: 2 * time.Hour,
	}, nil)

	id := envelope.NewAgentID("registry", "amcp")
	pub := b.CreatePublisher(id.String())
	agent := New(id, reg, pub, nil)
	return agent, b
}

func TestRegistryAgentDispatchesRegisterAndQuery(t *testing.T) {
	agent, b := newTestAgent(t)
	ctx := context.Background()

	specialistID := envelope.NewAgentID("weather", "amcp")
	regData, err := json.Marshal(map[string]interface{}{
		"agentType":    "weather",
		"contextId":    "ctx-1",
		"capabilities": []string{"weather"},
	})
	require.NoError(t, err)

	registerEvent, err := envelope.NewBuilder("weather", TopicRegister).
		WithType("io.amcp.system.registry.register").
		WithData(regData).
		WithSender(specialistID).
		Build()
	require.NoError(t, err)

	require.NoError(t, agent.HandleEvent(ctx, registerEvent))

	sub := b.CreateSubscriber("test-sub")
	replies := make(chan *envelope.Event, 1)
	require.NoError(t, sub.Subscribe("system.registry.response", func(_ context.Context, e *envelope.Event) error {
		replies <- e
		return nil
	}))

	queryData, err := json.Marshal(map[string]string{"capability": "weather"})
	require.NoError(t, err)
	queryEvent, err := envelope.NewBuilder("caller", TopicQuery).
		WithType("io.amcp.system.registry.query").
		WithData(queryData).
		WithCorrelationID("q-1").
		Build()
	require.NoError(t, err)

	require.NoError(t, agent.HandleEvent(ctx, queryEvent))

	select {
	case reply := <-replies:
		var result struct {
			Candidates []struct {
				AgentID string `json:"agentId"`
			} `json:"candidates"`
		}
		require.NoError(t, json.Unmarshal(reply.Data, &result))
		require.Len(t, result.Candidates, 1)
		assert.Equal(t, specialistID.String(), result.Candidates[0].AgentID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for registry query response")
	}
}

func TestRegistryAgentIgnoresUnrelatedTopic(t *testing.T) {
	agent, _ := newTestAgent(t)
	e, err := envelope.NewBuilder("x", "not.registry.anything").
		WithType("io.amcp.x").
		Build()
	require.NoError(t, err)
	assert.NoError(t, agent.HandleEvent(context.Background(), e))
}

func TestRegistryAgentAgingStopsOnDestroy(t *testing.T) {
	agent, _ := newTestAgent(t)
	ctx := context.Background()
	require.NoError(t, agent.OnActivate(ctx))
	require.NoError(t, agent.OnDestroy(ctx))
}

package registry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	published []*envelope.Event
}

func (f *fakePublisher) Publish(ctx context.Context, e *envelope.Event) error {
	f.published = append(f.published, e)
	return nil
}

func TestAgentHandleRegisterThenQuery(t *testing.T) {
	r := New(testConfig(), nil)
	pub := &fakePublisher{}
	a := NewAgent(r, pub, nil)

	sender := envelope.NewAgentID("weather-agent", "ns")
	regPayload, err := json.Marshal(registrationPayload{
		AgentType:    "specialist",
		ContextID:    "ctx1",
		Capabilities: []string{"weather"},
	})
	require.NoError(t, err)

	regEvent, err := envelope.NewBuilder("weather-agent", "system.registry.register").
		WithType("io.amcp.system.registry.register").
		WithSender(sender).
		WithData(regPayload).
		Build()
	require.NoError(t, err)
	require.NoError(t, a.HandleRegister(context.Background(), regEvent))

	queryData, err := json.Marshal(queryPayload{Capability: "weather"})
	require.NoError(t, err)
	queryEvent, err := envelope.NewBuilder("orchestrator", "system.registry.query").
		WithType("io.amcp.system.registry.query").
		WithData(queryData).
		WithCorrelationID("corr-1").
		WithMetadata("replyTo", "system.registry.response").
		Build()
	require.NoError(t, err)

	require.NoError(t, a.HandleQuery(context.Background(), queryEvent))
	require.Len(t, pub.published, 1)

	resp := pub.published[0]
	assert.Equal(t, "corr-1", resp.CorrelationID)

	var result queryResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, sender.String(), result.Candidates[0].AgentID)
	assert.Equal(t, Healthy, result.Candidates[0].Health)
}

func TestAgentHandleHeartbeatAndDeregister(t *testing.T) {
	r := New(testConfig(), nil)
	a := NewAgent(r, &fakePublisher{}, nil)
	sender := envelope.NewAgentID("weather-agent", "ns")

	r.Register(sender, "specialist", "ctx1", []string{"weather"}, nil)
	r.AgeAll(time.Now().Add(100 * time.Millisecond))

	hbEvent, err := envelope.NewBuilder("weather-agent", "system.registry.heartbeat").
		WithType("io.amcp.system.registry.heartbeat").
		WithSender(sender).
		Build()
	require.NoError(t, err)
	require.NoError(t, a.HandleHeartbeat(context.Background(), hbEvent))

	matches := r.FindByCapability("weather")
	require.Len(t, matches, 1)
	assert.Equal(t, Healthy, matches[0].Health)

	dereg, err := envelope.NewBuilder("weather-agent", "system.registry.deregister").
		WithType("io.amcp.system.registry.deregister").
		WithSender(sender).
		Build()
	require.NoError(t, err)
	require.NoError(t, a.HandleDeregister(context.Background(), dereg))
	assert.Empty(t, r.FindByCapability("weather"))
}

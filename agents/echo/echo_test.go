package echo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owulveryck/amcp/internal/bus"
	"github.com/owulveryck/amcp/internal/envelope"
)

func TestEchoAgentRegistersOnActivate(t *testing.T) {
	b := bus.NewInMemoryBroker()
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop(context.Background()) })

	sub := b.CreateSubscriber("watch-registrations")
	registrations := make(chan *envelope.Event, 1)
	require.NoError(t, sub.Subscribe("system.registry.register", func(_ context.Context, e *envelope.Event) error {
		registrations <- e
		return nil
	}))

	id := envelope.NewAgentID("echo", "amcp")
	pub := b.CreatePublisher(id.String())
	agent := New(id, pub, nil)

	require.NoError(t, agent.OnActivate(context.Background()))

	select {
	case e := <-registrations:
		var p registrationPayload
		require.NoError(t, json.Unmarshal(e.Data, &p))
		assert.Equal(t, "echo", p.AgentType)
		assert.Equal(t, []string{Capability}, p.Capabilities)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for self-registration event")
	}
}

func TestEchoAgentEchoesParamsBack(t *testing.T) {
	b := bus.NewInMemoryBroker()
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop(context.Background()) })

	id := envelope.NewAgentID("echo", "amcp")
	pub := b.CreatePublisher(id.String())
	agent := New(id, pub, nil)

	sub := b.CreateSubscriber("watch-responses")
	responses := make(chan *envelope.Event, 1)
	require.NoError(t, sub.Subscribe(responseTopic, func(_ context.Context, e *envelope.Event) error {
		responses <- e
		return nil
	}))

	reqData, err := json.Marshal(taskRequestPayload{
		TaskID: "t1",
		Params: map[string]interface{}{"message": "hello"},
	})
	require.NoError(t, err)

	req, err := envelope.NewBuilder("caller", requestTopic).
		WithType("io.amcp.task.request").
		WithData(reqData).
		WithCorrelationID("corr-1").
		Build()
	require.NoError(t, err)

	require.NoError(t, agent.HandleEvent(context.Background(), req))

	select {
	case resp := <-responses:
		assert.Equal(t, "corr-1", resp.CorrelationID)
		var p taskResponsePayload
		require.NoError(t, json.Unmarshal(resp.Data, &p))
		assert.Equal(t, "t1", p.TaskID)
		assert.Equal(t, "hello", p.Result["message"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for echo response")
	}
}

func TestEchoAgentIgnoresOtherTopics(t *testing.T) {
	id := envelope.NewAgentID("echo", "amcp")
	agent := New(id, nil, nil)
	e, err := envelope.NewBuilder("x", "task.other.request").WithType("io.amcp.task.request").Build()
	require.NoError(t, err)
	assert.NoError(t, agent.HandleEvent(context.Background(), e))
}

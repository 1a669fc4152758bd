package a2a

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetServiceFromTopic(t *testing.T) {
	assert.Equal(t, "task", targetServiceFromTopic("task.weather.request"))
	assert.Equal(t, "system", targetServiceFromTopic("system.deadletter"))
}

func TestMessageTypeFromTopic(t *testing.T) {
	assert.Equal(t, MessageRequest, messageTypeFromTopic("task.weather.request"))
	assert.Equal(t, MessageResponse, messageTypeFromTopic("task.weather.response"))
	assert.Equal(t, MessageError, messageTypeFromTopic("task.weather.error"))
	assert.Equal(t, MessageEvent, messageTypeFromTopic("system.registry.announce"))
}

func TestInboundTopic(t *testing.T) {
	assert.Equal(t, "a2a.message.response", inboundTopic(MessageResponse))
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*envelope.Event
}

func (f *fakePublisher) Publish(ctx context.Context, e *envelope.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, e)
	return nil
}

func (f *fakePublisher) last() *envelope.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return nil
	}
	return f.published[len(f.published)-1]
}

func TestBridgePushMessage(t *testing.T) {
	var received Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, a2aVersion, r.Header.Get(headerA2AVersion))
		assert.NotEmpty(t, r.Header.Get(headerCorrelationID))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	pub := &fakePublisher{}
	sender := envelope.NewAgentID("bridge", "ns")
	b := NewBridge(srv.URL, sender, pub, nil, time.Second, nil)

	e, err := envelope.NewBuilder("weather", "task.weather.request").
		WithType("io.amcp.task.weather.request").
		WithSender(sender).
		WithData([]byte(`{"city":"nowhere"}`)).
		WithCorrelationID("corr-1").
		Build()
	require.NoError(t, err)

	require.NoError(t, b.OutboundHandler()(context.Background(), e))
	assert.Equal(t, "task", received.TargetService)
	assert.Equal(t, MessageRequest, received.MessageType)
	assert.Equal(t, "corr-1", received.Metadata["correlationId"])
}

func TestBridgeHandleInboundPublishes(t *testing.T) {
	pub := &fakePublisher{}
	sender := envelope.NewAgentID("bridge", "ns")
	b := NewBridge("http://example.invalid", sender, pub, nil, time.Second, nil)

	msg := &Message{
		RequestID:     "req-1",
		MessageType:   MessageResponse,
		SenderID:      "external-agent",
		TargetService: "task",
		Payload:       map[string]interface{}{"ok": true},
		Timestamp:     time.Now(),
		Metadata:      map[string]string{"correlationId": "corr-2"},
	}

	require.NoError(t, b.handleInbound(msg))
	e := pub.last()
	require.NotNil(t, e)
	assert.Equal(t, "a2a.message.response", e.Topic)
	assert.Equal(t, "corr-2", e.CorrelationID)
}

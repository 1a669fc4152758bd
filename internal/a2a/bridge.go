package a2a

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/owulveryck/amcp/internal/amcperr"
	"github.com/owulveryck/amcp/internal/bus"
	"github.com/owulveryck/amcp/internal/envelope"
)

// Publisher is the narrow slice of bus.Broker/agentctx.AgentContext the
// bridge needs; kept minimal so a2a never has to import agentctx.
type Publisher interface {
	Publish(ctx context.Context, e *envelope.Event) error
}

// Tracker is the narrow slice of the correlation tracker (spec component
// C10) the bridge's synchronous Request needs. internal/correlation's
// concrete tracker satisfies this structurally.
type Tracker interface {
	Register(correlationID string, timeout time.Duration) (<-chan *envelope.Event, error)
	Cancel(correlationID string)
}

// Bridge translates between the internal bus and an external A2A endpoint,
// per spec section 4.5. Outbound events matching its subscribed patterns
// are pushed to Endpoint; inbound HTTP messages are republished onto the
// bus as a2a.message.<type> events.
type Bridge struct {
	client   *Client
	server   *Server
	endpoint string
	sender   envelope.AgentID
	pub      Publisher
	tracker  Tracker

	logger *slog.Logger
}

// NewBridge wires a Bridge that pushes to endpoint as sender, publishing
// inbound translations through pub and resolving synchronous Request calls
// through tracker.
func NewBridge(endpoint string, sender envelope.AgentID, pub Publisher, tracker Tracker, timeout time.Duration, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		client:   NewClient(timeout, logger),
		endpoint: endpoint,
		sender:   sender,
		pub:      pub,
		tracker:  tracker,
		logger:   logger,
	}
	b.server = NewServer(b.handleInbound, b.waitForResponse, logger)
	return b
}

// Server exposes the bridge's inbound HTTP routes for mounting on a mux.
func (b *Bridge) Server() *Server { return b.server }

// OutboundHandler returns a bus.Handler that pushes every matching event to
// the external endpoint — subscribe it to whatever patterns (e.g.
// "task.*.request", "task.*.response") should cross the bridge.
func (b *Bridge) OutboundHandler() bus.Handler {
	return func(ctx context.Context, e *envelope.Event) error {
		msg := &Message{
			RequestID:     e.ID,
			MessageType:   messageTypeFromTopic(e.Topic),
			SenderID:      e.Sender.String(),
			TargetService: targetServiceFromTopic(e.Topic),
			Payload:       json.RawMessage(e.Data),
			Timestamp:     e.Time,
			Metadata:      namespaceMetadata(e),
		}
		return b.client.PushMessage(ctx, b.endpoint, msg)
	}
}

// handleInbound is the Server's translation hook: it converts an arriving
// external Message into an internal event on a2a.message.<type> and
// publishes it, preserving correlation per spec section 4.5.
func (b *Bridge) handleInbound(msg *Message) error {
	ctx := context.Background()
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return amcperr.New(amcperr.KindValidation, component, "handleInbound", err)
	}

	correlationID := msg.Metadata["correlationId"]
	if correlationID == "" {
		correlationID = msg.RequestID
	}

	builder := envelope.NewBuilder(msg.SenderID, inboundTopic(msg.MessageType)).
		WithType("io.amcp.a2a." + string(msg.MessageType)).
		WithData(payload).
		WithCorrelationID(correlationID)
	for k, v := range msg.Metadata {
		builder = builder.WithMetadata(k, v)
	}

	e, err := builder.Build()
	if err != nil {
		return err
	}

	return b.pub.Publish(ctx, e)
}

func (b *Bridge) waitForResponse(correlationID string) (*Message, error) {
	if b.tracker == nil {
		return nil, amcperr.New(amcperr.KindUnavailable, component, "waitForResponse", errNoTracker)
	}
	ch, err := b.tracker.Register(correlationID, 30*time.Second)
	if err != nil {
		return nil, amcperr.New(amcperr.KindConflict, component, "waitForResponse", err)
	}
	e, ok := <-ch
	if !ok {
		return nil, amcperr.New(amcperr.KindTimeout, component, "waitForResponse", errResponseTimeout)
	}
	return &Message{
		RequestID:     e.ID,
		MessageType:   MessageResponse,
		SenderID:      e.Sender.String(),
		TargetService: targetServiceFromTopic(e.Topic),
		Payload:       json.RawMessage(e.Data),
		Timestamp:     e.Time,
		Metadata:      e.Metadata,
	}, nil
}

// Request publishes an outbound event derived from topic/payload, waits for
// a correlated response via the tracker, and returns it or a timeout error,
// per spec section 4.5's synchronous request/response contract.
func (b *Bridge) Request(ctx context.Context, topic string, payload []byte, timeout time.Duration) (*envelope.Event, error) {
	if b.tracker == nil {
		return nil, amcperr.New(amcperr.KindUnavailable, component, "Request", errNoTracker)
	}

	correlationID := uuid.NewString()
	e, err := envelope.NewBuilder(b.sender.String(), topic).
		WithType("io.amcp." + topic).
		WithData(payload).
		WithSender(b.sender).
		WithCorrelationID(correlationID).
		Build()
	if err != nil {
		return nil, err
	}

	ch, err := b.tracker.Register(correlationID, timeout)
	if err != nil {
		return nil, amcperr.New(amcperr.KindConflict, component, "Request", err)
	}
	if err := b.pub.Publish(ctx, e); err != nil {
		b.tracker.Cancel(correlationID)
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, amcperr.New(amcperr.KindTimeout, component, "Request", errResponseTimeout)
		}
		return resp, nil
	case <-ctx.Done():
		b.tracker.Cancel(correlationID)
		return nil, amcperr.New(amcperr.KindTimeout, component, "Request", ctx.Err())
	}
}

func namespaceMetadata(e *envelope.Event) map[string]string {
	out := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		out[metadataNamespace+k] = v
	}
	if e.CorrelationID != "" {
		out["correlationId"] = e.CorrelationID
	}
	return out
}

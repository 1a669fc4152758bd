package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/owulveryck/amcp/internal/envelope"
)

// registrationPayload is the JSON body carried on system.registry.register.
type registrationPayload struct {
	AgentType    string            `json:"agentType"`
	ContextID    string            `json:"contextId"`
	Capabilities []string          `json:"capabilities"`
	Metadata     map[string]string `json:"metadata"`
}

// heartbeatPayload is the JSON body carried on system.registry.heartbeat.
type heartbeatPayload struct {
	LatencyMillis int64 `json:"latencyMillis,omitempty"`
}

// queryPayload is the JSON body carried on a system.registry.query request.
type queryPayload struct {
	Capability string `json:"capability"`
}

// queryResult is the JSON body published on the matching response topic.
type queryResult struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	AgentID   string `json:"agentId"`
	AgentType string `json:"agentType"`
	Health    Health `json:"health"`
}

// Publisher is the narrow publish surface the registry agent needs.
type Publisher interface {
	Publish(ctx context.Context, e *envelope.Event) error
}

// Agent binds a Registry to the system.registry.* bus topics, translating
// events per spec section 4.6: register/heartbeat/deregister mutate the
// directory; query requests get a ranked candidate list back on the event's
// reply topic (carried in its metadata["replyTo"]).
type Agent struct {
	reg    *Registry
	pub    Publisher
	logger *slog.Logger
}

// NewAgent wires reg to pub for publishing query responses.
func NewAgent(reg *Registry, pub Publisher, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{reg: reg, pub: pub, logger: logger}
}

// HandleRegister processes a system.registry.register event.
func (a *Agent) HandleRegister(ctx context.Context, e *envelope.Event) error {
	var p registrationPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return err
	}
	a.reg.Register(e.Sender, p.AgentType, p.ContextID, p.Capabilities, p.Metadata)
	return nil
}

// HandleHeartbeat processes a system.registry.heartbeat event.
func (a *Agent) HandleHeartbeat(ctx context.Context, e *envelope.Event) error {
	if !a.reg.Heartbeat(e.Sender) {
		a.logger.WarnContext(ctx, "heartbeat from unregistered agent", "agent", e.Sender.String())
		return nil
	}
	var p heartbeatPayload
	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, &p); err == nil && p.LatencyMillis > 0 {
			a.reg.RecordLatency(e.Sender, time.Duration(p.LatencyMillis)*time.Millisecond)
		}
	}
	return nil
}

// HandleDeregister processes a system.registry.deregister event.
func (a *Agent) HandleDeregister(ctx context.Context, e *envelope.Event) error {
	a.reg.Deregister(e.Sender)
	return nil
}

// HandleQuery processes a system.registry.query request and publishes the
// ranked result to the topic named in e.Metadata["replyTo"], preserving
// the request's correlation id.
func (a *Agent) HandleQuery(ctx context.Context, e *envelope.Event) error {
	var p queryPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return err
	}

	records := a.reg.FindByCapability(p.Capability)
	result := queryResult{Candidates: make([]candidate, 0, len(records))}
	for _, rec := range records {
		result.Candidates = append(result.Candidates, candidate{
			AgentID:   rec.AgentID.String(),
			AgentType: rec.AgentType,
			Health:    rec.Health,
		})
	}

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	replyTo := e.Metadata["replyTo"]
	if replyTo == "" {
		replyTo = "system.registry.response"
	}

	resp, err := envelope.NewBuilder("registry", replyTo).
		WithType("io.amcp.system.registry.response").
		WithData(data).
		WithCorrelationID(e.CorrelationID).
		Build()
	if err != nil {
		return err
	}
	return a.pub.Publish(ctx, resp)
}

// Package echo is a minimal specialist agent demonstrating the
// agentctx.Agent contract end to end: it advertises the "echo" capability,
// registers itself with the registry agent, and answers task.echo.request
// by returning its params back as the result. Not a domain agent — it
// exists purely as a wiring proof, grounded on the teacher's
// agents/echo_agent/main.go (a handler that repeats back its input for
// testing), generalized from the teacher's gRPC registration/streaming
// calls onto the bus/envelope model the rest of this mesh uses.
package echo

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/owulveryck/amcp/internal/agentctx"
	"github.com/owulveryck/amcp/internal/bus"
	"github.com/owulveryck/amcp/internal/envelope"
)

const (
	Capability    = "echo"
	requestTopic  = "task.echo.request"
	responseTopic = "task.echo.response"
)

// Agent is the echo specialist.
type Agent struct {
	agentctx.BaseAgent

	pub    *bus.Publisher
	logger *slog.Logger
}

// New constructs the echo agent. pub is used both to self-register with
// the directory on activation and to publish task responses.
func New(id envelope.AgentID, pub *bus.Publisher, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		BaseAgent: agentctx.NewBaseAgent(id, "echo", []string{requestTopic}),
		pub:       pub,
		logger:    logger,
	}
}

type registrationPayload struct {
	AgentType    string   `json:"agentType"`
	Capabilities []string `json:"capabilities"`
}

// OnActivate announces the echo capability to the registry, mirroring the
// teacher's RegisterAgent call made right after the hub client starts.
func (a *Agent) OnActivate(ctx context.Context) error {
	data, err := json.Marshal(registrationPayload{
		AgentType:    "echo",
		Capabilities: []string{Capability},
	})
	if err != nil {
		return err
	}
	e, err := envelope.NewBuilder(a.ID().String(), "system.registry.register").
		WithType("io.amcp.system.registry.register").
		WithData(data).
		WithSender(a.ID()).
		Build()
	if err != nil {
		return err
	}
	return a.pub.Publish(ctx, e)
}

type taskRequestPayload struct {
	TaskID string                 `json:"taskId"`
	Params map[string]interface{} `json:"params"`
}

type taskResponsePayload struct {
	TaskID string                 `json:"taskId"`
	Result map[string]interface{} `json:"result"`
}

// HandleEvent answers a task.echo.request by echoing its params back as
// the result, preserving the request's correlation id.
func (a *Agent) HandleEvent(ctx context.Context, e *envelope.Event) error {
	if e.Topic != requestTopic {
		return nil
	}

	var req taskRequestPayload
	if err := json.Unmarshal(e.Data, &req); err != nil {
		a.logger.ErrorContext(ctx, "echo: malformed task request", "error", err)
		return err
	}

	data, err := json.Marshal(taskResponsePayload{TaskID: req.TaskID, Result: req.Params})
	if err != nil {
		return err
	}

	resp, err := envelope.NewBuilder(a.ID().String(), responseTopic).
		WithType("io.amcp.task.response").
		WithData(data).
		WithCorrelationID(e.CorrelationID).
		Build()
	if err != nil {
		return err
	}
	return a.pub.Publish(ctx, resp)
}

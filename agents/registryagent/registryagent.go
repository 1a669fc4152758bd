// Package registryagent wires a registry.Registry into the mesh as an
// ordinary agentctx.Agent, so it rides the same activation/subscription
// machinery every other agent does rather than needing bespoke bootstrap
// code in cmd/context. Grounded on internal/registry/agent.go, whose Agent
// type exposes four independent per-topic handlers instead of a single
// HandleEvent dispatcher — this wrapper is the dispatch layer that was
// missing, plus the lifecycle hook that starts the aging loop.
package registryagent

import (
	"context"
	"log/slog"

	"github.com/owulveryck/amcp/internal/agentctx"
	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/owulveryck/amcp/internal/registry"
)

const (
	TopicRegister   = "system.registry.register"
	TopicHeartbeat  = "system.registry.heartbeat"
	TopicDeregister = "system.registry.deregister"
	TopicQuery      = "system.registry.query"
)

// Agent adapts a *registry.Agent to the agentctx.Agent contract and keeps
// the registry's aging loop running for as long as this agent is active.
type Agent struct {
	agentctx.BaseAgent

	reg    *registry.Registry
	inner  *registry.Agent
	cancel context.CancelFunc
}

// New constructs the wrapper. reg is the capability directory; pub is
// where query responses get published.
func New(id envelope.AgentID, reg *registry.Registry, pub registry.Publisher, logger *slog.Logger) *Agent {
	return &Agent{
		BaseAgent: agentctx.NewBaseAgent(id, "registry", []string{
			TopicRegister,
			TopicHeartbeat,
			TopicDeregister,
			TopicQuery,
		}),
		reg:   reg,
		inner: registry.NewAgent(reg, pub, logger),
	}
}

// HandleEvent dispatches by topic to the wrapped registry.Agent's
// per-concern handlers.
func (a *Agent) HandleEvent(ctx context.Context, e *envelope.Event) error {
	switch e.Topic {
	case TopicRegister:
		return a.inner.HandleRegister(ctx, e)
	case TopicHeartbeat:
		return a.inner.HandleHeartbeat(ctx, e)
	case TopicDeregister:
		return a.inner.HandleDeregister(ctx, e)
	case TopicQuery:
		return a.inner.HandleQuery(ctx, e)
	default:
		return nil
	}
}

// OnActivate starts the aging loop on a context detached from ctx, so a
// short-lived activation call doesn't cut the loop off; OnDestroy is what
// stops it.
func (a *Agent) OnActivate(ctx context.Context) error {
	aging, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	go a.reg.RunAging(aging)
	return nil
}

func (a *Agent) OnDestroy(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

// Registry exposes the underlying directory, e.g. for a CapabilityResolver
// wiring into the orchestrator agent within the same process.
func (a *Agent) Registry() *registry.Registry { return a.reg }

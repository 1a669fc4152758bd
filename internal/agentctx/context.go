package agentctx

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/owulveryck/amcp/internal/amcperr"
	"github.com/owulveryck/amcp/internal/bus"
	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/owulveryck/amcp/internal/observability"
)

const component = "agentctx"

// Factory re-instantiates an agent of agentType with a given id, replacing
// the reflection-driven factories the design note calls out (spec section
// 9). Mobility messages carry the type tag; the destination context looks
// up the factory and calls it with the freshly assigned AgentID.
type Factory func(id envelope.AgentID) Agent

// AgentContext owns a set of agents, their lifecycle states, and the event
// broker they publish/subscribe through. It never appears inside an
// agent's serialized state — agents only know their context by ContextID
// (spec section 9's guidance on breaking the context/agent cyclic
// reference).
type AgentContext struct {
	contextID string
	broker    bus.Broker

	mu       sync.RWMutex
	agents   map[envelope.AgentID]Agent
	states   map[envelope.AgentID]LifecycleState
	factories map[string]Factory
	props    map[string]interface{}

	logger *slog.Logger
	trace  *observability.TraceManager
	stats  *observability.MetricsManager

	migrationTimeout time.Duration
}

// defaultMigrationTimeout matches internal/mobility.Manager's own fallback
// (and internal/config's AMCP_MOBILITY_TIMEOUT default) for when no explicit
// timeout has been set via SetMigrationTimeout.
const defaultMigrationTimeout = 30 * time.Second

// New constructs an AgentContext bound to broker.
func New(contextID string, broker bus.Broker, logger *slog.Logger, trace *observability.TraceManager, stats *observability.MetricsManager) *AgentContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentContext{
		contextID:        contextID,
		broker:           broker,
		agents:           make(map[envelope.AgentID]Agent),
		states:           make(map[envelope.AgentID]LifecycleState),
		factories:        make(map[string]Factory),
		props:            make(map[string]interface{}),
		logger:           logger,
		trace:            trace,
		stats:            stats,
		migrationTimeout: defaultMigrationTimeout,
	}
}

// SetMigrationTimeout overrides how long makeHandler's dispatch path will
// wait for a MIGRATING agent to settle before giving up, per spec section
// 4.3's "pauses new event delivery (queues them)" contract. Callers should
// pass the same duration internal/mobility.Manager is configured with
// (config.AppConfig.MobilityTimeout), so a bus-level wait never times out
// sooner than the migration it's waiting on.
func (c *AgentContext) SetMigrationTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.migrationTimeout = d
}

func (c *AgentContext) ContextID() string { return c.contextID }

// RegisterFactory wires an AgentType -> Factory mapping used to
// re-instantiate agents arriving via mobility.
func (c *AgentContext) RegisterFactory(agentType string, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[agentType] = f
}

func (c *AgentContext) FactoryFor(agentType string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[agentType]
	return f, ok
}

func (c *AgentContext) SetProperty(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.props[key] = value
}

func (c *AgentContext) Property(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.props[key]
	return v, ok
}

// RegisterAgent adds agent in INACTIVE state and binds its declared
// subscription patterns, but does not activate it.
func (c *AgentContext) RegisterAgent(ctx context.Context, agent Agent) error {
	id := agent.ID()

	c.mu.Lock()
	if _, exists := c.agents[id]; exists {
		c.mu.Unlock()
		return amcperr.New(amcperr.KindConflict, component, "RegisterAgent", errAlreadyRegistered)
	}
	c.agents[id] = agent
	c.states[id] = StateInactive
	c.mu.Unlock()

	if err := c.bindSubscriptions(agent); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "agent registered", "agent", id.String(), "type", agent.Type())
	return nil
}

func (c *AgentContext) bindSubscriptions(agent Agent) error {
	handler := c.makeHandler(agent.ID())
	for _, pattern := range agent.SubscriptionPatterns() {
		if err := c.broker.Subscribe(agent.ID().String(), pattern, handler); err != nil {
			return amcperr.New(amcperr.KindInternal, component, "bindSubscriptions", err)
		}
	}
	return nil
}

func (c *AgentContext) unbindSubscriptions(agent Agent) {
	for _, pattern := range agent.SubscriptionPatterns() {
		_ = c.broker.Unsubscribe(agent.ID().String(), pattern)
	}
}

// UnregisterAgent removes a DESTROYED or INACTIVE agent from the context.
func (c *AgentContext) UnregisterAgent(ctx context.Context, id envelope.AgentID) error {
	c.mu.Lock()
	agent, ok := c.agents[id]
	if !ok {
		c.mu.Unlock()
		return amcperr.New(amcperr.KindNotFound, component, "UnregisterAgent", errUnknownAgent)
	}
	delete(c.agents, id)
	delete(c.states, id)
	c.mu.Unlock()

	c.unbindSubscriptions(agent)
	return nil
}

// ActivateAgent transitions INACTIVE -> ACTIVE, invoking OnActivate.
func (c *AgentContext) ActivateAgent(ctx context.Context, id envelope.AgentID) error {
	agent, err := c.transition(id, StateInactive, StateActive)
	if err != nil {
		return err
	}
	if err := agent.OnActivate(ctx); err != nil {
		c.setState(id, StateInactive)
		return amcperr.New(amcperr.KindInternal, component, "ActivateAgent", err)
	}
	return nil
}

// DeactivateAgent transitions ACTIVE -> INACTIVE, invoking OnDeactivate.
func (c *AgentContext) DeactivateAgent(ctx context.Context, id envelope.AgentID) error {
	agent, err := c.transition(id, StateActive, StateInactive)
	if err != nil {
		return err
	}
	return agent.OnDeactivate(ctx)
}

// DestroyAgent moves an agent to the terminal DESTROYED state.
func (c *AgentContext) DestroyAgent(ctx context.Context, id envelope.AgentID) error {
	c.mu.Lock()
	agent, ok := c.agents[id]
	if !ok {
		c.mu.Unlock()
		return amcperr.New(amcperr.KindNotFound, component, "DestroyAgent", errUnknownAgent)
	}
	c.states[id] = StateDestroyed
	c.mu.Unlock()

	return agent.OnDestroy(ctx)
}

func (c *AgentContext) transition(id envelope.AgentID, from, to LifecycleState) (Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	agent, ok := c.agents[id]
	if !ok {
		return nil, amcperr.New(amcperr.KindNotFound, component, "transition", errUnknownAgent)
	}
	current := c.states[id]
	if current != from {
		return nil, amcperr.New(amcperr.KindConflict, component, "transition", errLifecycleViolation)
	}
	c.states[id] = to
	return agent, nil
}

func (c *AgentContext) setState(id envelope.AgentID, s LifecycleState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.agents[id]; ok {
		c.states[id] = s
	}
}

// State returns the current lifecycle state of id.
func (c *AgentContext) State(id envelope.AgentID) (LifecycleState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.states[id]
	return s, ok
}

// Agents returns a snapshot of every registered AgentID.
func (c *AgentContext) Agents() []envelope.AgentID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]envelope.AgentID, 0, len(c.agents))
	for id := range c.agents {
		out = append(out, id)
	}
	return out
}

// Publish lets any caller (an agent acting through its context, or the
// orchestrator) push an event onto the bus this context is bound to.
func (c *AgentContext) Publish(ctx context.Context, e *envelope.Event) error {
	dctx := ctx
	endSpan := func() {}
	if c.trace != nil {
		sctx, span := c.trace.StartPublishSpan(ctx, e.Topic, e.Type)
		dctx = sctx
		endSpan = func() { span.End() }
	}
	defer endSpan()
	return c.broker.Publish(dctx, e)
}

// Subscribe binds a raw handler for agentId/pattern, used by components
// (registry, orchestrator) that aren't full Agent implementations.
func (c *AgentContext) Subscribe(agentID envelope.AgentID, pattern string, handler bus.Handler) error {
	return c.broker.Subscribe(agentID.String(), pattern, handler)
}

func (c *AgentContext) Unsubscribe(agentID envelope.AgentID, pattern string) error {
	return c.broker.Unsubscribe(agentID.String(), pattern)
}

// SendControlEvent delivers a pre-defined operational command to agentId.
// Control events bypass the ordinary dispatch queue semantics (they are
// applied directly here) but still observe the agent's current state.
func (c *AgentContext) SendControlEvent(ctx context.Context, id envelope.AgentID, evt ControlEvent) error {
	switch evt.Kind {
	case ControlPing:
		return nil
	case ControlDrain:
		return c.DeactivateAgent(ctx, id)
	case ControlShutdown:
		_ = c.DeactivateAgent(ctx, id)
		return c.DestroyAgent(ctx, id)
	case ControlMigrate:
		return nil // handled by the mobility manager, which drives state directly
	default:
		return amcperr.New(amcperr.KindValidation, component, "SendControlEvent", errUnknownControlKind)
	}
}

// makeHandler returns the bus.Handler bound for one agent's subscriptions.
// It enforces "events are only delivered when state is ACTIVE" and blocks
// while MIGRATING, for up to the configured migration timeout, so queued
// events drain into the normal path once the migration resolves instead of
// being silently acknowledged. RELIABLE delivery depends on this: if the
// wait gave up early, bus.dispatchReliable would record the event as
// delivered even though HandleEvent was never called.
func (c *AgentContext) makeHandler(id envelope.AgentID) bus.Handler {
	return func(ctx context.Context, e *envelope.Event) error {
		agent, state := c.lookup(id)
		if agent == nil {
			return nil
		}

		if state == StateMigrating {
			agent, state = c.waitForSettled(ctx, id)
			if agent == nil {
				return nil
			}
			if state == StateMigrating {
				// Timed out (or ctx was canceled) still mid-migration: surface
				// this as a failure instead of silently treating the event as
				// delivered, so RELIABLE delivery retries or dead-letters it.
				return amcperr.New(amcperr.KindUnavailable, component, "makeHandler", errAgentNotActive)
			}
		}

		if state != StateActive {
			return nil
		}
		return agent.HandleEvent(ctx, e)
	}
}

func (c *AgentContext) lookup(id envelope.AgentID) (Agent, LifecycleState) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.agents[id], c.states[id]
}

func (c *AgentContext) migrationTimeoutValue() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.migrationTimeout
}

// waitForSettled polls until the agent leaves MIGRATING, for as long as the
// configured migration timeout (SetMigrationTimeout, default 30s) allows, or
// until ctx is canceled. The in-memory reference implementation favors this
// simple poll over a per-agent condition variable; dispatch is already
// serialized per subscriber so the wait only ever blocks this one agent's
// queue. Giving up before the agent settles returns its last-observed state
// rather than silently treating the event as delivered.
func (c *AgentContext) waitForSettled(ctx context.Context, id envelope.AgentID) (Agent, LifecycleState) {
	deadline := time.NewTimer(c.migrationTimeoutValue())
	defer deadline.Stop()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		agent, state := c.lookup(id)
		if state != StateMigrating {
			return agent, state
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			return c.lookup(id)
		case <-ctx.Done():
			return c.lookup(id)
		}
	}
}

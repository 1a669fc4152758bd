package agentctx

import (
	"context"

	"github.com/owulveryck/amcp/internal/amcperr"
	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/owulveryck/amcp/internal/mobility"
)

// The methods in this file satisfy mobility.ContextHandle by structural
// typing. mobility depends only on envelope, never on agentctx, so this is
// a one-way dependency from agentctx down into mobility — no cycle forms
// (spec section 9's guidance on breaking the context/agent/manager cyclic
// reference).
var _ mobility.ContextHandle = (*AgentContext)(nil)

// BeginMigration transitions agent to MIGRATING and hands it back to the
// caller (the mobility manager) so it can run OnBeforeMigration and
// capture state while new events queue behind this agent's subscriber
// dispatch loop.
func (c *AgentContext) BeginMigration(ctx context.Context, id envelope.AgentID) (mobility.Agent, error) {
	agent, err := c.transition(id, StateActive, StateMigrating)
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// RollbackMigration restores a MIGRATING agent to ACTIVE after a failed
// transfer, per spec section 4.4 step 6's failure path.
func (c *AgentContext) RollbackMigration(ctx context.Context, id envelope.AgentID) error {
	_, err := c.transition(id, StateMigrating, StateActive)
	return err
}

// FinalizeDeparture removes the agent after a successful dispatch/retract;
// clone instead returns the source to ACTIVE through ReactivateAfterClone.
func (c *AgentContext) FinalizeDeparture(ctx context.Context, id envelope.AgentID) error {
	c.mu.Lock()
	agent, ok := c.agents[id]
	if !ok {
		c.mu.Unlock()
		return amcperr.New(amcperr.KindNotFound, component, "FinalizeDeparture", errUnknownAgent)
	}
	delete(c.agents, id)
	delete(c.states, id)
	c.mu.Unlock()

	c.unbindSubscriptions(agent)
	return nil
}

// ReactivateAfterClone transitions the source agent from MIGRATING back to
// ACTIVE once a clone has been handed off; the source keeps its
// registration and subscriptions.
func (c *AgentContext) ReactivateAfterClone(ctx context.Context, id envelope.AgentID) error {
	_, err := c.transition(id, StateMigrating, StateActive)
	return err
}

// InstallAgent reconstructs an agent of agentType using the registered
// factory, restores its captured state, re-binds its declared
// subscriptions, and registers it INACTIVE (the caller activates it after
// OnAfterMigration runs).
func (c *AgentContext) InstallAgent(ctx context.Context, agentType string, id envelope.AgentID, state []byte) (mobility.Agent, error) {
	factory, ok := c.FactoryFor(agentType)
	if !ok {
		return nil, amcperr.New(amcperr.KindMobility, component, "InstallAgent", errNoFactory)
	}

	agent := factory(id)
	if state != nil {
		if err := agent.RestoreState(state); err != nil {
			return nil, amcperr.New(amcperr.KindMobility, component, "InstallAgent", err)
		}
	}

	c.mu.Lock()
	if _, exists := c.agents[id]; exists {
		c.mu.Unlock()
		return nil, amcperr.New(amcperr.KindConflict, component, "InstallAgent", errAlreadyRegistered)
	}
	c.agents[id] = agent
	c.states[id] = StateInactive
	c.mu.Unlock()

	if err := c.bindSubscriptions(agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// RemoveAgent deletes id without running lifecycle hooks, used to undo a
// partially-installed agent when a migration fails after InstallAgent.
func (c *AgentContext) RemoveAgent(ctx context.Context, id envelope.AgentID) {
	c.mu.Lock()
	agent, ok := c.agents[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.agents, id)
	delete(c.states, id)
	c.mu.Unlock()
	c.unbindSubscriptions(agent)
}

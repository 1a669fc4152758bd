// Package agentctx implements the agent runtime (spec components C4/C5):
// an AgentContext that owns a set of agents, routes inbound bus events to
// them, and drives their lifecycle state machine. The four agent
// capabilities from spec section 9's design note — EventHandler,
// Lifecycle, Mobile, StatefulPersistable — are kept as separate
// interfaces composed into Agent, replacing the dynamic-inheritance
// pattern the design note calls out.
package agentctx

import (
	"context"

	"github.com/owulveryck/amcp/internal/envelope"
)

// LifecycleState is a node in the per-agent state machine described in
// spec section 4.3.
type LifecycleState string

const (
	StateInactive  LifecycleState = "INACTIVE"
	StateActive    LifecycleState = "ACTIVE"
	StateMigrating LifecycleState = "MIGRATING"
	StateDestroyed LifecycleState = "DESTROYED"
)

// EventHandler reacts to events delivered on the agent's subscriptions.
type EventHandler interface {
	HandleEvent(ctx context.Context, e *envelope.Event) error
}

// Lifecycle receives the context's state-machine callbacks.
type Lifecycle interface {
	OnActivate(ctx context.Context) error
	OnDeactivate(ctx context.Context) error
	OnDestroy(ctx context.Context) error
}

// Mobile receives the migration-specific hooks, strictly ordered per spec
// section 4.4: OnBeforeMigration on the source before state capture,
// OnAfterMigration on the destination after subscriptions are re-bound.
type Mobile interface {
	OnBeforeMigration(ctx context.Context, destination string) error
	OnAfterMigration(ctx context.Context, source string) error
}

// StatefulPersistable captures and restores an agent's declared
// serializable state, replacing reflection-driven field capture.
type StatefulPersistable interface {
	CaptureState() ([]byte, error)
	RestoreState(data []byte) error
}

// Agent composes the four capabilities; a concrete agent type implements
// this by embedding BaseAgent and overriding only what it needs.
type Agent interface {
	EventHandler
	Lifecycle
	Mobile
	StatefulPersistable

	ID() envelope.AgentID
	Type() string
	SubscriptionPatterns() []string
}

// BaseAgent supplies no-op defaults for every capability except
// HandleEvent, which a concrete agent must still implement — mirroring
// how the teacher's SubAgent ships sensible defaults and lets callers
// override only AddSkill handlers.
type BaseAgent struct {
	id       envelope.AgentID
	typ      string
	patterns []string
}

// NewBaseAgent constructs the embeddable agent scaffold.
func NewBaseAgent(id envelope.AgentID, agentType string, patterns []string) BaseAgent {
	return BaseAgent{id: id, typ: agentType, patterns: patterns}
}

func (b *BaseAgent) ID() envelope.AgentID          { return b.id }
func (b *BaseAgent) Type() string                  { return b.typ }
func (b *BaseAgent) SubscriptionPatterns() []string { return b.patterns }

func (b *BaseAgent) OnActivate(ctx context.Context) error   { return nil }
func (b *BaseAgent) OnDeactivate(ctx context.Context) error { return nil }
func (b *BaseAgent) OnDestroy(ctx context.Context) error    { return nil }

func (b *BaseAgent) OnBeforeMigration(ctx context.Context, destination string) error { return nil }
func (b *BaseAgent) OnAfterMigration(ctx context.Context, source string) error       { return nil }

func (b *BaseAgent) CaptureState() ([]byte, error)    { return nil, nil }
func (b *BaseAgent) RestoreState(data []byte) error   { return nil }

// setID overwrites the agent's id in place.
func (b *BaseAgent) setID(id envelope.AgentID) { b.id = id }

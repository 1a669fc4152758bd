// Package mobility implements the strong-mobility subsystem (spec
// component C6): dispatch, clone, retract and replicate between
// AgentContexts, with the transfer protocol and hook ordering from spec
// section 4.4. agentctx depends on it (not the reverse) so the
// context/agent/manager cyclic reference the design note warns about never
// forms: agentctx.AgentContext satisfies ContextHandle and agentctx.Agent
// satisfies Agent purely by having the right methods.
package mobility

import (
	"context"
	"time"

	"github.com/owulveryck/amcp/internal/envelope"
)

// Mode is the migration mode carried on a MigrationTicket.
type Mode string

const (
	ModeDispatch Mode = "dispatch"
	ModeClone    Mode = "clone"
	ModeRetract  Mode = "retract"
)

// TransferOptions configures one migration operation.
type TransferOptions struct {
	Timeout  time.Duration
	Mode     Mode
	AuthToken string
}

// MigrationTicket is the transfer envelope created by the source on
// onBeforeMigration and consumed by the destination on receipt (spec
// section 3).
type MigrationTicket struct {
	AgentID            envelope.AgentID
	SourceContext      string
	DestinationContext string
	SerializedState    []byte
	AgentType          string
	Options            TransferOptions
}

// Agent is the subset of agentctx.Agent the mobility manager needs; any
// value with these methods (agentctx.Agent included) satisfies it.
type Agent interface {
	ID() envelope.AgentID
	Type() string
	CaptureState() ([]byte, error)
	RestoreState(data []byte) error
	OnBeforeMigration(ctx context.Context, destination string) error
	OnAfterMigration(ctx context.Context, source string) error
}

// ContextHandle is the subset of agentctx.AgentContext the mobility
// manager drives; agentctx.AgentContext satisfies it directly.
type ContextHandle interface {
	ContextID() string

	BeginMigration(ctx context.Context, id envelope.AgentID) (Agent, error)
	RollbackMigration(ctx context.Context, id envelope.AgentID) error
	FinalizeDeparture(ctx context.Context, id envelope.AgentID) error
	ReactivateAfterClone(ctx context.Context, id envelope.AgentID) error

	InstallAgent(ctx context.Context, agentType string, id envelope.AgentID, state []byte) (Agent, error)
	RemoveAgent(ctx context.Context, id envelope.AgentID)
	ActivateAgent(ctx context.Context, id envelope.AgentID) error

	Publish(ctx context.Context, e *envelope.Event) error
}

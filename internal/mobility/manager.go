package mobility

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/owulveryck/amcp/internal/amcperr"
	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/owulveryck/amcp/internal/observability"
)

const component = "mobility"

// Manager drives dispatch/clone/retract/replicate across a set of
// registered contexts, implementing the transfer protocol and hook
// ordering from spec section 4.4. The in-memory reference implementation
// transmits the MigrationTicket by direct call between the two
// ContextHandles rather than over the wire, since both contexts live in
// this process; a distributed deployment would swap this for a RELIABLE
// bus publish on system.mobility.** as spec section 4.4 step 4 allows.
type Manager struct {
	mu       sync.RWMutex
	contexts map[string]ContextHandle

	logger *slog.Logger
	trace  *observability.TraceManager
	stats  *observability.MetricsManager
}

func NewManager(logger *slog.Logger, trace *observability.TraceManager, stats *observability.MetricsManager) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{contexts: make(map[string]ContextHandle), logger: logger, trace: trace, stats: stats}
}

// RegisterContext makes ctx a valid source/destination for mobility
// operations under its ContextID.
func (m *Manager) RegisterContext(ctx ContextHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[ctx.ContextID()] = ctx
}

func (m *Manager) contextByID(id string) (ContextHandle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contexts[id]
	if !ok {
		return nil, amcperr.New(amcperr.KindNotFound, component, "contextByID", errUnknownContext)
	}
	return c, nil
}

// Dispatch moves agentID from sourceContextID to destContextID. On
// success the agent no longer exists in the source; on failure the source
// agent is rolled back to ACTIVE with no lost events.
func (m *Manager) Dispatch(ctx context.Context, sourceContextID, destContextID string, agentID envelope.AgentID, opts TransferOptions) error {
	opts.Mode = ModeDispatch
	_, err := m.transfer(ctx, sourceContextID, destContextID, agentID, opts, false)
	return err
}

// Clone copies agentID to destContextID; the source retains its ACTIVE
// agent and the destination gets a fresh AgentID.
func (m *Manager) Clone(ctx context.Context, sourceContextID, destContextID string, agentID envelope.AgentID) (envelope.AgentID, error) {
	opts := TransferOptions{Mode: ModeClone}
	return m.transfer(ctx, sourceContextID, destContextID, agentID, opts, true)
}

// Retract recalls a previously dispatched agent back to callerContextID.
func (m *Manager) Retract(ctx context.Context, agentID envelope.AgentID, fromContextID, callerContextID string) error {
	opts := TransferOptions{Mode: ModeRetract}
	_, err := m.transfer(ctx, fromContextID, callerContextID, agentID, opts, false)
	return err
}

// Replicate issues a Clone to each listed destination context.
func (m *Manager) Replicate(ctx context.Context, sourceContextID string, destContextIDs []string, agentID envelope.AgentID) ([]envelope.AgentID, error) {
	ids := make([]envelope.AgentID, 0, len(destContextIDs))
	for _, dest := range destContextIDs {
		newID, err := m.Clone(ctx, sourceContextID, dest, agentID)
		if err != nil {
			return ids, err
		}
		ids = append(ids, newID)
	}
	return ids, nil
}

// transfer implements spec section 4.4's six-step protocol. When keepSource
// is true (clone/replicate) the source agent is reactivated instead of
// removed once the destination confirms.
func (m *Manager) transfer(ctx context.Context, sourceContextID, destContextID string, agentID envelope.AgentID, opts TransferOptions, keepSource bool) (envelope.AgentID, error) {
	var zero envelope.AgentID

	source, err := m.contextByID(sourceContextID)
	if err != nil {
		return zero, err
	}
	dest, err := m.contextByID(destContextID)
	if err != nil {
		return zero, err
	}

	dctx := ctx
	endSpan := func() {}
	if m.trace != nil {
		sctx, span := m.trace.StartDispatchSpan(ctx, agentID.String(), destContextID, string(opts.Mode))
		dctx = sctx
		endSpan = func() { span.End() }
	}
	defer endSpan()

	// Step 1: source transitions to MIGRATING.
	agent, err := source.BeginMigration(dctx, agentID)
	if err != nil {
		m.recordTransfer(dctx, opts.Mode, sourceContextID, false)
		return zero, amcperr.New(amcperr.KindMobility, component, "transfer", err)
	}

	// Step 2: onBeforeMigration.
	if err := agent.OnBeforeMigration(dctx, destContextID); err != nil {
		_ = source.RollbackMigration(dctx, agentID)
		m.emitFailed(dctx, source, agentID, sourceContextID, destContextID, err)
		m.recordTransfer(dctx, opts.Mode, sourceContextID, false)
		return zero, amcperr.New(amcperr.KindMobility, component, "transfer", err)
	}

	// Step 3: capture state.
	state, err := agent.CaptureState()
	if err != nil {
		_ = source.RollbackMigration(dctx, agentID)
		m.emitFailed(dctx, source, agentID, sourceContextID, destContextID, err)
		m.recordTransfer(dctx, opts.Mode, sourceContextID, false)
		return zero, amcperr.New(amcperr.KindMobility, component, "transfer", err)
	}

	newID := agentID
	if keepSource {
		newID = agentID.Clone()
	}

	ticket := &MigrationTicket{
		AgentID:            newID,
		SourceContext:      sourceContextID,
		DestinationContext: destContextID,
		SerializedState:    state,
		AgentType:          agent.Type(),
		Options:            opts,
	}

	// Step 4/5: transmit + destination receives, reconstructs, restores,
	// rebinds subscriptions (InstallAgent), then onAfterMigration.
	installed, err := m.deliver(dctx, dest, ticket)
	if err != nil {
		_ = source.RollbackMigration(dctx, agentID)
		m.emitFailed(dctx, source, agentID, sourceContextID, destContextID, err)
		m.recordTransfer(dctx, opts.Mode, sourceContextID, false)
		return zero, amcperr.New(amcperr.KindMobility, component, "transfer", err)
	}

	if err := installed.OnAfterMigration(dctx, sourceContextID); err != nil {
		dest.RemoveAgent(dctx, newID)
		_ = source.RollbackMigration(dctx, agentID)
		m.emitFailed(dctx, source, agentID, sourceContextID, destContextID, err)
		m.recordTransfer(dctx, opts.Mode, sourceContextID, false)
		return zero, amcperr.New(amcperr.KindMobility, component, "transfer", err)
	}

	// Step 6: destination ACK. Dispatch/retract removes the source agent;
	// clone/replicate reactivates it.
	if keepSource {
		if err := source.ReactivateAfterClone(dctx, agentID); err != nil {
			m.logger.ErrorContext(dctx, "clone source reactivation failed", "agent", agentID.String(), "error", err)
		}
	} else {
		if err := source.FinalizeDeparture(dctx, agentID); err != nil {
			m.logger.ErrorContext(dctx, "dispatch source cleanup failed", "agent", agentID.String(), "error", err)
		}
	}

	if err := dest.ActivateAgent(dctx, newID); err != nil {
		m.recordTransfer(dctx, opts.Mode, sourceContextID, false)
		return zero, amcperr.New(amcperr.KindMobility, component, "transfer", err)
	}

	m.emitCompleted(dctx, dest, newID, sourceContextID, destContextID)
	m.recordTransfer(dctx, opts.Mode, sourceContextID, true)

	return newID, nil
}

func (m *Manager) recordTransfer(ctx context.Context, mode Mode, sourceContextID string, success bool) {
	if m.stats == nil {
		return
	}
	m.stats.RecordMobilityTransfer(ctx, string(mode), sourceContextID, success)
}

func (m *Manager) deliver(ctx context.Context, dest ContextHandle, ticket *MigrationTicket) (Agent, error) {
	timeout := ticket.Options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		agent Agent
		err   error
	}
	done := make(chan result, 1)
	go func() {
		agent, err := dest.InstallAgent(dctx, ticket.AgentType, ticket.AgentID, ticket.SerializedState)
		done <- result{agent, err}
	}()

	select {
	case r := <-done:
		return r.agent, r.err
	case <-dctx.Done():
		return nil, amcperr.New(amcperr.KindTimeout, component, "deliver", dctx.Err())
	}
}

func (m *Manager) emitCompleted(ctx context.Context, dest ContextHandle, agentID envelope.AgentID, source, destination string) {
	e, err := envelope.NewBuilder(destination, "system.mobility.completed").
		WithType("io.amcp.system.mobility.completed").
		WithMetadata("agentId", agentID.String()).
		WithMetadata("sourceContext", source).
		WithMetadata("destinationContext", destination).
		Build()
	if err != nil {
		return
	}
	_ = dest.Publish(ctx, e)
}

func (m *Manager) emitFailed(ctx context.Context, source ContextHandle, agentID envelope.AgentID, sourceCtx, destCtx string, cause error) {
	e, err := envelope.NewBuilder(sourceCtx, "system.mobility.failed").
		WithType("io.amcp.system.mobility.failed").
		WithMetadata("agentId", agentID.String()).
		WithMetadata("sourceContext", sourceCtx).
		WithMetadata("destinationContext", destCtx).
		WithMetadata("reason", cause.Error()).
		Build()
	if err != nil {
		return
	}
	_ = source.Publish(ctx, e)
}

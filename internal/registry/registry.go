// Package registry implements the registry agent (spec component C8): a
// per-context capability directory that tracks CapabilityRecords, ages
// them through a HEALTHY -> DEGRADED -> UNREACHABLE heartbeat-window state
// machine, and answers "find agents providing capability C" queries
// ranked by health, then latency, then recency.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/owulveryck/amcp/internal/envelope"
)

// Health is a CapabilityRecord's liveness classification.
type Health string

const (
	Healthy     Health = "HEALTHY"
	Degraded    Health = "DEGRADED"
	Unreachable Health = "UNREACHABLE"
)

// CapabilityRecord is one registered agent's advertised capabilities and
// liveness, per spec section 3.
type CapabilityRecord struct {
	AgentID       envelope.AgentID
	AgentType     string
	Capabilities  map[string]struct{}
	ContextID     string
	LastHeartbeat time.Time
	Health        Health
	Metadata      map[string]string

	// Latency is a rolling estimate (e.g. last observed task round-trip),
	// used as the registry's second-order ranking key after health.
	Latency time.Duration
}

// Registry is the in-memory capability directory for one context. It is
// authoritative only for that context — multi-context federation is out of
// scope for the core, per spec section 4.6.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*CapabilityRecord // keyed by AgentID.String()

	heartbeatWindow  time.Duration
	degradedAfter    time.Duration
	unreachableAfter time.Duration

	logger *slog.Logger
}

// Config bundles the heartbeat-window timings spec section 6 enumerates as
// registry.degraded_after / registry.unreachable_after.
type Config struct {
	HeartbeatWindow  time.Duration
	DegradedAfter    time.Duration
	UnreachableAfter time.Duration
}

// New constructs a Registry with the given aging thresholds.
func New(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		records:          make(map[string]*CapabilityRecord),
		heartbeatWindow:  cfg.HeartbeatWindow,
		degradedAfter:    cfg.DegradedAfter,
		unreachableAfter: cfg.UnreachableAfter,
		logger:           logger,
	}
}

// Register adds or replaces agentID's CapabilityRecord as HEALTHY.
func (r *Registry) Register(agentID envelope.AgentID, agentType, contextID string, capabilities []string, metadata map[string]string) {
	caps := make(map[string]struct{}, len(capabilities))
	for _, c := range capabilities {
		caps[c] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[agentID.String()] = &CapabilityRecord{
		AgentID:       agentID,
		AgentType:     agentType,
		Capabilities:  caps,
		ContextID:     contextID,
		LastHeartbeat: time.Now(),
		Health:        Healthy,
		Metadata:      metadata,
	}
	r.logger.Info("registry: agent registered", "agent", agentID.String(), "capabilities", capabilities)
}

// Heartbeat refreshes agentID's LastHeartbeat and, if it had aged into
// DEGRADED or UNREACHABLE, restores it to HEALTHY.
func (r *Registry) Heartbeat(agentID envelope.AgentID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[agentID.String()]
	if !ok {
		return false
	}
	rec.LastHeartbeat = time.Now()
	rec.Health = Healthy
	return true
}

// Deregister removes agentID from the directory entirely.
func (r *Registry) Deregister(agentID envelope.AgentID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, agentID.String())
}

// RecordLatency updates the rolling latency estimate used for ranking.
func (r *Registry) RecordLatency(agentID envelope.AgentID, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[agentID.String()]; ok {
		rec.Latency = latency
	}
}

// AgeAll walks every record and transitions health based on elapsed time
// since LastHeartbeat: HEALTHY -> DEGRADED after degradedAfter, DEGRADED ->
// UNREACHABLE after unreachableAfter, per spec section 4.6.
func (r *Registry) AgeAll(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		elapsed := now.Sub(rec.LastHeartbeat)
		switch {
		case elapsed >= r.unreachableAfter:
			rec.Health = Unreachable
		case elapsed >= r.degradedAfter:
			if rec.Health == Healthy {
				rec.Health = Degraded
			}
		}
	}
}

// RunAging blocks running AgeAll every heartbeatWindow until ctx is
// cancelled; intended to run in its own goroutine for the life of the
// registry agent.
func (r *Registry) RunAging(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatWindow)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.AgeAll(now)
		}
	}
}

// FindByCapability returns every record advertising capability, ranked
// health first (HEALTHY < DEGRADED < UNREACHABLE), then ascending latency,
// then most-recent heartbeat, per spec section 4.6.
func (r *Registry) FindByCapability(capability string) []CapabilityRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := make([]CapabilityRecord, 0)
	for _, rec := range r.records {
		if _, ok := rec.Capabilities[capability]; ok {
			matches = append(matches, *rec)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if healthRank(matches[i].Health) != healthRank(matches[j].Health) {
			return healthRank(matches[i].Health) < healthRank(matches[j].Health)
		}
		if matches[i].Latency != matches[j].Latency {
			return matches[i].Latency < matches[j].Latency
		}
		return matches[i].LastHeartbeat.After(matches[j].LastHeartbeat)
	})
	return matches
}

func healthRank(h Health) int {
	switch h {
	case Healthy:
		return 0
	case Degraded:
		return 1
	default:
		return 2
	}
}

// Snapshot returns every known record, for diagnostics/health endpoints.
func (r *Registry) Snapshot() []CapabilityRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CapabilityRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	return out
}

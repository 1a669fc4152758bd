// Package orchestratoragent is the cmd-style wiring for the orchestration
// agent: it assembles the LLM connector, planner, fallback manager, and
// correlation tracker internal/orchestrator.Orchestrator depends on, and
// hands back a ready-to-register agentctx.Agent. Grounded on the
// teacher's cmd/chat_orchestrator_agent/main.go, whose main() does the
// equivalent assembly for its single cortex agent before registering it
// with the hub client.
package orchestratoragent

import (
	"log/slog"
	"time"

	"github.com/owulveryck/amcp/internal/agentctx"
	"github.com/owulveryck/amcp/internal/bus"
	"github.com/owulveryck/amcp/internal/config"
	"github.com/owulveryck/amcp/internal/correlation"
	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/owulveryck/amcp/internal/fallback"
	"github.com/owulveryck/amcp/internal/llm"
	"github.com/owulveryck/amcp/internal/observability"
	core "github.com/owulveryck/amcp/internal/orchestrator"
	"github.com/owulveryck/amcp/internal/planner"
	"github.com/owulveryck/amcp/internal/registry"
)

// Deps bundles the pieces of the running context the orchestrator agent
// needs but doesn't own: the broker to publish/subscribe through and the
// capability directory to resolve specialists against.
type Deps struct {
	Broker   *bus.InMemoryBroker
	Registry *registry.Registry
	Trace    *observability.TraceManager
	Stats    *observability.MetricsManager
	Logger   *slog.Logger
}

// New assembles an LLM connector, planner, and fallback manager from cfg
// and returns the orchestrator agent ready for agentctx.RegisterAgent.
func New(id envelope.AgentID, cfg *config.AppConfig, deps Deps) (*core.Orchestrator, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fallbackMgr := fallback.NewManager(cfg.FallbackRulesPath, cfg.CircuitFailureThreshold, cfg.CircuitCooldown, logger, deps.Stats)

	llmConn, err := llm.New(llm.Config{
		BaseURL:         cfg.LLMBaseURL,
		DefaultTimeout:  cfg.LLMTimeout,
		MaxConcurrent:   cfg.LLMMaxConcurrent,
		MaxRetries:      cfg.LLMMaxRetries,
		CacheMemEntries: cfg.LLMCacheMemSize,
		CacheTTL:        cfg.LLMCacheTTL,
		CacheDiskPath:   cfg.LLMCachePath,
		PerformanceMode: cfg.PerformanceMode == "speed",
	}, fallbackMgr, logger, deps.Trace, deps.Stats)
	if err != nil {
		return nil, err
	}

	plan := planner.New(llmConn, fallbackMgr, nil, planner.Config{
		Model: cfg.LLMModel,
	}, logger)

	tracker := correlation.NewTracker(logger)
	pub := deps.Broker.CreatePublisher(id.String())

	return core.New(
		id,
		plan,
		deps.Registry,
		llmConn,
		fallbackMgr,
		tracker,
		pub,
		core.Config{
			Model:          cfg.LLMModel,
			TaskTimeout:    cfg.LLMTimeout,
			DefaultTimeout: 60 * time.Second,
		},
		deps.Trace,
		deps.Stats,
		logger,
	), nil
}

var _ agentctx.Agent = (*core.Orchestrator)(nil)

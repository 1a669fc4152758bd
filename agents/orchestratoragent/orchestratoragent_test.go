package orchestratoragent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/owulveryck/amcp/internal/agentctx"
	"github.com/owulveryck/amcp/internal/bus"
	"github.com/owulveryck/amcp/internal/config"
	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/owulveryck/amcp/internal/registry"
)

func TestNewAssemblesAnActivatableAgent(t *testing.T) {
	b := bus.NewInMemoryBroker()
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop(context.Background()) })

	reg := registry.New(registry.Config{
		HeartbeatWindow:  time.Hour,
		DegradedAfter:    time.Hour,
		UnreachableAfter: 2 * time.Hour,
	}, nil)

	cfg := &config.AppConfig{
		LLMBaseURL:       "http://localhost:11434",
		LLMModel:         "llama3.2",
		LLMTimeout:       time.Second,
		LLMMaxConcurrent: 2,
		LLMMaxRetries:    1,
		LLMCacheMemSize:  10,
		LLMCacheTTL:      time.Minute,
		LLMCachePath:     "", // memory-only cache, no disk side effects in tests
		PerformanceMode:  "quality",
	}

	id := envelope.NewAgentID("orchestrator", "amcp")
	orch, err := New(id, cfg, Deps{Broker: b, Registry: reg})
	require.NoError(t, err)
	require.NotNil(t, orch)

	var _ agentctx.Agent = orch

	ctx := agentctx.New("test", b, nil, nil, nil)
	require.NoError(t, ctx.RegisterAgent(context.Background(), orch))
	require.NoError(t, ctx.ActivateAgent(context.Background(), id))
}

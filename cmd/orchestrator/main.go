// Command orchestrator launches the orchestrator agent against its own
// in-memory bus and registry, and exposes a health endpoint. In the
// reference single-process deployment this runs the registry and
// orchestrator agents side by side (sharing one broker/registry); a
// multi-process deployment would instead dial the context's external A2A
// endpoint — out of scope for the in-memory reference core. Grounded on
// the teacher's agents/cortex/cmd/main.go, which wires its single cortex
// agent's dependencies before registering it with the hub client.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/owulveryck/amcp/agents/orchestratoragent"
	"github.com/owulveryck/amcp/agents/registryagent"
	"github.com/owulveryck/amcp/internal/agentctx"
	"github.com/owulveryck/amcp/internal/bus"
	"github.com/owulveryck/amcp/internal/config"
	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/owulveryck/amcp/internal/observability"
	"github.com/owulveryck/amcp/internal/registry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()

	obsConfig := observability.DefaultConfig(cfg.ServiceName)
	obs, err := observability.NewObservability(obsConfig)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer obs.Shutdown(context.Background())

	logger := obs.Logger
	if logger == nil {
		logger = slog.Default()
	}

	traceManager := observability.NewTraceManager(cfg.ServiceName)
	metricsManager, err := observability.NewMetricsManager(obs.Meter)
	if err != nil {
		log.Fatalf("failed to initialize metrics: %v", err)
	}

	broker := bus.NewInMemoryBroker(
		bus.WithLogger(logger),
		bus.WithTraceManager(traceManager),
		bus.WithMetricsManager(metricsManager),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down orchestrator")
		cancel()
	}()

	if err := broker.Start(ctx); err != nil {
		log.Fatalf("failed to start broker: %v", err)
	}
	defer broker.Stop(context.Background())

	agentCtx := agentctx.New("orchestrator", broker, logger, traceManager, metricsManager)
	agentCtx.SetMigrationTimeout(cfg.MobilityTimeout)

	reg := registry.New(registry.Config{
		HeartbeatWindow:  cfg.RegistryHeartbeatWindow,
		DegradedAfter:    cfg.RegistryDegradedAfter,
		UnreachableAfter: cfg.RegistryUnreachableAfter,
	}, logger)

	registryID := envelope.NewAgentID("registry", agentCtx.ContextID())
	regPub := broker.CreatePublisher(registryID.String())
	regAgent := registryagent.New(registryID, reg, regPub, logger)
	if err := agentCtx.RegisterAgent(ctx, regAgent); err != nil {
		log.Fatalf("failed to register registry agent: %v", err)
	}
	if err := agentCtx.ActivateAgent(ctx, registryID); err != nil {
		log.Fatalf("failed to activate registry agent: %v", err)
	}

	orchestratorID := envelope.NewAgentID("orchestrator", agentCtx.ContextID())
	orch, err := orchestratoragent.New(orchestratorID, cfg, orchestratoragent.Deps{
		Broker:   broker,
		Registry: reg,
		Trace:    traceManager,
		Stats:    metricsManager,
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("failed to assemble orchestrator agent: %v", err)
	}
	if err := agentCtx.RegisterAgent(ctx, orch); err != nil {
		log.Fatalf("failed to register orchestrator agent: %v", err)
	}
	if err := agentCtx.ActivateAgent(ctx, orchestratorID); err != nil {
		log.Fatalf("failed to activate orchestrator agent: %v", err)
	}

	healthServer := observability.NewHealthServer(cfg.GetHealthPort("orchestrator"), cfg.ServiceName, cfg.ServiceVersion)
	healthServer.AddChecker("orchestrator", observability.NewBasicHealthChecker("orchestrator", func(context.Context) error {
		return nil
	}))
	go func() {
		if err := healthServer.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("health server stopped", "error", err)
		}
	}()
	defer healthServer.Shutdown(context.Background())

	logger.Info("orchestrator agent active", "agentId", orchestratorID.String())

	<-ctx.Done()
}

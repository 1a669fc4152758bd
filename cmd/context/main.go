// Command context boots one AgentContext: an in-memory bus, the registry
// agent, an A2A HTTP listener for external callers, and the observability
// stack (tracing, metrics, health). Grounded on the teacher's
// broker/cmd/eventbus_server/main.go, which plays the same role — a
// standalone process other agents dial into — but over gRPC; here the
// transport is the in-process bus plus an HTTP A2A bridge instead, per
// this mesh's single-process reference deployment.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/owulveryck/amcp/agents/registryagent"
	"github.com/owulveryck/amcp/internal/a2a"
	"github.com/owulveryck/amcp/internal/agentctx"
	"github.com/owulveryck/amcp/internal/bus"
	"github.com/owulveryck/amcp/internal/config"
	"github.com/owulveryck/amcp/internal/correlation"
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
		logger.Info("shutting down context")
		cancel()
	}()

	if err := broker.Start(ctx); err != nil {
		log.Fatalf("failed to start broker: %v", err)
	}
	defer broker.Stop(context.Background())

	agentCtx := agentctx.New("default", broker, logger, traceManager, metricsManager)
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

	// The bridge's inbound side (mounted below) is this context's external
	// A2A boundary: a caller POSTs a Message, it gets republished onto the
	// bus as an a2a.message.<type> event. Its outbound side — forwarding
	// internal task.* traffic to a peer context's endpoint — is for
	// multi-context federation, out of scope for this single-process
	// reference deployment, so OutboundHandler is never subscribed here.
	tracker := correlation.NewTracker(logger)
	bridgeSender := envelope.NewAgentID("a2a-bridge", agentCtx.ContextID())
	bridgePub := broker.CreatePublisher(bridgeSender.String())
	bridge := a2a.NewBridge("", bridgeSender, bridgePub, tracker, 30*time.Second, logger)

	recordResponse := func(_ context.Context, e *envelope.Event) error {
		tracker.RecordResponse(e)
		return nil
	}
	if err := agentCtx.Subscribe(bridgeSender, "a2a.message.response", recordResponse); err != nil {
		log.Printf("warning: failed to subscribe a2a response tracker: %v", err)
	}
	if err := agentCtx.Subscribe(bridgeSender, "orchestration.response", recordResponse); err != nil {
		log.Printf("warning: failed to subscribe orchestration response tracker: %v", err)
	}

	mux := http.NewServeMux()
	bridge.Server().Routes(mux)

	healthServer := observability.NewHealthServer(cfg.GetHealthPort("broker"), cfg.ServiceName, cfg.ServiceVersion)
	healthServer.AddChecker("broker", observability.NewBasicHealthChecker("broker", func(context.Context) error {
		if !broker.IsRunning() {
			return errBrokerNotRunning
		}
		return nil
	}))
	go func() {
		if err := healthServer.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("health server stopped", "error", err)
		}
	}()
	defer healthServer.Shutdown(context.Background())

	httpServer := &http.Server{
		Addr:    ":" + cfg.BrokerPort,
		Handler: mux,
	}
	go func() {
		logger.Info("a2a listener starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("a2a listener stopped", "error", err)
		}
	}()

	logger.Info("context booted", "contextId", agentCtx.ContextID(), "instanceId", uuid.NewString())

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

var errBrokerNotRunning = errors.New("broker is not running")

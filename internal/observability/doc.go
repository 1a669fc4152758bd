// Package observability provides the mesh's tracing, metrics, structured
// logging, and health-check infrastructure.
//
// # Overview
//
// The observability package implements OpenTelemetry-based observability
// with:
//   - Distributed tracing (OTLP gRPC exporter)
//   - Metrics collection (Prometheus)
//   - Structured logging (log/slog)
//   - Health check endpoints
//   - Span helpers for bus publish/consume, mobility dispatch, and LLM calls
//   - Graceful shutdown with trace flushing
//
// This package is the foundation for observability across the mesh,
// providing consistent tracing, metrics, and logging for internal/bus,
// internal/agentctx, internal/mobility, and internal/llm.
//
// # Quick Start
//
// Initialize observability for a context:
//
//	config := observability.DefaultConfig("my_context")
//	obs, err := observability.NewObservability(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer obs.Shutdown(context.Background())
//
//	// Use the components
//	logger := obs.Logger
//	tracer := obs.Tracer
//	meter := obs.Meter
//
// This automatically sets up:
//   - OTLP trace exporter
//   - Prometheus metrics exporter
//   - Structured logger with trace context
//   - Proper resource attributes (service name, version, environment)
//
// # Architecture
//
// The package provides layered observability:
//
//	┌─────────────────────────────────────────────┐
//	│         Application Code                    │
//	│   (agentctx.Agent, mobility, llm)           │
//	├─────────────────────────────────────────────┤
//	│         TraceManager                        │
//	│   - Span creation & management              │
//	│   - Bus/mobility/LLM span helpers           │
//	│   - Context propagation                     │
//	├─────────────────────────────────────────────┤
//	│         MetricsManager                      │
//	│   - Counter metrics (events, errors)        │
//	│   - Histogram metrics (durations)           │
//	│   - Gauge-like metrics (goroutines, memory, │
//	│     circuit breaker state)                  │
//	├─────────────────────────────────────────────┤
//	│         Logger (slog)                       │
//	│   - Structured logging                      │
//	│   - Trace context injection                 │
//	│   - Configurable log levels                 │
//	├─────────────────────────────────────────────┤
//	│         OpenTelemetry SDK                   │
//	│   - OTLP trace exporter                     │
//	│   - Prometheus metrics exporter             │
//	│   - Resource detection                      │
//	└─────────────────────────────────────────────┘
//
// # Configuration
//
// **Config** specifies observability settings:
//
//	config := observability.Config{
//	    ServiceName:    "my_context",
//	    ServiceVersion: "1.0.0",
//	    JaegerEndpoint: "localhost:4317",    // OTLP gRPC endpoint
//	    PrometheusPort: "9090",
//	    Environment:    "production",
//	    LogLevel:       "INFO",              // DEBUG, INFO, WARN, ERROR
//	}
//
// **DefaultConfig** reads from environment:
//
//	config := observability.DefaultConfig("my_context")
//
// Environment variables:
//   - JAEGER_ENDPOINT: trace collector OTLP endpoint
//   - PROMETHEUS_PORT: port for Prometheus metrics
//   - ENVIRONMENT: deployment environment (dev, staging, prod)
//   - LOG_LEVEL: logging level (DEBUG, INFO, WARN, ERROR)
//
// # Distributed Tracing
//
// Use TraceManager for creating and managing spans:
//
//	traceManager := observability.NewTraceManager("my_context")
//
//	ctx, span := traceManager.StartSpan(ctx, "process_request")
//	defer span.End()
//
//	span.SetAttributes(
//	    attribute.String("agent_id", agentID.String()),
//	    attribute.Int("items_count", 5),
//	)
//
//	if err != nil {
//	    traceManager.RecordError(span, err)
//	} else {
//	    traceManager.SetSpanSuccess(span)
//	}
//
// ## Mesh-Specific Tracing
//
// TraceManager provides specialized methods for the bus, mobility, and LLM
// layers:
//
// **Bus publish/consume** (internal/bus):
//
//	ctx, span := traceManager.StartPublishSpan(ctx, destination, eventType)
//	defer span.End()
//
//	ctx, span := traceManager.StartConsumeSpan(ctx, source, eventType)
//	defer span.End()
//
// **Agent mobility dispatch** (internal/mobility):
//
//	ctx, span := traceManager.StartDispatchSpan(ctx, agentID.String(), destContextID, string(opts.Mode))
//	defer span.End()
//
// **LLM calls** (internal/llm):
//
//	ctx, span := traceManager.StartLLMSpan(ctx, req.Model)
//	defer span.End()
//
// **Task attributes**:
//
//	traceManager.AddTaskAttributes(span, taskID, taskType, parameters)
//	traceManager.AddTaskResult(span, status, result, errorMessage)
//
// ## Context Propagation
//
// Propagate trace context across the A2A HTTP boundary:
//
//	headers := make(map[string]string)
//	traceManager.InjectTraceContext(ctx, headers)
//
//	ctx = traceManager.ExtractTraceContext(ctx, headers)
//
// # Metrics Collection
//
// Use MetricsManager for recording metrics:
//
//	metricsManager, err := observability.NewMetricsManager(meter)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// ## Event Metrics
//
//	metricsManager.IncrementEventsProcessed(ctx, "task.echo.request", "registry", true)
//	metricsManager.IncrementEventErrors(ctx, "task.echo.request", "registry", "validation_error")
//	metricsManager.IncrementEventsPublished(ctx, "task.echo.response", "bus")
//
//	timer := metricsManager.StartTimer()
//	// ... do work ...
//	timer(ctx, "task_processing", "echo")
//
// ## System Metrics
//
//	metricsManager.UpdateSystemMetrics(ctx)
//
// This records:
//   - go_goroutines: current goroutine count
//   - go_memstats_alloc_bytes: allocated memory
//   - process_resident_memory_bytes: resident memory size
//
// ## Available Metrics
//
// **Event Metrics**:
//   - events_processed_total: counter with labels (event_type, source, success)
//   - event_processing_duration_seconds: histogram with labels (event_type, source)
//   - event_errors_total: counter with labels (event_type, source, error)
//   - events_published_total: counter with labels (event_type, destination)
//
// **System Metrics**:
//   - process_cpu_seconds_total: CPU time counter
//   - process_resident_memory_bytes: memory gauge
//   - go_goroutines: goroutine count gauge
//   - go_memstats_alloc_bytes: allocated memory gauge
//
// **Broker Metrics** (internal/bus):
//   - message_broker_publish_duration_seconds: publish duration histogram
//   - message_broker_consume_duration_seconds: consume duration histogram
//   - message_broker_connection_errors_total: connection error counter
//
// **Mobility Metrics** (internal/mobility):
//   - mobility_transfers_total: counter with labels (mode, source_context, success)
//
// **LLM Cache Metrics** (internal/llm):
//   - llm_cache_hits_total: counter with labels (model, hit)
//
// **Fallback Circuit Breaker Metrics** (internal/fallback):
//   - circuit_breaker_state: gauge-like up/down counter per service
//     (0=closed, 1=half_open, 2=open)
//
// All metrics are exposed on the Prometheus endpoint (default: :9090/metrics).
//
// # Structured Logging
//
// The package provides slog-based structured logging with trace context:
//
//	logger := obs.Logger
//
//	logger.InfoContext(ctx, "dispatching task",
//	    "task_id", taskID,
//	    "agent_id", agentID,
//	)
//
//	logger.ErrorContext(ctx, "task failed",
//	    "task_id", taskID,
//	    "error", err,
//	)
//
// ## Log Levels
//
// Configure via LogLevel in config:
//   - DEBUG: verbose logging + stdout output
//   - INFO: standard operation logging
//   - WARN: warning conditions
//   - ERROR: error conditions
//
// DEBUG mode enables dual output (observability handler + stdout).
//
// # Health Checks
//
// The package includes health check infrastructure (see healthcheck.go):
//
//	healthServer := observability.NewHealthServer(port, serviceName, version)
//
//	healthServer.AddChecker("self", observability.NewBasicHealthChecker("self", func(ctx context.Context) error {
//	    return nil
//	}))
//
//	// Start server (exposes /health, /ready, and /metrics endpoints)
//	healthServer.Start(ctx)
//
// # Complete Example
//
// Setting up observability for a context, per cmd/context/main.go:
//
//	func main() {
//	    config := observability.DefaultConfig("default")
//	    obs, err := observability.NewObservability(config)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer obs.Shutdown(context.Background())
//
//	    traceManager := observability.NewTraceManager(config.ServiceName)
//	    metricsManager, err := observability.NewMetricsManager(obs.Meter)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    healthServer := observability.NewHealthServer("8085", config.ServiceName, config.ServiceVersion)
//	    healthServer.AddChecker("self", observability.NewBasicHealthChecker("self", func(ctx context.Context) error {
//	        return nil
//	    }))
//	    go healthServer.Start(context.Background())
//
//	    broker := bus.NewInMemoryBroker(
//	        bus.WithLogger(obs.Logger),
//	        bus.WithTraceManager(traceManager),
//	        bus.WithMetricsManager(metricsManager),
//	    )
//	}
//
// # Graceful Shutdown
//
// Always shut down observability to flush traces and metrics:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//
//	if err := obs.Shutdown(ctx); err != nil {
//	    log.Printf("observability shutdown error: %v", err)
//	}
//
// Without shutdown, recent traces may be lost.
//
// # Thread Safety
//
// All components are safe for concurrent use: TraceManager, MetricsManager,
// and the slog Logger may all be shared across goroutines; Shutdown is
// idempotent-safe to call once.
//
// # Related Packages
//
//   - internal/bus: publish/consume spans and broker metrics
//   - internal/mobility: dispatch spans and transfer metrics
//   - internal/llm: LLM call spans and cache metrics
//   - internal/fallback: circuit breaker state metrics
//   - internal/config: provides configuration for observability settings
package observability

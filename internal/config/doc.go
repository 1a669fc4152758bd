// Package config provides centralized configuration management for the mesh
// through environment variables with sensible defaults.
//
// # Overview
//
// The config package loads application configuration from environment
// variables, providing a single source of truth for every context,
// covering:
//   - Broker connection settings
//   - Mobility timeout and feature toggle
//   - LLM connector and cache settings
//   - Registry health-window settings
//   - Fallback rules path and circuit breaker thresholds
//   - Observability stack endpoints (trace collector, Prometheus, Grafana)
//   - Health check ports for each service
//   - OpenTelemetry Collector configuration
//   - Service metadata (name, version, environment)
//
// All configuration values have sensible defaults, so services can run
// without any environment variable configuration.
//
// # Quick Start
//
// Load configuration in your service:
//
//	cfg := config.Load()
//	fmt.Printf("Broker: %s\n", cfg.GetBrokerAddress())
//	fmt.Printf("Jaeger: %s\n", cfg.JaegerEndpoint)
//	fmt.Printf("Environment: %s\n", cfg.Environment)
//
// # Configuration Fields
//
// **Broker Configuration**:
//   - AMCP_BROKER_ADDR: broker hostname (default: "localhost")
//   - AMCP_BROKER_PORT: broker port (default: "8443")
//   - AMCP_BROKER_TYPE: broker backend, currently only "memory" is wired
//
// **Mobility**:
//   - AMCP_MOBILITY_ENABLED: enables dispatch/clone/retract/replicate (default: true)
//   - AMCP_MOBILITY_TIMEOUT: per-transfer deadline (default: 30s)
//
// **LLM Connector**:
//   - AMCP_LLM_BASE_URL: Ollama-compatible endpoint (default: "http://localhost:11434")
//   - AMCP_LLM_MODEL: default model name (default: "llama3.2")
//   - AMCP_LLM_TIMEOUT: per-request timeout (default: 60s)
//   - AMCP_LLM_MAX_CONCURRENT: concurrency cap (default: 10)
//   - AMCP_LLM_MAX_RETRIES: retry budget (default: 3)
//   - AMCP_LLM_CACHE_TTL: cache entry freshness window (default: 24h)
//   - AMCP_LLM_CACHE_MEM_SIZE: memory tier LRU capacity (default: 500)
//   - AMCP_LLM_CACHE_PATH: bbolt disk tier path (default: "amcp-llm-cache.db")
//
// **Registry**:
//   - AMCP_REGISTRY_HEARTBEAT_WINDOW: liveness window (default: 10s)
//   - AMCP_REGISTRY_DEGRADED_AFTER: time to DEGRADED (default: 30s)
//   - AMCP_REGISTRY_UNREACHABLE_AFTER: time to UNREACHABLE (default: 90s)
//
// **Fallback**:
//   - AMCP_FALLBACK_RULES_PATH: YAML rule seed file (default: none, built-in defaults)
//   - AMCP_CIRCUIT_FAILURE_THRESHOLD: consecutive failures to trip OPEN (default: 5)
//   - AMCP_CIRCUIT_COOLDOWN: OPEN -> HALF_OPEN cooldown (default: 30s)
//
// **Performance mode**:
//   - AMCP_PERFORMANCE_MODE: "quality" or "speed" (default: "quality")
//
// **Observability Stack**:
//   - JAEGER_ENDPOINT: OTLP gRPC endpoint (default: "127.0.0.1:4317")
//   - PROMETHEUS_PORT: Prometheus port (default: "9090")
//   - GRAFANA_PORT: Grafana port (default: "3333")
//   - ALERTMANAGER_PORT: AlertManager port (default: "9093")
//
// **Health Check Ports**:
//   - AMCP_BROKER_HEALTH_PORT: broker context health endpoint (default: "8080")
//   - AMCP_ORCHESTRATOR_HEALTH_PORT: orchestrator health endpoint (default: "8081")
//   - AMCP_REGISTRY_HEALTH_PORT: registry health endpoint (default: "8082")
//
// **OpenTelemetry Collector**:
//   - OTLP_GRPC_PORT: OTLP gRPC receiver port (default: "4320")
//   - OTLP_HTTP_PORT: OTLP HTTP receiver port (default: "4321")
//
// **Service Metadata**:
//   - SERVICE_NAME: service name for observability (default: "amcp-service")
//   - SERVICE_VERSION: service version (default: "1.0.0")
//   - ENVIRONMENT: deployment environment (default: "development")
//   - LOG_LEVEL: logging level - DEBUG, INFO, WARN, ERROR (default: "INFO")
//
// # Usage Examples
//
// **Basic Configuration**:
//
//	cfg := config.Load()
//	brokerAddr := cfg.GetBrokerAddress()  // "localhost:8443"
//
// **Custom Environment**:
//
//	os.Setenv("AMCP_BROKER_ADDR", "broker.prod.example.com")
//	os.Setenv("AMCP_BROKER_PORT", "443")
//	os.Setenv("ENVIRONMENT", "production")
//	os.Setenv("LOG_LEVEL", "WARN")
//
//	cfg := config.Load()
//	// uses production values
//
// **Service-Specific Health Ports**:
//
//	cfg := config.Load()
//	brokerPort := cfg.GetHealthPort("broker")        // "8080"
//	orchestratorPort := cfg.GetHealthPort("orchestrator") // "8081"
//	registryPort := cfg.GetHealthPort("registry")    // "8082"
//
// **Observability URLs**:
//
//	cfg := config.Load()
//	jaegerUI := cfg.GetJaegerWebURL()     // "http://localhost:16686"
//	grafana := cfg.GetGrafanaURL()        // "http://localhost:3333"
//	prometheus := cfg.GetPrometheusURL()  // "http://localhost:9090"
//	alertMgr := cfg.GetAlertManagerURL()  // "http://localhost:9093"
//
// # Configuration Precedence
//
// Configuration is loaded in this order:
//  1. Environment variables (if set)
//  2. Default values (if not set)
//
// # Integration with Other Packages
//
// **observability.DefaultConfig()**:
//
//	func DefaultConfig(serviceName string) observability.Config {
//	    appConfig := config.Load()
//	    return observability.Config{
//	        ServiceName:    serviceName,
//	        ServiceVersion: appConfig.ServiceVersion,
//	        JaegerEndpoint: appConfig.JaegerEndpoint,
//	        // ...
//	    }
//	}
//
// **agents/orchestratoragent.New()**:
//
//	cfg := config.Load()
//	orch, err := orchestratoragent.New(orchestratorID, cfg, orchestratoragent.Deps{
//	    Broker:   broker,
//	    Registry: reg,
//	})
//
// # Best Practices
//
// **Use Load() once per process**:
//
//	// In cmd/context/main.go or cmd/orchestrator/main.go
//	cfg := config.Load()
//	// Pass cfg to components that need it
//
// **Don't mutate AppConfig**:
//
//	// AppConfig is a read-only snapshot of environment at startup
//	cfg := config.Load()
//	// Don't modify cfg fields after loading
//
// **Use helper methods**:
//
//	addr := cfg.GetBrokerAddress()  // prefer this
//	// over: addr := cfg.BrokerAddr + ":" + cfg.BrokerPort
//
// # Thread Safety
//
// AppConfig is safe to read from multiple goroutines once loaded. Do not
// modify AppConfig fields after calling Load().
package config

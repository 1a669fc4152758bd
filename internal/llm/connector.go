package llm

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/owulveryck/amcp/internal/amcperr"
	"github.com/owulveryck/amcp/internal/observability"
)

const downstreamService = "llm"

// FallbackManager is the narrow slice of internal/fallback.Manager the
// connector needs — kept as an interface so llm never imports fallback
// directly (the dependency runs the other way: whoever wires the
// orchestrator together owns both).
type FallbackManager interface {
	RepairJSON(raw string) (string, bool)
	EmergencyResponse(userQuery, failureReason string) string
	Learn(prompt, response string)
	Allow(service string) bool
	RecordSuccess(service string)
	RecordFailure(service string)
}

// Connector is the asynchronous LLM client described in spec section 4.9:
// cache-first, rate/concurrency-bounded, retried with exponential backoff,
// and backed by a fallback manager once retries are exhausted.
type Connector struct {
	http        *httpClient
	cache       *Cache
	sem         *semaphore.Weighted
	concurrency int64
	limiter     *rate.Limiter
	timeouts    *TimeoutTable
	fallback    FallbackManager
	maxRetries  int

	logger *slog.Logger
	trace  *observability.TraceManager
	stats  *observability.MetricsManager

	totalRequests int64
	cacheHits     int64
	failures      int64
	fallbacksUsed int64
	latencySumNs  int64
	latencyCount  int64
}

// Config bundles Connector construction parameters, mirroring the
// AMCP_LLM_* knobs in internal/config.
type Config struct {
	BaseURL         string
	DefaultTimeout  time.Duration
	TimeoutByModel  map[string]time.Duration
	MaxConcurrent   int
	MaxRetries      int
	CacheMemEntries int
	CacheTTL        time.Duration
	CacheDiskPath   string
	PerformanceMode bool
	RateLimitPerSec float64
}

// New constructs a Connector. fallback may be nil, in which case retry
// exhaustion surfaces LLMUnavailable directly instead of degrading.
func New(cfg Config, fallback FallbackManager, logger *slog.Logger, trace *observability.TraceManager, stats *observability.MetricsManager) (*Connector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	rps := cfg.RateLimitPerSec
	if rps <= 0 {
		rps = float64(maxConcurrent)
	}

	cache, err := NewCache(cfg.CacheMemEntries, cfg.CacheTTL, cfg.CacheDiskPath)
	if err != nil {
		return nil, err
	}

	return &Connector{
		http:        newHTTPClient(cfg.BaseURL, cfg.DefaultTimeout),
		cache:       cache,
		sem:         semaphore.NewWeighted(int64(maxConcurrent)),
		concurrency: int64(maxConcurrent),
		limiter:     rate.NewLimiter(rate.Limit(rps), maxConcurrent),
		timeouts:    NewTimeoutTable(cfg.DefaultTimeout, cfg.TimeoutByModel, cfg.PerformanceMode),
		fallback:    fallback,
		maxRetries:  maxRetries,
		logger:      logger,
		trace:       trace,
		stats:       stats,
	}, nil
}

// Generate runs the full pipeline from spec section 4.9: cache check,
// concurrency/rate admission, HTTP call with per-model timeout and
// exponential backoff, cache write-through, and fallback degradation.
func (c *Connector) Generate(ctx context.Context, req Request) (string, error) {
	atomic.AddInt64(&c.totalRequests, 1)
	start := time.Now()
	defer func() {
		atomic.AddInt64(&c.latencySumNs, int64(time.Since(start)))
		atomic.AddInt64(&c.latencyCount, 1)
	}()

	dctx := ctx
	endSpan := func() {}
	if c.trace != nil {
		sctx, span := c.trace.StartLLMSpan(ctx, req.Model)
		dctx = sctx
		endSpan = func() { span.End() }
	}
	defer endSpan()

	key := Key(req.Model, req.Prompt, paramsOf(req))
	if resp, ok := c.cache.Get(key); ok {
		atomic.AddInt64(&c.cacheHits, 1)
		if c.stats != nil {
			c.stats.RecordLLMCacheLookup(dctx, req.Model, true)
		}
		return resp, nil
	}
	if c.stats != nil {
		c.stats.RecordLLMCacheLookup(dctx, req.Model, false)
	}

	if c.fallback != nil && !c.fallback.Allow(downstreamService) {
		return c.degrade(req, errCircuitOpen)
	}

	if err := c.limiter.Wait(dctx); err != nil {
		return c.degrade(req, err)
	}
	if err := c.sem.Acquire(dctx, 1); err != nil {
		return c.degrade(req, err)
	}
	defer c.sem.Release(1)

	timeout := c.timeouts.Resolve(req.Model)
	resp, err := c.generateWithRetry(dctx, req, timeout)
	if err != nil {
		atomic.AddInt64(&c.failures, 1)
		if c.fallback != nil {
			c.fallback.RecordFailure(downstreamService)
		}
		return c.degrade(req, err)
	}

	if c.fallback != nil {
		c.fallback.RecordSuccess(downstreamService)
		c.fallback.Learn(req.Prompt, resp)
	}
	c.cache.Put(key, resp)
	return resp, nil
}

// generateWithRetry retries a failed call with exponential backoff (roughly
// 2^attempt seconds, capped at 30s) up to maxRetries, per spec section 4.9
// step 5. It gives up immediately if ctx is cancelled mid-wait.
func (c *Connector) generateWithRetry(ctx context.Context, req Request, timeout time.Duration) (string, error) {
	var attempt int
	var resp string

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = time.Second
	eb.Multiplier = 2
	eb.MaxInterval = 30 * time.Second
	eb.RandomizationFactor = 0

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		out, err := c.http.generate(callCtx, req)
		if err != nil {
			attempt++
			c.logger.WarnContext(ctx, "llm request failed, will retry", "attempt", attempt, "model", req.Model, "error", err)
			return err
		}
		resp = out
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return resp, nil
}

// degrade asks the fallback manager for a rule-based response once retries
// (or the circuit breaker) have ruled out a live call, per spec section
// 4.9 step 5. With no fallback manager configured it returns
// LLMUnavailable directly.
func (c *Connector) degrade(req Request, cause error) (string, error) {
	if c.fallback == nil {
		return "", amcperr.New(amcperr.KindUnavailable, component, "Generate", &llmUnavailableError{cause: cause})
	}
	atomic.AddInt64(&c.fallbacksUsed, 1)
	resp := c.fallback.EmergencyResponse(req.Prompt, errString(cause))
	return resp, nil
}

// Stats returns a snapshot of the connector's running statistics, per spec
// section 4.9.
func (c *Connector) Stats() Stats {
	count := atomic.LoadInt64(&c.latencyCount)
	var avg time.Duration
	if count > 0 {
		avg = time.Duration(atomic.LoadInt64(&c.latencySumNs) / count)
	}
	return Stats{
		TotalRequests: atomic.LoadInt64(&c.totalRequests),
		CacheHits:     atomic.LoadInt64(&c.cacheHits),
		Failures:      atomic.LoadInt64(&c.failures),
		FallbacksUsed: atomic.LoadInt64(&c.fallbacksUsed),
		AvgLatency:    avg,
	}
}

// Shutdown drains in-flight requests by waiting to acquire the full
// concurrency weight back (meaning nothing is still running) or timing
// out, then closes the cache's disk handle.
func (c *Connector) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = c.sem.Acquire(ctx, c.concurrency)
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return c.cache.Close()
}

func paramsOf(req Request) map[string]interface{} {
	params := make(map[string]interface{})
	if req.Temperature != nil {
		params["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		params["max_tokens"] = *req.MaxTokens
	}
	if req.TopP != nil {
		params["top_p"] = *req.TopP
	}
	return params
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Package orchestrator implements the orchestration loop (spec section
// 4.11): plan -> registry resolve -> fan-out -> correlation wait ->
// synthesize. Grounded on the teacher's agents/cortex.go
// HandleMessage/handleChatRequest/handleTaskResult/executeActions shape,
// generalized from a single "Decide" call per message into a full TaskPlan
// DAG scheduled across possibly many specialist responses.
package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/owulveryck/amcp/internal/agentctx"
	"github.com/owulveryck/amcp/internal/amcperr"
	"github.com/owulveryck/amcp/internal/bus"
	"github.com/owulveryck/amcp/internal/correlation"
	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/owulveryck/amcp/internal/llm"
	"github.com/owulveryck/amcp/internal/observability"
	"github.com/owulveryck/amcp/internal/planner"
	"github.com/owulveryck/amcp/internal/registry"
)

const component = "orchestrator"

const (
	requestTopic  = "orchestration.request"
	responseTopic = "orchestration.response"
	taskPattern   = "task.*.response"
)

// Decomposer is the narrow slice of planner.Planner the orchestrator
// needs.
type Decomposer interface {
	Decompose(ctx context.Context, userQuery string, knownCapabilities map[string]struct{}) (*planner.TaskPlan, error)
}

// CapabilityResolver is the narrow slice of registry.Registry the
// orchestrator needs to turn a capability tag into a candidate agent.
type CapabilityResolver interface {
	FindByCapability(capability string) []registry.CapabilityRecord
	Snapshot() []registry.CapabilityRecord
}

// Generator is the narrow slice of llm.Connector the orchestrator needs
// for the synthesis step.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

// Summarizer is the narrow slice of internal/fallback.Manager the
// orchestrator needs when the LLM is unavailable at synthesis time.
type Summarizer interface {
	SummarizeResults(userQuery string, results map[string]string) string
}

// Config bundles orchestrator tuning knobs.
type Config struct {
	Model          string
	TaskTimeout    time.Duration
	DefaultTimeout time.Duration
}

// Orchestrator drives the full orchestration loop as an AgentContext
// agent: it subscribes to orchestration requests and task responses, and
// publishes task requests and the final orchestration response.
type Orchestrator struct {
	agentctx.BaseAgent

	planner    Decomposer
	registry   CapabilityResolver
	llmClient  Generator
	summarizer Summarizer
	tracker    *correlation.Tracker
	pub        *bus.Publisher
	trace      *observability.TraceManager
	stats      *observability.MetricsManager
	states     *StateStore
	cfg        Config
	logger     *slog.Logger
}

// New constructs an Orchestrator bound to id, publishing through pub.
func New(
	id envelope.AgentID,
	planner Decomposer,
	resolver CapabilityResolver,
	llmClient Generator,
	summarizer Summarizer,
	tracker *correlation.Tracker,
	pub *bus.Publisher,
	cfg Config,
	trace *observability.TraceManager,
	stats *observability.MetricsManager,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		BaseAgent:  agentctx.NewBaseAgent(id, "orchestrator", []string{requestTopic, taskPattern}),
		planner:    planner,
		registry:   resolver,
		llmClient:  llmClient,
		summarizer: summarizer,
		tracker:    tracker,
		pub:        pub,
		trace:      trace,
		stats:      stats,
		states:     newStateStore(),
		cfg:        cfg,
		logger:     logger,
	}
}

type requestPayload struct {
	UserQuery string `json:"userQuery"`
}

type taskRequestPayload struct {
	TaskID string                 `json:"taskId"`
	Params map[string]interface{} `json:"params"`
}

type taskResponsePayload struct {
	TaskID string                 `json:"taskId"`
	Result map[string]interface{} `json:"result"`
	Error  string                 `json:"error,omitempty"`
}

type responsePayload struct {
	RequestID string   `json:"requestId"`
	Response  string   `json:"response"`
	Degraded  bool     `json:"degraded"`
	TaskIDs   []string `json:"taskIds"`
}

// HandleEvent routes an inbound event to request handling or task-response
// handling by topic. Both branches suspend on I/O (LLM calls, correlation
// waits), so they run detached from the per-agent serialized dispatch
// goroutine to avoid head-of-line blocking other inbound events — the
// same asynchronous-continuation shape as the teacher's Cortex, which
// resumes processing on the next independently delivered message rather
// than blocking HandleMessage until every task result arrives.
func (o *Orchestrator) HandleEvent(ctx context.Context, e *envelope.Event) error {
	switch {
	case e.Topic == requestTopic:
		detached := context.WithoutCancel(ctx)
		go o.handleRequest(detached, e)
		return nil
	case matchesTaskResponse(e.Topic):
		o.tracker.RecordResponse(e)
		return nil
	default:
		return nil
	}
}

func matchesTaskResponse(topic string) bool {
	// task.<capability>.response
	const prefix, suffix = "task.", ".response"
	return len(topic) > len(prefix)+len(suffix) &&
		topic[:len(prefix)] == prefix &&
		topic[len(topic)-len(suffix):] == suffix
}

func (o *Orchestrator) handleRequest(ctx context.Context, e *envelope.Event) {
	endSpan := func() {}
	if o.trace != nil {
		sctx, span := o.trace.StartSpan(ctx, "orchestrator.request")
		ctx = sctx
		endSpan = func() { span.End() }
	}
	defer endSpan()

	requestID := e.CorrelationID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	var p requestPayload
	if err := json.Unmarshal(e.Data, &p); err != nil || p.UserQuery == "" {
		o.logger.ErrorContext(ctx, "orchestrator: malformed request", "error", errMissingUserQuery())
		return
	}

	known := o.knownCapabilities()
	plan, err := o.planner.Decompose(ctx, p.UserQuery, known)
	if err != nil {
		o.logger.ErrorContext(ctx, "orchestrator: planning failed", "error", err)
		return
	}

	state := newRequestState(requestID, p.UserQuery, plan)
	o.states.put(state)

	o.dispatchReady(ctx, requestID)
}

// dispatchReady publishes task requests for every currently-runnable task
// (dependencies satisfied, not yet dispatched) and spawns a waiter
// goroutine per task, per spec section 4.11 step 5.
func (o *Orchestrator) dispatchReady(ctx context.Context, requestID string) {
	state, ok := o.states.get(requestID)
	if !ok {
		return
	}

	state.mu.Lock()
	failed := state.failed
	var ready []planner.TaskItem
	if !failed {
		ready = readyTasks(state.Plan, state.Results, state.Dispatched)
		for _, t := range ready {
			state.Dispatched[t.TaskID] = ""
		}
	}
	state.mu.Unlock()

	// Once fail-fast has tripped, no new tasks are dispatched, but
	// already-dispatched branches still need to drain into maybeSynthesize
	// as their (cancelled) results arrive.
	if failed {
		o.maybeSynthesize(ctx, requestID)
		return
	}

	for _, task := range ready {
		task := task
		corrID := requestID + "/" + task.TaskID
		agentID, err := o.resolveAgent(task)
		if err != nil {
			o.recordResult(ctx, requestID, TaskResult{TaskID: task.TaskID, Err: err.Error()})
			continue
		}

		ch, err := o.tracker.Register(corrID, o.cfg.TaskTimeout)
		if err != nil {
			o.recordResult(ctx, requestID, TaskResult{TaskID: task.TaskID, Err: err.Error()})
			continue
		}
		if err := o.publishTaskRequest(ctx, task, agentID, corrID); err != nil {
			o.tracker.Cancel(corrID)
			o.recordResult(ctx, requestID, TaskResult{TaskID: task.TaskID, Err: err.Error()})
			continue
		}

		state.mu.Lock()
		state.Dispatched[task.TaskID] = corrID
		state.mu.Unlock()

		go o.awaitTask(ctx, requestID, task.TaskID, ch)
	}

	o.maybeSynthesize(ctx, requestID)
}

func (o *Orchestrator) resolveAgent(task planner.TaskItem) (envelope.AgentID, error) {
	candidates := o.registry.FindByCapability(task.Capability)
	if len(candidates) == 0 {
		return envelope.AgentID{}, errNoCapableAgent(task.Capability)
	}
	return candidates[0].AgentID, nil
}

func (o *Orchestrator) publishTaskRequest(ctx context.Context, task planner.TaskItem, agentID envelope.AgentID, correlationID string) error {
	data, err := json.Marshal(taskRequestPayload{TaskID: task.TaskID, Params: task.Params})
	if err != nil {
		return amcperr.New(amcperr.KindInternal, component, "publishTaskRequest", err)
	}

	topic := "task." + task.Capability + ".request"
	e, err := envelope.NewBuilder("orchestrator", topic).
		WithType("io.amcp.task.request").
		WithData(data).
		WithCorrelationID(correlationID).
		WithMetadata("targetAgent", agentID.String()).
		Build()
	if err != nil {
		return err
	}
	return o.pub.Publish(ctx, e)
}

func (o *Orchestrator) awaitTask(ctx context.Context, requestID, taskID string, ch <-chan *envelope.Event) {
	e, err := correlation.Wait(ctx, ch)
	if err != nil {
		o.recordResult(ctx, requestID, TaskResult{TaskID: taskID, Err: err.Error()})
		return
	}

	var resp taskResponsePayload
	if err := json.Unmarshal(e.Data, &resp); err != nil {
		o.recordResult(ctx, requestID, TaskResult{TaskID: taskID, Err: err.Error()})
		return
	}
	if resp.Error != "" {
		o.recordResult(ctx, requestID, TaskResult{TaskID: taskID, Err: resp.Error})
		return
	}
	o.recordResult(ctx, requestID, TaskResult{TaskID: taskID, Payload: resp.Result})
}

func (o *Orchestrator) recordResult(ctx context.Context, requestID string, result TaskResult) {
	var shouldFailFast bool
	o.states.withLock(requestID, func(state *RequestState) {
		state.Results[result.TaskID] = result
		if result.Err != "" && state.Plan.OnError == planner.OnErrorFailFast {
			state.failed = true
			shouldFailFast = true
		}
	})

	if shouldFailFast {
		o.cancelOutstanding(requestID)
	}
	o.dispatchReady(ctx, requestID)
}

func (o *Orchestrator) cancelOutstanding(requestID string) {
	state, ok := o.states.get(requestID)
	if !ok {
		return
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	for taskID, corrID := range state.Dispatched {
		if _, done := state.Results[taskID]; done || corrID == "" {
			continue
		}
		o.tracker.Cancel(corrID)
	}
}

// maybeSynthesize runs the LLM synthesis step once every task has a
// terminal result, emitting the final orchestration.response event (spec
// section 4.11 steps 6-7). It is safe to call repeatedly; only the first
// caller to observe completion actually synthesizes.
func (o *Orchestrator) maybeSynthesize(ctx context.Context, requestID string) {
	state, ok := o.states.get(requestID)
	if !ok {
		return
	}

	var shouldRun bool
	state.mu.Lock()
	done := state.failed || allTerminal(state.Plan, state.Results)
	if done && !state.synthesized {
		state.synthesized = true
		shouldRun = true
	}
	state.mu.Unlock()
	if !shouldRun {
		return
	}

	o.synthesize(ctx, state)
	o.states.delete(requestID)
}

func (o *Orchestrator) synthesize(ctx context.Context, state *RequestState) {
	state.mu.Lock()
	results := make(map[string]TaskResult, len(state.Results))
	for k, v := range state.Results {
		results[k] = v
	}
	degraded := state.Plan.Degraded
	corrIDs := make([]string, 0, len(state.Dispatched))
	for _, cid := range state.Dispatched {
		if cid != "" {
			corrIDs = append(corrIDs, cid)
		}
	}
	state.mu.Unlock()
	sort.Strings(corrIDs)

	rendered := make(map[string]string, len(results))
	for id, r := range results {
		if r.Err != "" {
			rendered[id] = "error: " + r.Err
			continue
		}
		data, _ := json.Marshal(r.Payload)
		rendered[id] = string(data)
	}

	response, err := o.llmClient.Generate(ctx, llm.Request{Model: o.cfg.Model, Prompt: synthesisPrompt(state.UserQuery, rendered)})
	if err != nil {
		o.logger.WarnContext(ctx, "orchestrator: synthesis llm call failed, using structured summary", "error", err)
		response = o.summarizer.SummarizeResults(state.UserQuery, rendered)
		degraded = true
	}

	o.emitResponse(ctx, state.RequestID, response, degraded, corrIDs)
}

func synthesisPrompt(userQuery string, results map[string]string) string {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	prompt := "Synthesize a single, user-friendly answer to the request below from the" +
		" raw task results.\n\nRequest: " + userQuery + "\n\nTask results:\n"
	for _, id := range ids {
		prompt += "- " + id + ": " + results[id] + "\n"
	}
	return prompt
}

func (o *Orchestrator) emitResponse(ctx context.Context, requestID, response string, degraded bool, correlationIDs []string) {
	data, err := json.Marshal(responsePayload{RequestID: requestID, Response: response, Degraded: degraded, TaskIDs: correlationIDs})
	if err != nil {
		o.logger.ErrorContext(ctx, "orchestrator: failed to marshal response", "error", err)
		return
	}

	e, err := envelope.NewBuilder("orchestrator", responseTopic).
		WithType("io.amcp.orchestration.response").
		WithData(data).
		WithCorrelationID(requestID).
		Build()
	if err != nil {
		o.logger.ErrorContext(ctx, "orchestrator: failed to build response event", "error", err)
		return
	}
	if err := o.pub.Publish(ctx, e); err != nil {
		o.logger.ErrorContext(ctx, "orchestrator: failed to publish response", "error", err)
	}
}

func (o *Orchestrator) knownCapabilities() map[string]struct{} {
	records := o.registry.Snapshot()
	known := make(map[string]struct{}, len(records))
	for _, r := range records {
		for capability := range r.Capabilities {
			known[capability] = struct{}{}
		}
	}
	return known
}


package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owulveryck/amcp/internal/bus"
	"github.com/owulveryck/amcp/internal/correlation"
	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/owulveryck/amcp/internal/llm"
	"github.com/owulveryck/amcp/internal/planner"
	"github.com/owulveryck/amcp/internal/registry"
)

type fakeDecomposer struct {
	plan *planner.TaskPlan
	err  error
}

func (f *fakeDecomposer) Decompose(_ context.Context, _ string, _ map[string]struct{}) (*planner.TaskPlan, error) {
	return f.plan, f.err
}

type fakeResolver struct {
	agents map[string]envelope.AgentID
}

func (f *fakeResolver) FindByCapability(capability string) []registry.CapabilityRecord {
	id, ok := f.agents[capability]
	if !ok {
		return nil
	}
	return []registry.CapabilityRecord{{AgentID: id, Capabilities: map[string]struct{}{capability: {}}}}
}

func (f *fakeResolver) Snapshot() []registry.CapabilityRecord {
	out := make([]registry.CapabilityRecord, 0, len(f.agents))
	for capability, id := range f.agents {
		out = append(out, registry.CapabilityRecord{AgentID: id, Capabilities: map[string]struct{}{capability: {}}})
	}
	return out
}

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) Generate(_ context.Context, _ llm.Request) (string, error) {
	return f.response, f.err
}

type fakeSummarizer struct {
	summary string
}

func (f *fakeSummarizer) SummarizeResults(_ string, _ map[string]string) string {
	return f.summary
}

// specialist subscribes to task.<capability>.request and immediately
// echoes back a canned result or error on the matching .response topic,
// standing in for a real specialist agent during orchestrator tests.
func specialist(t *testing.T, b *bus.Publisher, sub *bus.Subscriber, capability string, result map[string]interface{}, taskErr string, fire chan<- struct{}) {
	t.Helper()
	err := sub.Subscribe("task."+capability+".request", func(ctx context.Context, e *envelope.Event) error {
		data, marshalErr := json.Marshal(taskResponsePayload{Result: result, Error: taskErr})
		require.NoError(t, marshalErr)
		resp, buildErr := envelope.NewBuilder("specialist-"+capability, "task."+capability+".response").
			WithType("io.amcp.task.response").
			WithData(data).
			WithCorrelationID(e.CorrelationID).
			Build()
		require.NoError(t, buildErr)
		publishErr := b.Publish(ctx, resp)
		if fire != nil {
			fire <- struct{}{}
		}
		return publishErr
	})
	require.NoError(t, err)
}

func startBroker(t *testing.T) *bus.InMemoryBroker {
	t.Helper()
	b := bus.NewInMemoryBroker()
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop(context.Background()) })
	return b
}

func awaitResponse(t *testing.T, ch <-chan *envelope.Event) responsePayload {
	t.Helper()
	select {
	case e := <-ch:
		var p responsePayload
		require.NoError(t, json.Unmarshal(e.Data, &p))
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for orchestration.response")
		return responsePayload{}
	}
}

func subscribeResponses(t *testing.T, sub *bus.Subscriber) <-chan *envelope.Event {
	t.Helper()
	ch := make(chan *envelope.Event, 4)
	require.NoError(t, sub.Subscribe(responseTopic, func(_ context.Context, e *envelope.Event) error {
		ch <- e
		return nil
	}))
	return ch
}

func TestOrchestratorParallelTasksSynthesizeTogether(t *testing.T) {
	b := startBroker(t)
	ctx := context.Background()

	plan := &planner.TaskPlan{Tasks: []planner.TaskItem{
		{TaskID: "t1", Capability: "weather"},
		{TaskID: "t2", Capability: "weather"},
	}}
	resolver := &fakeResolver{agents: map[string]envelope.AgentID{
		"weather": envelope.NewAgentID("weather-agent", "default"),
	}}
	generator := &fakeGenerator{response: "It is sunny in Paris and cloudy in Rome."}
	tracker := correlation.NewTracker(nil)

	orch := New(envelope.NewAgentID("orchestrator", "default"), &fakeDecomposer{plan: plan}, resolver, generator, &fakeSummarizer{}, tracker, b.CreatePublisher("orchestrator"), Config{TaskTimeout: time.Second}, nil, nil, nil)

	orchSub := b.CreateSubscriber("orchestrator")
	require.NoError(t, orchSub.Subscribe(requestTopic, orch.HandleEvent))
	require.NoError(t, orchSub.Subscribe(taskPattern, orch.HandleEvent))

	specialistSub := b.CreateSubscriber("weather-specialist")
	specialist(t, b.CreatePublisher("weather-specialist"), specialistSub, "weather", map[string]interface{}{"forecast": "sunny"}, "", nil)

	responderSub := b.CreateSubscriber("test-responder")
	responses := subscribeResponses(t, responderSub)

	data, err := json.Marshal(requestPayload{UserQuery: "weather in Paris and Rome"})
	require.NoError(t, err)
	req, err := envelope.NewBuilder("test", requestTopic).WithType("io.amcp.orchestration.request").WithData(data).WithCorrelationID("req-1").Build()
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, req))

	resp := awaitResponse(t, responses)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.False(t, resp.Degraded)
	assert.Equal(t, generator.response, resp.Response)
	assert.Len(t, resp.TaskIDs, 2)
}

func TestOrchestratorLLMFailureFallsBackToSummary(t *testing.T) {
	b := startBroker(t)
	ctx := context.Background()

	plan := &planner.TaskPlan{Tasks: []planner.TaskItem{{TaskID: "t1", Capability: "weather"}}}
	resolver := &fakeResolver{agents: map[string]envelope.AgentID{"weather": envelope.NewAgentID("weather-agent", "default")}}
	generator := &fakeGenerator{err: assert.AnError}
	summarizer := &fakeSummarizer{summary: "Results for weather in Paris (assistant backend unavailable)"}
	tracker := correlation.NewTracker(nil)

	orch := New(envelope.NewAgentID("orchestrator", "default"), &fakeDecomposer{plan: plan}, resolver, generator, summarizer, tracker, b.CreatePublisher("orchestrator"), Config{TaskTimeout: time.Second}, nil, nil, nil)

	orchSub := b.CreateSubscriber("orchestrator")
	require.NoError(t, orchSub.Subscribe(requestTopic, orch.HandleEvent))
	require.NoError(t, orchSub.Subscribe(taskPattern, orch.HandleEvent))

	specialistSub := b.CreateSubscriber("weather-specialist")
	specialist(t, b.CreatePublisher("weather-specialist"), specialistSub, "weather", map[string]interface{}{"forecast": "rain"}, "", nil)

	responderSub := b.CreateSubscriber("test-responder")
	responses := subscribeResponses(t, responderSub)

	data, err := json.Marshal(requestPayload{UserQuery: "weather in Paris"})
	require.NoError(t, err)
	req, err := envelope.NewBuilder("test", requestTopic).WithType("io.amcp.orchestration.request").WithData(data).WithCorrelationID("req-2").Build()
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, req))

	resp := awaitResponse(t, responses)
	assert.True(t, resp.Degraded)
	assert.Equal(t, summarizer.summary, resp.Response)
}

func TestOrchestratorFailFastCancelsSiblingBranch(t *testing.T) {
	b := startBroker(t)
	ctx := context.Background()

	plan := &planner.TaskPlan{
		OnError: planner.OnErrorFailFast,
		Tasks: []planner.TaskItem{
			{TaskID: "t1", Capability: "flaky"},
			{TaskID: "t2", Capability: "silent"},
		},
	}
	resolver := &fakeResolver{agents: map[string]envelope.AgentID{
		"flaky":  envelope.NewAgentID("flaky-agent", "default"),
		"silent": envelope.NewAgentID("silent-agent", "default"),
	}}
	generator := &fakeGenerator{response: "partial result acknowledged"}
	tracker := correlation.NewTracker(nil)

	orch := New(envelope.NewAgentID("orchestrator", "default"), &fakeDecomposer{plan: plan}, resolver, generator, &fakeSummarizer{}, tracker, b.CreatePublisher("orchestrator"), Config{TaskTimeout: 5 * time.Second}, nil, nil, nil)

	orchSub := b.CreateSubscriber("orchestrator")
	require.NoError(t, orchSub.Subscribe(requestTopic, orch.HandleEvent))
	require.NoError(t, orchSub.Subscribe(taskPattern, orch.HandleEvent))

	flakySub := b.CreateSubscriber("flaky-specialist")
	specialist(t, b.CreatePublisher("flaky-specialist"), flakySub, "flaky", nil, "boom", nil)

	// "silent" capability has no specialist registered to respond at all;
	// only the fail-fast cancellation lets synthesis proceed without it.

	responderSub := b.CreateSubscriber("test-responder")
	responses := subscribeResponses(t, responderSub)

	data, err := json.Marshal(requestPayload{UserQuery: "do two things, one will fail"})
	require.NoError(t, err)
	req, err := envelope.NewBuilder("test", requestTopic).WithType("io.amcp.orchestration.request").WithData(data).WithCorrelationID("req-3").Build()
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, req))

	resp := awaitResponse(t, responses)
	assert.Equal(t, "req-3", resp.RequestID)
}

func TestOrchestratorDependencyGatesDispatch(t *testing.T) {
	b := startBroker(t)
	ctx := context.Background()

	plan := &planner.TaskPlan{Tasks: []planner.TaskItem{
		{TaskID: "t1", Capability: "search"},
		{TaskID: "t2", Capability: "summarize", Dependencies: []string{"t1"}},
	}}
	resolver := &fakeResolver{agents: map[string]envelope.AgentID{
		"search":    envelope.NewAgentID("search-agent", "default"),
		"summarize": envelope.NewAgentID("summarize-agent", "default"),
	}}
	generator := &fakeGenerator{response: "final synthesized answer"}
	tracker := correlation.NewTracker(nil)

	orch := New(envelope.NewAgentID("orchestrator", "default"), &fakeDecomposer{plan: plan}, resolver, generator, &fakeSummarizer{}, tracker, b.CreatePublisher("orchestrator"), Config{TaskTimeout: time.Second}, nil, nil, nil)

	orchSub := b.CreateSubscriber("orchestrator")
	require.NoError(t, orchSub.Subscribe(requestTopic, orch.HandleEvent))
	require.NoError(t, orchSub.Subscribe(taskPattern, orch.HandleEvent))

	searchFired := make(chan struct{}, 1)
	summarizeFired := make(chan struct{}, 1)
	searchSub := b.CreateSubscriber("search-specialist")
	specialist(t, b.CreatePublisher("search-specialist"), searchSub, "search", map[string]interface{}{"hits": 3}, "", searchFired)
	summarizeSub := b.CreateSubscriber("summarize-specialist")
	specialist(t, b.CreatePublisher("summarize-specialist"), summarizeSub, "summarize", map[string]interface{}{"summary": "ok"}, "", summarizeFired)

	responderSub := b.CreateSubscriber("test-responder")
	responses := subscribeResponses(t, responderSub)

	data, err := json.Marshal(requestPayload{UserQuery: "search then summarize"})
	require.NoError(t, err)
	req, err := envelope.NewBuilder("test", requestTopic).WithType("io.amcp.orchestration.request").WithData(data).WithCorrelationID("req-4").Build()
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, req))

	select {
	case <-searchFired:
	case <-time.After(2 * time.Second):
		t.Fatal("search specialist never received its task request")
	}

	resp := awaitResponse(t, responses)
	assert.Equal(t, generator.response, resp.Response)

	select {
	case <-summarizeFired:
	case <-time.After(time.Second):
		t.Fatal("summarize specialist never received its dependent task request")
	}
}

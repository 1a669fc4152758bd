package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owulveryck/amcp/internal/llm"
)

type fakeGenerator struct {
	response string
	err      error
	calls    int
}

func (f *fakeGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	f.calls++
	return f.response, f.err
}

type fakeRepairer struct {
	repaired string
	ok       bool
}

func (f *fakeRepairer) RepairJSON(raw string) (string, bool) { return f.repaired, f.ok }

func TestDecomposeHappyPath(t *testing.T) {
	gen := &fakeGenerator{response: `{"tasks":[
		{"taskId":"t1","capability":"weather","params":{"city":"Paris"}},
		{"taskId":"t2","capability":"weather","params":{"city":"Rome"}}
	]}`}
	p := New(gen, nil, nil, Config{Model: "llama3"}, nil)

	plan, err := p.Decompose(context.Background(), "weather in Paris and Rome", caps("weather"))
	require.NoError(t, err)
	assert.False(t, plan.Degraded)
	assert.Len(t, plan.Tasks, 2)
	assert.Equal(t, PriorityMedium, plan.Tasks[0].Priority)
}

func TestDecomposeFallsBackWhenLLMFails(t *testing.T) {
	gen := &fakeGenerator{err: assert.AnError}
	p := New(gen, nil, nil, Config{Model: "llama3", DefaultChatAgent: "chat"}, nil)

	plan, err := p.Decompose(context.Background(), "hello", caps("weather"))
	require.NoError(t, err)
	assert.True(t, plan.Degraded)
	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "chat", plan.Tasks[0].Capability)
	assert.Equal(t, "hello", plan.Tasks[0].Params["query"])
}

func TestDecomposeRepairsMalformedJSONThenValidates(t *testing.T) {
	gen := &fakeGenerator{response: `{"tasks":[{"taskId":"t1","capability":"weather",}]}`}
	repair := &fakeRepairer{repaired: `{"tasks":[{"taskId":"t1","capability":"weather"}]}`, ok: true}
	p := New(gen, repair, nil, Config{Model: "llama3"}, nil)

	plan, err := p.Decompose(context.Background(), "weather", caps("weather"))
	require.NoError(t, err)
	assert.False(t, plan.Degraded)
	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "weather", plan.Tasks[0].Capability)
}

func TestDecomposeFallsBackWhenRepairFails(t *testing.T) {
	gen := &fakeGenerator{response: `not json at all`}
	repair := &fakeRepairer{ok: false}
	p := New(gen, repair, nil, Config{Model: "llama3", DefaultChatAgent: "chat"}, nil)

	plan, err := p.Decompose(context.Background(), "garbled", caps("weather"))
	require.NoError(t, err)
	assert.True(t, plan.Degraded)
}

func TestDecomposeFallsBackWhenCapabilityUnknown(t *testing.T) {
	gen := &fakeGenerator{response: `{"tasks":[{"taskId":"t1","capability":"time-travel"}]}`}
	p := New(gen, nil, nil, Config{Model: "llama3", DefaultChatAgent: "chat"}, nil)

	plan, err := p.Decompose(context.Background(), "what time is it in 1990", caps("weather"))
	require.NoError(t, err)
	assert.True(t, plan.Degraded)
}

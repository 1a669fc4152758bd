package mobility_test

import (
	"context"
	"testing"
	"time"

	"github.com/owulveryck/amcp/internal/agentctx"
	"github.com/owulveryck/amcp/internal/bus"
	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/owulveryck/amcp/internal/mobility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterAgent struct {
	agentctx.BaseAgent
	counter int
}

func newCounterAgent(id envelope.AgentID, counter int) *counterAgent {
	return &counterAgent{BaseAgent: agentctx.NewBaseAgent(id, "counter", nil), counter: counter}
}

func (a *counterAgent) HandleEvent(ctx context.Context, e *envelope.Event) error { return nil }

func (a *counterAgent) CaptureState() ([]byte, error) {
	return []byte{byte(a.counter)}, nil
}

func (a *counterAgent) RestoreState(data []byte) error {
	if len(data) == 1 {
		a.counter = int(data[0])
	}
	return nil
}

// TestDispatchRoundTrip is scenario S3: an agent with state{counter:5}
// dispatched from S to D ends up owned by D with the same state, and a
// system.mobility.completed event is emitted.
func TestDispatchRoundTrip(t *testing.T) {
	busS := bus.NewInMemoryBroker()
	require.NoError(t, busS.Start(context.Background()))
	busD := bus.NewInMemoryBroker()
	require.NoError(t, busD.Start(context.Background()))

	source := agentctx.New("S", busS, nil, nil, nil)
	dest := agentctx.New("D", busD, nil, nil, nil)
	dest.RegisterFactory("counter", func(id envelope.AgentID) agentctx.Agent {
		return newCounterAgent(id, 0)
	})

	mgr := mobility.NewManager(nil, nil, nil)
	mgr.RegisterContext(source)
	mgr.RegisterContext(dest)

	var completed []string
	require.NoError(t, busS.Subscribe("watcher", "system.mobility.**", func(ctx context.Context, e *envelope.Event) error {
		completed = append(completed, e.Topic)
		return nil
	}))
	require.NoError(t, busD.Subscribe("watcher", "system.mobility.**", func(ctx context.Context, e *envelope.Event) error {
		completed = append(completed, e.Topic)
		return nil
	}))

	agent := newCounterAgent(envelope.NewAgentID("worker", "ns"), 5)
	require.NoError(t, source.RegisterAgent(context.Background(), agent))
	require.NoError(t, source.ActivateAgent(context.Background(), agent.ID()))

	agentID := agent.ID()
	err := mgr.Dispatch(context.Background(), "S", "D", agentID, mobility.TransferOptions{})
	require.NoError(t, err)

	_, sourceHas := source.State(agentID)
	assert.False(t, sourceHas, "source must no longer own the agent")

	destState, ok := dest.State(agentID)
	require.True(t, ok)
	assert.Equal(t, agentctx.StateActive, destState)

	require.Eventually(t, func() bool { return len(completed) > 0 }, time.Second, 10*time.Millisecond)
	assert.Contains(t, completed, "system.mobility.completed")
}

package agentctx

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/owulveryck/amcp/internal/bus"
	"github.com/owulveryck/amcp/internal/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoAgent struct {
	BaseAgent
	mu       sync.Mutex
	received []string
}

func newEchoAgent(id envelope.AgentID) *echoAgent {
	return &echoAgent{BaseAgent: NewBaseAgent(id, "echo", []string{"greet.*"})}
}

func (a *echoAgent) HandleEvent(ctx context.Context, e *envelope.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.received = append(a.received, e.Topic)
	return nil
}

func newTestContext(t *testing.T) (*AgentContext, *bus.InMemoryBroker) {
	t.Helper()
	b := bus.NewInMemoryBroker()
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop(context.Background()) })
	return New("ctx1", b, nil, nil, nil), b
}

func TestRegisterActivateDeliversOnlyWhenActive(t *testing.T) {
	c, b := newTestContext(t)
	agent := newEchoAgent(envelope.NewAgentID("greeter", "ns"))

	require.NoError(t, c.RegisterAgent(context.Background(), agent))

	e, err := envelope.NewBuilder("test", "greet.hello").WithType("io.amcp.greet").Build()
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), e))

	time.Sleep(50 * time.Millisecond)
	agent.mu.Lock()
	assert.Empty(t, agent.received, "inactive agent must not receive events")
	agent.mu.Unlock()

	require.NoError(t, c.ActivateAgent(context.Background(), agent.ID()))
	require.NoError(t, b.Publish(context.Background(), e))

	require.Eventually(t, func() bool {
		agent.mu.Lock()
		defer agent.mu.Unlock()
		return len(agent.received) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestActivateTwiceIsLifecycleViolation(t *testing.T) {
	c, _ := newTestContext(t)
	agent := newEchoAgent(envelope.NewAgentID("greeter", "ns"))
	require.NoError(t, c.RegisterAgent(context.Background(), agent))
	require.NoError(t, c.ActivateAgent(context.Background(), agent.ID()))
	require.Error(t, c.ActivateAgent(context.Background(), agent.ID()))
}

// TestMigratingAgentReceivesEventOnceSettled exercises waitForSettled's
// success path: an event published while the agent is MIGRATING must still
// be delivered once the agent returns to ACTIVE, not dropped.
func TestMigratingAgentReceivesEventOnceSettled(t *testing.T) {
	c, b := newTestContext(t)
	agent := newEchoAgent(envelope.NewAgentID("greeter", "ns"))
	require.NoError(t, c.RegisterAgent(context.Background(), agent))
	require.NoError(t, c.ActivateAgent(context.Background(), agent.ID()))
	c.SetMigrationTimeout(time.Second)

	_, err := c.BeginMigration(context.Background(), agent.ID())
	require.NoError(t, err)

	e, err := envelope.NewBuilder("test", "greet.hello").WithType("io.amcp.greet").Build()
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), e))

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, c.RollbackMigration(context.Background(), agent.ID()))

	require.Eventually(t, func() bool {
		agent.mu.Lock()
		defer agent.mu.Unlock()
		return len(agent.received) == 1
	}, time.Second, 10*time.Millisecond, "event published mid-migration must still be delivered once settled")
}

// TestMigrationTimeoutExceededFailsDelivery ensures a migration that never
// settles within the configured timeout surfaces a handler error instead of
// silently acknowledging the event, so RELIABLE delivery can retry/dead-letter
// it rather than recording a delivery that never reached the agent.
func TestMigrationTimeoutExceededFailsDelivery(t *testing.T) {
	c, _ := newTestContext(t)
	agent := newEchoAgent(envelope.NewAgentID("greeter", "ns"))
	require.NoError(t, c.RegisterAgent(context.Background(), agent))
	require.NoError(t, c.ActivateAgent(context.Background(), agent.ID()))
	c.SetMigrationTimeout(20 * time.Millisecond)

	_, err := c.BeginMigration(context.Background(), agent.ID())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.RollbackMigration(context.Background(), agent.ID()) })

	e, err := envelope.NewBuilder("test", "greet.hello").WithType("io.amcp.greet").Build()
	require.NoError(t, err)

	handler := c.makeHandler(agent.ID())
	require.Error(t, handler(context.Background(), e))

	agent.mu.Lock()
	defer agent.mu.Unlock()
	assert.Empty(t, agent.received)
}

package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_AutoFillsDefaults(t *testing.T) {
	e, err := NewBuilder("io.amcp.weather", "weather.alert.storm").
		WithType("io.amcp.weather.updated").
		Build()
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Time.IsZero())
	assert.Equal(t, "1.0", e.SpecVersion)
	assert.Equal(t, BestEffort, e.DeliveryOptions)
}

func TestBuilder_RejectsMissingType(t *testing.T) {
	_, err := NewBuilder("io.amcp.weather", "weather.alert.storm").Build()
	require.Error(t, err)
}

func TestBuilder_RejectsBadTopic(t *testing.T) {
	_, err := NewBuilder("io.amcp.weather", "Weather..Bad").
		WithType("io.amcp.weather.updated").
		Build()
	require.Error(t, err)
}

func TestCloudEventsRoundTrip(t *testing.T) {
	e, err := NewBuilder("io.amcp.weather", "weather.alert.storm").
		WithType("io.amcp.weather.updated").
		WithCorrelationID("c1").
		WithDelivery(Reliable).
		WithData([]byte(`{"city":"Paris"}`)).
		Build()
	require.NoError(t, err)

	m := e.ToCloudEventsMap()
	assert.Equal(t, "weather.alert.storm", m["amcptopic"])
	assert.Equal(t, "c1", m["amcpcorrelationid"])
	assert.Equal(t, "reliable", m["amcpdelivery"])

	back, err := FromCloudEventsMap(m)
	require.NoError(t, err)
	assert.Equal(t, e.ID, back.ID)
	assert.Equal(t, e.Topic, back.Topic)
	assert.Equal(t, e.CorrelationID, back.CorrelationID)
	assert.Equal(t, e.DeliveryOptions, back.DeliveryOptions)
}

package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("weather.alert.storm"))
	require.NoError(t, Validate("weather.*"))
	require.Error(t, Validate(""))
	require.Error(t, Validate("Weather.Alert"))
	require.Error(t, Validate("weather..alert"))
}

func TestValidatePattern_TrailingDoubleStarOnly(t *testing.T) {
	require.NoError(t, ValidatePattern("weather.**"))
	require.Error(t, ValidatePattern("weather.**.alert"))
}

func TestMatch(t *testing.T) {
	cases := []struct {
		topic, pattern string
		want           bool
	}{
		{"travel.request", "travel.*", true},
		{"travel.request.new", "travel.*", false},
		{"travel.request.new", "travel.**", true},
		{"travel.request", "travel.**", true},
		{"weather.alert.storm", "weather.**", true},
		{"weather.alert.storm", "weather.alert.*", true},
		{"weather.temperature", "weather.alert.*", false},
		{"a.b.c", "a.*.c", true},
		{"a.b.c", "a.*.d", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Match(c.topic, c.pattern), "Match(%q,%q)", c.topic, c.pattern)
	}
}

func TestTrie_MatchAll(t *testing.T) {
	tr := NewTrie[string]()
	tr.Insert("weather.**", "A1", "a1")
	tr.Insert("weather.alert.*", "A2", "a2")

	got := tr.MatchAll("weather.alert.storm")
	assert.Contains(t, got, "A1")
	assert.Contains(t, got, "A2")

	got = tr.MatchAll("weather.temperature")
	assert.Contains(t, got, "A1")
	assert.NotContains(t, got, "A2")
}

func TestTrie_Remove(t *testing.T) {
	tr := NewTrie[string]()
	tr.Insert("weather.*", "A1", "a1")
	tr.Remove("weather.*", "A1")
	got := tr.MatchAll("weather.alert")
	assert.NotContains(t, got, "A1")
}

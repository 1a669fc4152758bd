package llm

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyStableAcrossParamOrder(t *testing.T) {
	k1 := Key("llama3", "hello", map[string]interface{}{"temperature": 0.2, "top_p": 0.9})
	k2 := Key("llama3", "hello", map[string]interface{}{"top_p": 0.9, "temperature": 0.2})
	assert.Equal(t, k1, k2)

	k3 := Key("llama3", "hello", map[string]interface{}{"temperature": 0.3, "top_p": 0.9})
	assert.NotEqual(t, k1, k3)
}

func TestCacheMemoryRoundTrip(t *testing.T) {
	c, err := NewCache(10, time.Minute, "")
	require.NoError(t, err)
	defer c.Close()

	key := Key("llama3", "what is go", nil)
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, "a systems language")
	resp, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "a systems language", resp)
}

func TestCacheDiskPromotesToMemory(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(10, time.Minute, filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	defer c.Close()

	key := Key("llama3", "ping", nil)
	c.Put(key, "pong")
	c.mem.Remove(key)

	resp, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "pong", resp)

	_, inMem := c.mem.Get(key)
	assert.True(t, inMem, "disk hit should be promoted into the memory tier")
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	c, err := NewCache(10, time.Millisecond, "")
	require.NoError(t, err)
	defer c.Close()

	key := Key("llama3", "stale", nil)
	c.Put(key, "old answer")

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(key)
	assert.False(t, ok)
}

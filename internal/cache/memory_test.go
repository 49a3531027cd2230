package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	c, err := NewMemory(10)
	require.NoError(t, err)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", "v", time.Minute)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	c.Invalidate("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestMemoryTTLExpiry(t *testing.T) {
	c, err := NewMemory(10)
	require.NoError(t, err)

	c.Set("short", 1, 10*time.Millisecond)
	c.Set("long", 2, time.Minute)

	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok, "expired entry is removed lazily on Get")
	_, ok = c.Get("long")
	assert.True(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Expired)
}

func TestMemoryLRUEviction(t *testing.T) {
	c, err := NewMemory(3)
	require.NoError(t, err)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Set("c", 3, time.Minute)

	// Touch a so b becomes the least recently used.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", 4, time.Minute)

	_, ok = c.Get("b")
	assert.False(t, ok, "least-recently-accessed entry is evicted")
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, "key %s should survive", k)
	}

	stats := c.Stats()
	assert.Equal(t, 3, stats.Size)
	assert.GreaterOrEqual(t, stats.Evictions, int64(1))
}

func TestMemorySweep(t *testing.T) {
	c, err := NewMemory(10)
	require.NoError(t, err)

	c.Set("a", 1, 5*time.Millisecond)
	c.Set("b", 2, 5*time.Millisecond)
	c.Set("c", 3, time.Minute)

	time.Sleep(20 * time.Millisecond)
	c.Sweep()

	stats := c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, int64(2), stats.Expired)
}

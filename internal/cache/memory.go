// Package cache provides the two caching tiers of the bot: a bounded
// in-process key/value store with per-entry TTL and LRU eviction for hot
// payloads, and a content-addressed on-disk image cache.
package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// entry is a cached value with its own expiry.
type entry struct {
	value     any
	expiresAt time.Time
}

// MemoryStats reports cache effectiveness counters.
type MemoryStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Expired   int64 `json:"expired"`
	Size      int   `json:"size"`
}

// Memory is the in-process KV tier. Eviction is least-recently-accessed
// once the item limit is exceeded; expired entries are removed lazily on
// Get and opportunistically by Sweep.
type Memory struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, entry]
	stats MemoryStats
}

// NewMemory creates a Memory cache bounded to limit items.
func NewMemory(limit int) (*Memory, error) {
	c := &Memory{}
	inner, err := lru.NewWithEvict[string, entry](limit, func(string, entry) {
		c.stats.Evictions++
	})
	if err != nil {
		return nil, err
	}
	c.lru = inner
	return c, nil
}

// Get returns the cached value for key, or ok=false on miss or expiry.
func (c *Memory) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.lru.Remove(key)
		c.stats.Expired++
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.value, true
}

// Set stores value under key for ttl.
func (c *Memory) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry{value: value, expiresAt: time.Now().Add(ttl)})
}

// Invalidate removes key from the cache.
func (c *Memory) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Sweep removes every expired entry. Called periodically by RunSweeper.
func (c *Memory) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok && now.After(e.expiresAt) {
			c.lru.Remove(key)
			c.stats.Expired++
		}
	}
}

// RunSweeper sweeps expired entries on the given interval until ctx is
// cancelled.
func (c *Memory) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Stats snapshots the cache counters.
func (c *Memory) Stats() MemoryStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.lru.Len()
	return s
}

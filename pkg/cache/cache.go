// Package cache keeps short-lived lookups shared between page updates.
package cache

import (
	"context"
	"sync"
	"time"
)

// cleanupInterval is how often SetCache triggers eviction of expired entries.
const cleanupInterval = 100

// Cacher defines the caching interface.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

type entry struct {
	val     []byte
	expires time.Time
}

// MemoryCache is a thread-safe Cacher whose entries expire ttl after being set.
type MemoryCache struct {
	mu       sync.Mutex
	entries  map[string]entry
	ttl      time.Duration
	setCalls int
	now      func() time.Time
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) GetCache(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.val, true
}

func (c *MemoryCache) SetCache(ctx context.Context, key string, val []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setCalls++
	if c.setCalls%cleanupInterval == 0 {
		c.cleanupLocked()
	}

	stored := make([]byte, len(val))
	copy(stored, val)
	c.entries[key] = entry{val: stored, expires: c.now().Add(c.ttl)}
	return nil
}

// Cleanup evicts all expired entries.
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked()
}

func (c *MemoryCache) cleanupLocked() {
	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

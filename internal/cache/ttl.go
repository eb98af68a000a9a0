// Package cache provides small in-process caches keyed by platform ids.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value  V
	stored time.Time
}

// TTL is a bounded map whose entries go stale after a fixed lifetime.
// Stale entries stay readable through Peek until they are pruned, so callers
// can fall back to old data when a refresh fails.
type TTL[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]
	ttl     time.Duration
	maxSize int
}

// Options configures a TTL cache. A zero TTL never expires entries; a zero
// MaxSize leaves the cache unbounded.
type Options struct {
	TTL     time.Duration
	MaxSize int
}

// New creates an empty cache.
func New[K comparable, V any](opts Options) *TTL[K, V] {
	if opts.TTL < 0 {
		opts.TTL = 0
	}
	if opts.MaxSize < 0 {
		opts.MaxSize = 0
	}
	return &TTL[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     opts.TTL,
		maxSize: opts.MaxSize,
	}
}

// Get returns a fresh value for key.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	return c.GetAt(key, time.Now())
}

// GetAt returns the value for key if it was stored less than TTL before now.
func (c *TTL[K, V]) GetAt(key K, now time.Time) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.fresh(e, now) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Peek returns the value for key regardless of age.
func (c *TTL[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e.value, ok
}

// Set stores value under key.
func (c *TTL[K, V]) Set(key K, value V) {
	c.SetAt(key, value, time.Now())
}

// SetAt stores value under key as of now and prunes expired entries.
func (c *TTL[K, V]) SetAt(key K, value V, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, stored: now}
	c.prune(now, key)
}

// Remove deletes key.
func (c *TTL[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
}

// Len returns the number of stored entries, stale ones included.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTL[K, V]) fresh(e entry[V], now time.Time) bool {
	return c.ttl <= 0 || now.Sub(e.stored) < c.ttl
}

// prune drops entries older than twice the TTL, then the oldest entries
// beyond MaxSize. keep is never evicted.
func (c *TTL[K, V]) prune(now time.Time, keep K) {
	if c.ttl > 0 {
		cutoff := now.Add(-2 * c.ttl)
		for k, e := range c.entries {
			if k != keep && e.stored.Before(cutoff) {
				delete(c.entries, k)
			}
		}
	}
	if c.maxSize <= 0 {
		return
	}
	for len(c.entries) > c.maxSize {
		var (
			oldestKey K
			oldest    time.Time
			found     bool
		)
		for k, e := range c.entries {
			if k == keep {
				continue
			}
			if !found || e.stored.Before(oldest) {
				oldestKey, oldest, found = k, e.stored, true
			}
		}
		if !found {
			return
		}
		delete(c.entries, oldestKey)
	}
}

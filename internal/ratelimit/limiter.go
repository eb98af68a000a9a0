// Package ratelimit provides per-key token buckets used to throttle handler
// invocations and outbound platform calls.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config configures rate limiting behavior.
type Config struct {
	// RequestsPerSecond is the refill rate of each bucket.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// BurstSize is the bucket capacity.
	BurstSize int `yaml:"burst_size"`
	// Enabled controls whether rate limiting is active.
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the default per-user limit: one invocation per
// second with a burst of five.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 1,
		BurstSize:         5,
		Enabled:           true,
	}
}

func (c Config) withDefaults() Config {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 1
	}
	if c.BurstSize <= 0 {
		c.BurstSize = int(c.RequestsPerSecond * 2)
		if c.BurstSize < 1 {
			c.BurstSize = 1
		}
	}
	return c
}

// Bucket implements token bucket rate limiting.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewBucket creates a full bucket as of now.
func NewBucket(config Config, now time.Time) *Bucket {
	config = config.withDefaults()
	return &Bucket{
		tokens:     float64(config.BurstSize),
		maxTokens:  float64(config.BurstSize),
		refillRate: config.RequestsPerSecond,
		lastRefill: now,
	}
}

// AllowAt consumes a token if one is available at now.
func (b *Bucket) AllowAt(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// TokensAt returns the available tokens at now.
func (b *Bucket) TokensAt(now time.Time) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(now)
	return b.tokens
}

// WaitTimeAt returns how long until a token is available.
func (b *Bucket) WaitTimeAt(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if b.tokens >= 1 {
		return 0
	}
	seconds := (1 - b.tokens) / b.refillRate
	return time.Duration(seconds * float64(time.Second))
}

// refill must be called with the lock held.
func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.lastRefill = now
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
}

// Limiter keeps one bucket per key (user id, channel id, ...).
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket
	config  Config
	maxKeys int
	now     func() time.Time
}

// NewLimiter creates a new rate limiter.
func NewLimiter(config Config) *Limiter {
	return &Limiter{
		buckets: make(map[string]*Bucket),
		config:  config.withDefaults(),
		maxKeys: 10000,
		now:     time.Now,
	}
}

// Allow checks if a request for the given key should be allowed.
func (l *Limiter) Allow(key string) bool {
	return l.AllowAt(key, l.now())
}

// AllowAt is Allow with an explicit clock (for testing).
func (l *Limiter) AllowAt(key string, now time.Time) bool {
	if !l.config.Enabled {
		return true
	}
	return l.bucket(key, now).AllowAt(now)
}

// WaitTime returns how long the key has to wait for its next request.
func (l *Limiter) WaitTime(key string) time.Duration {
	if !l.config.Enabled {
		return 0
	}
	now := l.now()
	return l.bucket(key, now).WaitTimeAt(now)
}

// Wait blocks until key may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	for {
		if l.Allow(key) {
			return nil
		}
		d := l.WaitTime(key)
		if d <= 0 {
			d = time.Millisecond
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Reset forgets the bucket for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Size returns the number of tracked keys.
func (l *Limiter) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

func (l *Limiter) bucket(key string, now time.Time) *Bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if b, ok = l.buckets[key]; ok {
		return b
	}
	if len(l.buckets) >= l.maxKeys {
		l.prune(now)
	}
	b = NewBucket(l.config, now)
	l.buckets[key] = b
	return b
}

// prune drops buckets that have refilled, they carry no state worth keeping.
func (l *Limiter) prune(now time.Time) {
	for key, b := range l.buckets {
		if b.TokensAt(now) >= b.maxTokens {
			delete(l.buckets, key)
		}
	}
}

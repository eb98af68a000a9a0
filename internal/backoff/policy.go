// Package backoff provides exponential backoff with optional jitter and a
// bounded retry loop built on it.
package backoff

import (
	"math"
	"time"
)

// BackoffPolicy defines the parameters for exponential backoff calculation.
type BackoffPolicy struct {
	// InitialMs is the delay after the first failure, in milliseconds.
	InitialMs float64
	// MaxMs caps every delay, in milliseconds.
	MaxMs float64
	// Factor is the exponential factor applied to each attempt.
	Factor float64
	// Jitter is the randomization factor (0.0 to 1.0) applied to the backoff.
	Jitter float64
}

// ComputeBackoffWithRand calculates the backoff duration for an attempt
// number starting at 1, given a random value in [0.0, 1.0).
// The formula is: base = initialMs * factor^(attempt-1), jitter = base * jitter * random
// Returns min(maxMs, base + jitter).
func ComputeBackoffWithRand(policy BackoffPolicy, attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := policy.InitialMs * math.Pow(policy.Factor, exp)
	jitterAmount := base * policy.Jitter * randomValue
	total := math.Min(policy.MaxMs, base+jitterAmount)
	return time.Duration(math.Round(total)) * time.Millisecond
}

// SessionPolicy is the login retry schedule: 1s doubling per attempt,
// capped at 60s, no jitter.
func SessionPolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialMs: 1000,
		MaxMs:     60000,
		Factor:    2,
		Jitter:    0,
	}
}

// DefaultPolicy returns a short policy for outbound API calls.
// Initial: 100ms, Max: 30s, Factor: 2, Jitter: 10%
func DefaultPolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialMs: 100,
		MaxMs:     30000,
		Factor:    2,
		Jitter:    0.1,
	}
}

package backoff

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/haasonsaas/botkit/internal/retry"
)

var (
	// ErrMaxAttemptsExhausted is returned when the retry budget is spent.
	ErrMaxAttemptsExhausted = errors.New("max retry attempts exhausted")
	// ErrRetryWindowElapsed is returned when the retry window has passed.
	ErrRetryWindowElapsed = errors.New("retry window elapsed")
)

// Loop retries an operation on a backoff schedule. Zero limits are
// unbounded.
type Loop struct {
	Policy BackoffPolicy
	// MaxRetries bounds the number of retries after the first attempt.
	MaxRetries int
	// MaxElapsed bounds the time since the first attempt.
	MaxElapsed time.Duration

	Now   func() time.Time
	Sleep SleepFunc
	Rand  func() float64
	// OnRetry is called before each sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Run calls fn until it succeeds. It stops early when fn returns a
// permanent error, ctx is done, or a limit is reached; the returned error
// then wraps the last failure.
func (l Loop) Run(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	now := l.Now
	if now == nil {
		now = time.Now
	}
	sleep := l.Sleep
	if sleep == nil {
		sleep = SleepWithContext
	}
	random := l.Rand
	if random == nil {
		random = rand.Float64 // #nosec G404 -- jitter does not require cryptographic randomness
	}

	start := now()
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, attempt+1)
		if err == nil {
			return nil
		}
		if retry.IsPermanent(err) {
			return err
		}

		attempt++
		if l.MaxRetries > 0 && attempt > l.MaxRetries {
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExhausted, attempt, err)
		}
		if l.MaxElapsed > 0 && now().Sub(start) > l.MaxElapsed {
			return fmt.Errorf("%w after %s: %w", ErrRetryWindowElapsed, l.MaxElapsed, err)
		}

		delay := ComputeBackoffWithRand(l.Policy, attempt, random())
		if l.OnRetry != nil {
			l.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

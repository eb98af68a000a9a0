package backoff

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/haasonsaas/botkit/internal/retry"
)

// fakeClock records sleeps and advances time by the slept amount.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func newLoop(clock *fakeClock) Loop {
	return Loop{
		Policy: SessionPolicy(),
		Now:    clock.Now,
		Sleep:  clock.Sleep,
		Rand:   func() float64 { return 0 },
	}
}

func TestLoop_SucceedsAfterRetries(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	loop := newLoop(clock)

	var attempts []int
	err := loop.Run(context.Background(), func(_ context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 4 {
			return errors.New("unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !reflect.DeepEqual(attempts, []int{1, 2, 3, 4}) {
		t.Errorf("attempts = %v", attempts)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if !reflect.DeepEqual(clock.sleeps, want) {
		t.Errorf("sleeps = %v, want %v", clock.sleeps, want)
	}
}

func TestLoop_MaxRetries(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	loop := newLoop(clock)
	loop.MaxRetries = 3

	calls := 0
	boom := errors.New("boom")
	err := loop.Run(context.Background(), func(context.Context, int) error {
		calls++
		return boom
	})
	if !errors.Is(err, ErrMaxAttemptsExhausted) {
		t.Fatalf("Run() error = %v, want ErrMaxAttemptsExhausted", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, should wrap the last failure", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	if len(clock.sleeps) != 3 {
		t.Errorf("sleeps = %v, want 3", clock.sleeps)
	}
}

func TestLoop_MaxElapsed(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	loop := newLoop(clock)
	loop.MaxElapsed = 10 * time.Second

	calls := 0
	err := loop.Run(context.Background(), func(context.Context, int) error {
		calls++
		return errors.New("down")
	})
	if !errors.Is(err, ErrRetryWindowElapsed) {
		t.Fatalf("Run() error = %v, want ErrRetryWindowElapsed", err)
	}
	// 1+2+4 = 7s elapsed after the fourth call, 15s after the fifth.
	if calls != 5 {
		t.Errorf("calls = %d, want 5", calls)
	}
}

func TestLoop_PermanentStops(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	loop := newLoop(clock)

	calls := 0
	err := loop.Run(context.Background(), func(context.Context, int) error {
		calls++
		return retry.Permanent(errors.New("invalid token"))
	})
	if !retry.IsPermanent(err) {
		t.Fatalf("Run() error = %v, want permanent", err)
	}
	if calls != 1 || len(clock.sleeps) != 0 {
		t.Errorf("calls = %d, sleeps = %v", calls, clock.sleeps)
	}
}

func TestLoop_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := Loop{Policy: SessionPolicy(), Sleep: func(context.Context, time.Duration) error {
		cancel()
		return nil
	}}

	calls := 0
	err := loop.Run(ctx, func(context.Context, int) error {
		calls++
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestLoop_OnRetry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	loop := newLoop(clock)
	loop.MaxRetries = 2

	var seen []int
	loop.OnRetry = func(attempt int, _ time.Duration, _ error) { seen = append(seen, attempt) }
	_ = loop.Run(context.Background(), func(context.Context, int) error { return errors.New("x") })
	if !reflect.DeepEqual(seen, []int{1, 2}) {
		t.Errorf("OnRetry attempts = %v, want [1 2]", seen)
	}
}

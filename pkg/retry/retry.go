// Package retry runs an operation under an explicit, testable retry policy.
package retry

import (
	"context"
	"time"
)

// BackoffFunc returns the delay to wait after the given failed attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// Policy describes how many times an operation may run and how long to
// wait between runs. The zero value runs the operation exactly once.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc

	// Retryable decides whether a failure may be retried. Nil retries every error.
	Retryable func(err error) bool

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is invoked before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. It returns the number of attempts made and the
// last error.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	max := p.MaxAttempts
	if max < 1 {
		max = 1
	}

	var err error
	for attempt := 1; attempt <= max; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			if err == nil {
				err = cerr
			}
			return attempt - 1, err
		}

		err = fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if attempt == max || !p.retryable(err) {
			return attempt, err
		}

		delay := p.delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if serr := p.sleep(ctx, delay); serr != nil {
			return attempt, serr
		}
	}
	return max, err
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func (p Policy) delay(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(attempt)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// Sleep blocks for d or until ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Constant waits d between every attempt.
func Constant(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// Linear waits base*attempt: base, 2*base, 3*base...
func Linear(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration { return base * time.Duration(attempt) }
}

// Exponential waits multiplier*2^attempt clamped to [min, max].
func Exponential(multiplier, min, max time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt > 30 {
			return max
		}
		d := multiplier * time.Duration(1<<uint(attempt))
		if d < min {
			return min
		}
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

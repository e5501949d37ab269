package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestDoSucceedsAfterFailures(t *testing.T) {
	var delays []time.Duration
	calls := 0
	p := Policy{
		MaxAttempts: 3,
		Backoff:     Linear(2 * time.Second),
		Sleep:       noSleep,
		OnRetry:     func(_ int, _ error, d time.Duration) { delays = append(delays, d) },
	}

	attempts, err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if diff := cmp.Diff([]time.Duration{2 * time.Second, 4 * time.Second}, delays); diff != "" {
		t.Errorf("delays mismatch (-want +got):\n%s", diff)
	}
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	want := errors.New("still down")
	calls := 0
	attempts, err := Policy{MaxAttempts: 3, Sleep: noSleep}.Do(context.Background(), func(context.Context) error {
		calls++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
	if attempts != 3 || calls != 3 {
		t.Errorf("attempts=%d calls=%d, want 3/3", attempts, calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("malformed")
	calls := 0
	p := Policy{
		MaxAttempts: 5,
		Sleep:       noSleep,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}
	attempts, err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || attempts != 1 || calls != 1 {
		t.Fatalf("attempts=%d calls=%d err=%v", attempts, calls, err)
	}
}

func TestDoHonoursCancellationDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		MaxAttempts: 3,
		Backoff:     Constant(time.Hour),
		OnRetry:     func(int, error, time.Duration) { cancel() },
	}
	attempts, err := p.Do(ctx, func(context.Context) error { return errors.New("busy") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestZeroPolicyRunsOnce(t *testing.T) {
	calls := 0
	_, _ = Policy{}.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("x")
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestExponentialIsClamped(t *testing.T) {
	b := Exponential(time.Second, 4*time.Second, 10*time.Second)
	got := []time.Duration{b(1), b(2), b(3), b(4), b(40)}
	want := []time.Duration{4 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("backoff mismatch (-want +got):\n%s", diff)
	}
}

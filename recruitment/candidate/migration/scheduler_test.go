package migration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/applyflow/recruitment/candidate"
	"github.com/google/go-cmp/cmp"
)

// recordingSleep captures requested waits without blocking.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleep) waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func TestWriteRetriesThrottledWithLinearBackoff(t *testing.T) {
	rec := &recordingSleep{}
	s := NewWriteScheduler(WithSleep(rec.sleep))

	calls := 0
	out := s.Write(context.Background(), "upsert", func(ctx context.Context) error {
		calls++
		if calls <= 2 {
			return candidate.ErrThrottled().WithDetail("code", 16500)
		}
		return nil
	})

	if out.Status != WriteWritten || out.Attempts != 3 || out.Retries != 2 {
		t.Fatalf("outcome = %+v", out)
	}
	if diff := cmp.Diff([]time.Duration{2 * time.Second, 4 * time.Second}, rec.waits()); diff != "" {
		t.Errorf("backoff mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteGivesUpWhenStillThrottled(t *testing.T) {
	rec := &recordingSleep{}
	s := NewWriteScheduler(WithSleep(rec.sleep))

	out := s.Write(context.Background(), "insert", func(ctx context.Context) error {
		return candidate.ErrThrottled()
	})

	if out.Succeeded() || out.Attempts != DefaultWriteAttempts || out.Retries != 2 {
		t.Fatalf("outcome = %+v", out)
	}
	if !candidate.IsThrottled(out.Err) {
		t.Errorf("err = %v, want throttled", out.Err)
	}
}

func TestWriteDuplicateIsSuccess(t *testing.T) {
	s := NewWriteScheduler(WithSleep((&recordingSleep{}).sleep))

	out := s.Write(context.Background(), "insert", func(ctx context.Context) error {
		return candidate.ErrDuplicateKey()
	})

	if out.Status != WriteDuplicate || !out.Succeeded() || out.Err != nil {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestWriteOtherErrorsFailImmediately(t *testing.T) {
	rec := &recordingSleep{}
	s := NewWriteScheduler(WithSleep(rec.sleep))

	calls := 0
	boom := errors.New("disk full")
	out := s.Write(context.Background(), "upsert", func(ctx context.Context) error {
		calls++
		return boom
	})

	if out.Status != WriteFailed || !errors.Is(out.Err, boom) {
		t.Fatalf("outcome = %+v", out)
	}
	if calls != 1 || len(rec.waits()) != 0 {
		t.Errorf("calls = %d, waits = %v", calls, rec.waits())
	}
}

func TestPaceSkipsFirstWrite(t *testing.T) {
	rec := &recordingSleep{}
	s := NewWriteScheduler(WithSleep(rec.sleep))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Pace(ctx); err != nil {
			t.Fatal(err)
		}
	}

	want := []time.Duration{DefaultWritePacing, DefaultWritePacing}
	if diff := cmp.Diff(want, rec.waits()); diff != "" {
		t.Errorf("pacing mismatch (-want +got):\n%s", diff)
	}
}

func TestPaceStopsOnCancel(t *testing.T) {
	s := NewWriteScheduler(WithPacing(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	if err := s.Pace(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := s.Pace(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
}

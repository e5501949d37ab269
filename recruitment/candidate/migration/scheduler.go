package migration

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/applyflow/internal/metrics"
	"github.com/Abraxas-365/applyflow/pkg/logx"
	"github.com/Abraxas-365/applyflow/pkg/retry"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
)

const (
	DefaultThrottleBaseDelay = 2 * time.Second
	DefaultWriteAttempts     = 3
	DefaultWritePacing       = 300 * time.Millisecond
)

type WriteStatus string

const (
	WriteWritten   WriteStatus = "written"
	WriteDuplicate WriteStatus = "duplicate"
	WriteFailed    WriteStatus = "failed"
)

// WriteOutcome is the result of one scheduled write. Retries counts the
// waits taken after a throttling signal.
type WriteOutcome struct {
	Status   WriteStatus
	Attempts int
	Retries  int
	Err      error
}

// Succeeded reports whether the write took effect or was already present.
func (o WriteOutcome) Succeeded() bool { return o.Status != WriteFailed }

// WriteScheduler runs store writes, retrying only on throttling with a
// linear backoff, and paces successive writes in bulk mode.
type WriteScheduler struct {
	baseDelay   time.Duration
	maxAttempts int
	pacing      time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	primed bool
}

type SchedulerOption func(*WriteScheduler)

func WithThrottleBaseDelay(d time.Duration) SchedulerOption {
	return func(s *WriteScheduler) { s.baseDelay = d }
}

func WithMaxWriteAttempts(n int) SchedulerOption {
	return func(s *WriteScheduler) { s.maxAttempts = n }
}

func WithPacing(d time.Duration) SchedulerOption {
	return func(s *WriteScheduler) { s.pacing = d }
}

// WithSleep replaces the wait used for both backoff and pacing.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) SchedulerOption {
	return func(s *WriteScheduler) { s.sleep = fn }
}

func NewWriteScheduler(opts ...SchedulerOption) *WriteScheduler {
	s := &WriteScheduler{
		baseDelay:   DefaultThrottleBaseDelay,
		maxAttempts: DefaultWriteAttempts,
		pacing:      DefaultWritePacing,
		sleep:       retry.Sleep,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Write runs fn. A duplicate key is a successful no-op; a throttled write is
// retried after baseDelay*attempt while attempts remain; anything else fails
// immediately.
func (s *WriteScheduler) Write(ctx context.Context, op string, fn func(ctx context.Context) error) WriteOutcome {
	retries := 0
	policy := retry.Policy{
		MaxAttempts: s.maxAttempts,
		Backoff:     retry.Linear(s.baseDelay),
		Retryable:   candidate.IsThrottled,
		Sleep:       s.sleep,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			retries++
			metrics.StoreRetries.WithLabelValues(op).Inc()
			logx.Warnf("Store throttled during %s (attempt %d/%d), waiting %s", op, attempt, s.maxAttempts, delay)
		},
	}

	attempts, err := policy.Do(ctx, fn)
	out := WriteOutcome{Attempts: attempts, Retries: retries}
	switch {
	case err == nil:
		out.Status = WriteWritten
	case candidate.IsDuplicateKey(err):
		out.Status = WriteDuplicate
	default:
		out.Status = WriteFailed
		out.Err = err
		if candidate.IsThrottled(err) {
			logx.Errorf("Store still throttled after %d attempts during %s", attempts, op)
		}
	}
	return out
}

// Pace waits the pacing interval before every write except the first.
func (s *WriteScheduler) Pace(ctx context.Context) error {
	s.mu.Lock()
	primed := s.primed
	s.primed = true
	s.mu.Unlock()

	if !primed || s.pacing <= 0 {
		return ctx.Err()
	}
	return s.sleep(ctx, s.pacing)
}

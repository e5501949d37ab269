package candidatesrv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/applyflow/internal/metrics"
	"github.com/Abraxas-365/applyflow/pkg/errx"
	"github.com/Abraxas-365/applyflow/pkg/logx"
	"github.com/Abraxas-365/applyflow/pkg/retry"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
)

// ExtractionResult is the outcome of extracting one document. It never
// carries partial text: on failure Text is empty and Err says why.
type ExtractionResult struct {
	Kind     candidate.DocumentKind
	Text     string
	Attempts int
	Cached   bool
	Err      error
}

// OK reports whether usable text was produced.
func (r ExtractionResult) OK() bool { return r.Err == nil && r.Text != "" }

// DefaultExtractionPolicy makes up to 3 attempts with exponential waits
// clamped to [4s, 10s]. Unreadable documents are not retried.
func DefaultExtractionPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		Backoff:     retry.Exponential(time.Second, 4*time.Second, 10*time.Second),
		Retryable:   isTransientExtractionError,
	}
}

func isTransientExtractionError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return !errx.IsCode(err, candidate.CodeDocumentUnreadable)
}

// Extractor runs a TextRecognizer under a retry policy, consulting an
// optional cache keyed by document content.
type Extractor struct {
	recognizer candidate.TextRecognizer
	cache      candidate.TextCache
	policy     retry.Policy
}

type ExtractorOption func(*Extractor)

func WithTextCache(c candidate.TextCache) ExtractorOption {
	return func(e *Extractor) { e.cache = c }
}

func WithExtractionPolicy(p retry.Policy) ExtractorOption {
	return func(e *Extractor) { e.policy = p }
}

func NewExtractor(recognizer candidate.TextRecognizer, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		recognizer: recognizer,
		policy:     DefaultExtractionPolicy(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// CacheKey identifies document content independently of its URL.
func CacheKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Extract never panics; any failure, including a recognizer panic, is
// reported in the result.
func (e *Extractor) Extract(ctx context.Context, doc *candidate.FetchedDocument) (res ExtractionResult) {
	res.Kind = doc.Kind
	log := logx.With("kind", string(doc.Kind), "url", doc.URL)

	defer func() {
		if p := recover(); p != nil {
			log.Errorw("Recognizer panicked", "panic", fmt.Sprint(p))
			res.Text = ""
			res.Err = candidate.ErrExtractionFailed().WithDetail("panic", fmt.Sprint(p))
		}
	}()

	key := CacheKey(doc.Data)
	if e.cache != nil {
		text, ok, err := e.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warnw("Text cache lookup failed", "error", err)
		case ok && text != "":
			res.Text = text
			res.Cached = true
			return res
		}
	}

	policy := e.policy
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error, delay time.Duration) {
			log.Warnw("Extraction attempt failed, retrying", "attempt", attempt, "delay", delay.String(), "error", err)
		}
	}

	var text string
	attempts, err := policy.Do(ctx, func(ctx context.Context) error {
		metrics.ExtractionAttempts.WithLabelValues(string(doc.Kind)).Inc()
		t, err := e.recognizer.Recognize(ctx, doc)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	res.Attempts = attempts

	if err != nil {
		if _, ok := errx.As(err); !ok && ctx.Err() == nil {
			err = candidate.ErrRegistry.NewWithCause(candidate.CodeExtractionFailed, err)
		}
		res.Err = err
		log.Warnw("Extraction failed", "attempts", attempts, "error", err)
		return res
	}

	res.Text = strings.TrimSpace(text)
	if res.Text != "" && e.cache != nil {
		if err := e.cache.Set(ctx, key, res.Text); err != nil {
			log.Warnw("Text cache store failed", "error", err)
		}
	}
	return res
}

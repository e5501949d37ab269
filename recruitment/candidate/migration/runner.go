package migration

import (
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/Abraxas-365/applyflow/internal/metrics"
	"github.com/Abraxas-365/applyflow/pkg/kernel"
	"github.com/Abraxas-365/applyflow/pkg/logx"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/candidatesrv"
	"golang.org/x/sync/errgroup"
)

const DefaultDocumentConcurrency = 4

// RecordState is the position of a record in its processing pipeline.
type RecordState string

const (
	StatePending            RecordState = "pending"
	StateNormalized         RecordState = "normalized"
	StateDocumentsResolved  RecordState = "documents_resolved"
	StateDocumentsExtracted RecordState = "documents_extracted"
	StatePersisted          RecordState = "persisted"
	StateSkipped            RecordState = "skipped"
	StateFailed             RecordState = "failed"
	StateAbandoned          RecordState = "abandoned"
)

type DocumentStatus string

const (
	DocumentExtracted     DocumentStatus = "extracted"
	DocumentCached        DocumentStatus = "cached"
	DocumentEmpty         DocumentStatus = "empty"
	DocumentFetchFailed   DocumentStatus = "fetch_failed"
	DocumentExtractFailed DocumentStatus = "extract_failed"
)

// DocumentOutcome reports what happened to one resolved document.
type DocumentOutcome struct {
	Kind     candidate.DocumentKind
	URL      string
	Status   DocumentStatus
	Attempts int
	Chars    int
	Err      error

	text string
}

// RecordReport is the per-record result of a run. FailedAt is the last
// state reached before the failure.
type RecordReport struct {
	Index     int
	Key       string
	State     RecordState
	FailedAt  RecordState
	StorageID kernel.CandidateID
	Duplicate bool
	Documents []DocumentOutcome
	Retries   int
	Err       error
}

func (r *RecordReport) fail(err error) {
	r.FailedAt = r.State
	r.State = StateFailed
	r.Err = err
}

// DocumentExtractor turns a fetched document into text.
type DocumentExtractor interface {
	Extract(ctx context.Context, doc *candidate.FetchedDocument) candidatesrv.ExtractionResult
}

// Dependencies are the collaborators a Runner is built from. Embedder and
// Vectors are optional; when both are set the CV text is embedded after a
// record is persisted.
type Dependencies struct {
	Resolver   *candidate.Resolver
	Fetcher    candidate.Fetcher
	Extractor  DocumentExtractor
	Repository candidate.Repository
	Scheduler  *WriteScheduler
	Embedder   candidate.Embedder
	Vectors    candidate.VectorIndex
}

type Options struct {
	// DocumentConcurrency bounds parallel fetch+extract within one record.
	DocumentConcurrency int
	// SkipExisting skips records whose application id is already stored.
	SkipExisting bool
}

// Runner processes source records one at a time: normalize, resolve
// documents, fetch and extract them, then upsert.
type Runner struct {
	deps Dependencies
	opts Options
}

func NewRunner(deps Dependencies, opts Options) *Runner {
	if opts.DocumentConcurrency < 1 {
		opts.DocumentConcurrency = DefaultDocumentConcurrency
	}
	if deps.Scheduler == nil {
		deps.Scheduler = NewWriteScheduler()
	}
	return &Runner{deps: deps, opts: opts}
}

// Run processes records in source order. A failing record is counted and
// the run moves on. When ctx is cancelled the in-flight record is abandoned
// and the partial summary is returned with ctx's error.
func (r *Runner) Run(ctx context.Context, records []json.RawMessage) (*Summary, error) {
	summary := newSummary(len(records))
	logx.Infof("Run %s: processing %d records", summary.RunID, len(records))

	for i, raw := range records {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		started := time.Now()
		report := r.ProcessRecord(ctx, i+1, raw)
		metrics.RecordDuration.Observe(time.Since(started).Seconds())

		if report.State == StateAbandoned {
			logx.Warnf("Record %d abandoned: run interrupted", report.Index)
			summary.Interrupted = true
			break
		}
		summary.add(report)
		metrics.RecordsTotal.WithLabelValues(outcomeLabel(report)).Inc()
	}

	summary.finish()
	logx.Infof("Run %s finished: %d succeeded, %d duplicates, %d failed, %d retries in %s",
		summary.RunID, summary.Succeeded, summary.Duplicates, summary.Failed, summary.Retried, summary.Duration.Round(time.Millisecond))

	if summary.Interrupted {
		return summary, context.Cause(ctx)
	}
	return summary, nil
}

func outcomeLabel(r RecordReport) string {
	switch {
	case r.State == StateFailed:
		return "failed"
	case r.State == StateSkipped, r.Duplicate:
		return "duplicate"
	default:
		return "succeeded"
	}
}

// ProcessRecord drives one record through its states. Document failures
// leave their slot empty; only normalization or persistence failures fail
// the record.
func (r *Runner) ProcessRecord(ctx context.Context, index int, raw json.RawMessage) RecordReport {
	report := RecordReport{Index: index, State: StatePending}

	c, rawRecord, err := candidate.NormalizeJSON(raw)
	if err != nil {
		logx.Errorf("Record %d rejected: %v", index, err)
		report.fail(err)
		return report
	}
	report.State = StateNormalized
	report.Key = c.Key().String()
	applicationID := c.ApplicationID
	log := logx.With("record", index, "key", report.Key)
	log.Infow("Processing record", "name", c.GetFullName())

	if r.opts.SkipExisting && !applicationID.IsEmpty() {
		exists, err := r.deps.Repository.ExistsByApplicationID(ctx, applicationID)
		switch {
		case err != nil && ctx.Err() != nil:
			report.State = StateAbandoned
			return report
		case err != nil:
			log.Warnw("Duplicate pre-check failed, processing anyway", "error", err)
		case exists:
			log.Infow("Already stored, skipping")
			report.State = StateSkipped
			return report
		}
	}

	locations, dropped := r.deps.Resolver.Resolve(rawRecord)
	if len(dropped) > 0 {
		log.Warnw("Ignored document entries", "entries", dropped)
	}
	if len(locations) == 0 {
		log.Warnw("No documents to process")
	}
	report.State = StateDocumentsResolved

	report.Documents = r.extractDocuments(ctx, c, locations, log)
	if ctx.Err() != nil {
		report.State = StateAbandoned
		return report
	}
	for _, d := range report.Documents {
		c.Documents.Set(d.Kind, d.text)
	}
	report.State = StateDocumentsExtracted

	var id kernel.CandidateID
	out := r.deps.Scheduler.Write(ctx, "upsert", func(ctx context.Context) error {
		var err error
		id, err = r.deps.Repository.Upsert(ctx, c, applicationID)
		return err
	})
	report.Retries = out.Retries

	switch out.Status {
	case WriteFailed:
		if ctx.Err() != nil {
			report.State = StateAbandoned
			return report
		}
		log.Errorw("Persisting record failed", "error", out.Err, "attempts", out.Attempts)
		report.fail(out.Err)
		return report
	case WriteDuplicate:
		report.Duplicate = true
	}

	report.StorageID = id
	report.State = StatePersisted
	log.Infow("Record saved", "id", id.String(), "documents", c.Documents.Count(), "retries", out.Retries)

	r.embed(ctx, c, id, log)
	return report
}

func (r *Runner) extractDocuments(ctx context.Context, c *candidate.Candidate, locations candidate.LocationMap, log *logx.Logger) []DocumentOutcome {
	kinds := locations.Kinds()
	outcomes := make([]DocumentOutcome, len(kinds))

	var g errgroup.Group
	g.SetLimit(r.opts.DocumentConcurrency)
	for i, kind := range kinds {
		g.Go(func() error {
			outcomes[i] = r.extractDocument(ctx, c, kind, locations[kind], log)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		metrics.DocumentsTotal.WithLabelValues(string(o.Kind), string(o.Status)).Inc()
	}
	return outcomes
}

func (r *Runner) extractDocument(ctx context.Context, c *candidate.Candidate, kind candidate.DocumentKind, url string, log *logx.Logger) DocumentOutcome {
	out := DocumentOutcome{Kind: kind, URL: url}

	doc, err := r.deps.Fetcher.Fetch(ctx, url, candidate.SpoolName(c, kind, url))
	if err != nil {
		log.Warnw("Document download failed", "kind", string(kind), "error", err)
		out.Status = DocumentFetchFailed
		out.Err = err
		return out
	}
	defer func() {
		if err := r.deps.Fetcher.Release(context.WithoutCancel(ctx), doc); err != nil {
			log.Debugw("Releasing spooled document failed", "path", doc.Path, "error", err)
		}
	}()
	doc.Kind = kind

	res := r.deps.Extractor.Extract(ctx, doc)
	out.Attempts = res.Attempts
	switch {
	case res.Err != nil:
		out.Status = DocumentExtractFailed
		out.Err = res.Err
	case res.Text == "":
		log.Warnw("No text extracted", "kind", string(kind))
		out.Status = DocumentEmpty
	case res.Cached:
		out.Status = DocumentCached
	default:
		out.Status = DocumentExtracted
	}
	out.text = res.Text
	out.Chars = utf8.RuneCountInString(res.Text)
	if out.Chars > 0 {
		log.Infow("Document extracted", "kind", string(kind), "chars", out.Chars, "cached", res.Cached)
	}
	return out
}

func (r *Runner) embed(ctx context.Context, c *candidate.Candidate, id kernel.CandidateID, log *logx.Logger) {
	if r.deps.Embedder == nil || r.deps.Vectors == nil {
		return
	}
	cv, ok := c.Documents.Get(candidate.DocumentCV)
	if !ok {
		return
	}
	vec, err := r.deps.Embedder.GenerateEmbedding(ctx, cv)
	if err != nil {
		log.Warnw("CV embedding failed", "error", err)
		return
	}
	if err := r.deps.Vectors.SaveEmbedding(ctx, id, vec); err != nil {
		log.Warnw("Saving CV embedding failed", "error", err)
	}
}

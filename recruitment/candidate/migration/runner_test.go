package migration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Abraxas-365/applyflow/pkg/fsx/fsxlocal"
	"github.com/Abraxas-365/applyflow/pkg/kernel"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/candidateinfra"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/candidatesrv"
	"github.com/google/go-cmp/cmp"
)

// echoExtractor returns "text:<body>" for every document, or "" for bodies
// listed in empty.
type echoExtractor struct {
	empty map[string]bool
	hook  func()
}

func (e *echoExtractor) Extract(ctx context.Context, doc *candidate.FetchedDocument) candidatesrv.ExtractionResult {
	if e.hook != nil {
		e.hook()
	}
	body := string(doc.Data)
	if e.empty[body] {
		return candidatesrv.ExtractionResult{Kind: doc.Kind, Attempts: 1}
	}
	return candidatesrv.ExtractionResult{Kind: doc.Kind, Text: "text:" + body, Attempts: 1}
}

type throttlingRepo struct {
	*candidateinfra.MemoryRepository
	throttles int
}

func (r *throttlingRepo) Upsert(ctx context.Context, c *candidate.Candidate, id kernel.ApplicationID) (kernel.CandidateID, error) {
	if r.throttles > 0 {
		r.throttles--
		return "", candidate.ErrThrottled()
	}
	return r.MemoryRepository.Upsert(ctx, c, id)
}

type recordingEmbedder struct {
	mu    sync.Mutex
	texts []string
}

func (e *recordingEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.texts = append(e.texts, text)
	return []float32{1, 0}, nil
}

// documentServer serves every object under /storage/v1/object/public/docs/
// whose name is not prefixed with "missing".
func documentServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if strings.HasPrefix(name, "missing") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte(name))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	repo      *candidateinfra.MemoryRepository
	sleeps    *recordingSleep
	extractor *echoExtractor
	deps      Dependencies
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := documentServer(t)
	spool, err := fsxlocal.NewLocalFileSystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{
		repo:      candidateinfra.NewMemoryRepository(),
		sleeps:    &recordingSleep{},
		extractor: &echoExtractor{},
	}
	h.deps = Dependencies{
		Resolver:   candidate.NewResolver(srv.URL, "docs"),
		Fetcher:    candidateinfra.NewHTTPFetcher(spool),
		Extractor:  h.extractor,
		Repository: h.repo,
		Scheduler:  NewWriteScheduler(WithSleep(h.sleeps.sleep)),
	}
	return h
}

func records(t *testing.T, src string) []json.RawMessage {
	t.Helper()
	recs, err := LoadRecords(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	return recs
}

func TestRunPartialExtractionStillPersists(t *testing.T) {
	h := newHarness(t)
	runner := NewRunner(h.deps, Options{})

	summary, err := runner.Run(context.Background(), records(t, `[{
		"application_id": "APP-1",
		"first_name": "Jean",
		"last_name": "Dupont",
		"documents": [
			{"type": "cv", "path": "jean/cv.pdf"},
			{"type": "diplome", "path": "jean/missing-diploma.pdf"},
			{"type": "photo", "path": "jean/photo.jpg"}
		]
	}]`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 0 || summary.ExitCode() != ExitOK {
		t.Fatalf("summary = %+v", summary)
	}

	got, err := h.repo.FindByApplicationID(context.Background(), "APP-1")
	if err != nil {
		t.Fatal(err)
	}
	if cv, ok := got.Documents.Get(candidate.DocumentCV); !ok || cv != "text:cv.pdf" {
		t.Errorf("cv = %q, %v", cv, ok)
	}
	if _, ok := got.Documents.Get(candidate.DocumentDiploma); ok {
		t.Error("diploma slot should be absent after a failed fetch")
	}
	if got.Documents.Count() != 1 {
		t.Errorf("documents = %d, want 1", got.Documents.Count())
	}
}

func TestProcessRecordReportsDocumentOutcomes(t *testing.T) {
	h := newHarness(t)
	h.extractor.empty = map[string]bool{"letter.pdf": true}
	runner := NewRunner(h.deps, Options{})

	report := runner.ProcessRecord(context.Background(), 1, json.RawMessage(`{
		"first_name": "Awa",
		"last_name": "Ndong",
		"documents": [
			{"type": "cv", "relative_path": "awa/cv.pdf"},
			{"type": "cover_letter", "relative_path": "awa/letter.pdf"},
			{"type": "certificats", "relative_path": "awa/missing.pdf"}
		]
	}`))

	if report.State != StatePersisted || report.StorageID.IsEmpty() {
		t.Fatalf("report = %+v", report)
	}
	got := map[candidate.DocumentKind]DocumentStatus{}
	for _, d := range report.Documents {
		got[d.Kind] = d.Status
	}
	want := map[candidate.DocumentKind]DocumentStatus{
		candidate.DocumentCV:          DocumentExtracted,
		candidate.DocumentCoverLetter: DocumentEmpty,
		candidate.DocumentCertificate: DocumentFetchFailed,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("document outcomes mismatch (-want +got):\n%s", diff)
	}
}

func TestRunWithoutDocumentsStoresEmptySlots(t *testing.T) {
	h := newHarness(t)
	runner := NewRunner(h.deps, Options{})

	summary, err := runner.Run(context.Background(), records(t, `[{"application_id": "APP-2", "first_name": "Paul", "last_name": "Obiang"}]`))
	if err != nil || summary.Succeeded != 1 {
		t.Fatalf("summary = %+v, err = %v", summary, err)
	}
	got, _ := h.repo.FindByApplicationID(context.Background(), "APP-2")
	if got.Documents.Count() != 0 {
		t.Errorf("documents = %d, want 0", got.Documents.Count())
	}
}

func TestRunContinuesPastInvalidRecords(t *testing.T) {
	h := newHarness(t)
	runner := NewRunner(h.deps, Options{})

	summary, err := runner.Run(context.Background(), records(t, `[
		{"application_id": "A1", "first_name": "Jean", "last_name": "Dupont"},
		null,
		"not a record",
		{"application_id": "A2", "first_name": "Marie", "last_name": "Mba"}
	]`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Total != 4 || summary.Succeeded != 2 || summary.Failed != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.ExitCode() != ExitFailures {
		t.Errorf("exit code = %d", summary.ExitCode())
	}
	if summary.SuccessRate() != 50 {
		t.Errorf("success rate = %v", summary.SuccessRate())
	}
	wantIdx := []int{2, 3}
	var gotIdx []int
	for _, f := range summary.Failures {
		gotIdx = append(gotIdx, f.Index)
		if f.Stage != StatePending {
			t.Errorf("record %d failed at %s, want pending", f.Index, f.Stage)
		}
	}
	if diff := cmp.Diff(wantIdx, gotIdx); diff != "" {
		t.Errorf("failed indexes (-want +got):\n%s", diff)
	}
	if n, _ := h.repo.Count(context.Background()); n != 2 {
		t.Errorf("stored = %d, want 2", n)
	}
}

func TestRunIsIdempotentOnApplicationID(t *testing.T) {
	h := newHarness(t)
	runner := NewRunner(h.deps, Options{})
	src := `[
		{"application_id": "A1", "first_name": "Jean", "last_name": "Dupont", "job_title": "Comptable"},
		{"application_id": "A1", "first_name": "Jean", "last_name": "Dupont", "job_title": "Auditeur"},
		{"first_name": "Eve", "last_name": "Nze"},
		{"first_name": "Eve", "last_name": "Nze"}
	]`

	for i := 0; i < 2; i++ {
		if _, err := runner.Run(context.Background(), records(t, src)); err != nil {
			t.Fatal(err)
		}
	}

	if n, _ := h.repo.Count(context.Background()); n != 2 {
		t.Fatalf("stored = %d, want 2", n)
	}
	got, _ := h.repo.FindByApplicationID(context.Background(), "A1")
	if got.Offer.Title != "Auditeur" {
		t.Errorf("title = %q, later record should win", got.Offer.Title)
	}
}

func TestRunSkipExistingCountsDuplicates(t *testing.T) {
	h := newHarness(t)
	seed := candidate.New()
	seed.FirstName, seed.LastName = "Jean", "Dupont"
	if _, err := h.repo.Upsert(context.Background(), seed, "A1"); err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(h.deps, Options{SkipExisting: true})

	summary, err := runner.Run(context.Background(), records(t, `[
		{"application_id": "A1", "first_name": "Jean", "last_name": "Dupont"},
		{"application_id": "A2", "first_name": "Marie", "last_name": "Mba"}
	]`))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Duplicates != 1 || summary.Succeeded != 1 || summary.ExitCode() != ExitOK {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRunRetriesThrottledUpserts(t *testing.T) {
	h := newHarness(t)
	repo := &throttlingRepo{MemoryRepository: h.repo, throttles: 2}
	h.deps.Repository = repo
	runner := NewRunner(h.deps, Options{})

	summary, err := runner.Run(context.Background(), records(t, `[{"application_id": "A1", "first_name": "Jean", "last_name": "Dupont"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded != 1 || summary.Retried != 2 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRunFailsRecordWhenThrottlingPersists(t *testing.T) {
	h := newHarness(t)
	h.deps.Repository = &throttlingRepo{MemoryRepository: h.repo, throttles: 10}
	runner := NewRunner(h.deps, Options{})

	summary, _ := runner.Run(context.Background(), records(t, `[{"application_id": "A1", "first_name": "Jean", "last_name": "Dupont"}]`))
	if summary.Failed != 1 || summary.Retried != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Failures[0].Stage != StateDocumentsExtracted {
		t.Errorf("stage = %s", summary.Failures[0].Stage)
	}
}

func TestRunInterruptedBeforeStart(t *testing.T) {
	h := newHarness(t)
	runner := NewRunner(h.deps, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := runner.Run(ctx, records(t, `[{"first_name": "Jean", "last_name": "Dupont"}]`))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
	if !summary.Interrupted || summary.Processed() != 0 || summary.ExitCode() != ExitInterrupted {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRunAbandonsInFlightRecordOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := 0
	var mu sync.Mutex
	h.extractor.hook = func() {
		mu.Lock()
		defer mu.Unlock()
		seen++
		if seen == 2 {
			cancel()
		}
	}
	runner := NewRunner(h.deps, Options{})

	summary, err := runner.Run(ctx, records(t, `[
		{"application_id": "A1", "first_name": "Jean", "last_name": "Dupont", "documents": [{"type": "cv", "path": "a/cv.pdf"}]},
		{"application_id": "A2", "first_name": "Marie", "last_name": "Mba", "documents": [{"type": "cv", "path": "b/cv.pdf"}]},
		{"application_id": "A3", "first_name": "Eve", "last_name": "Nze"}
	]`))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 0 || summary.ExitCode() != ExitInterrupted {
		t.Fatalf("summary = %+v", summary)
	}
	if exists, _ := h.repo.ExistsByApplicationID(context.Background(), "A2"); exists {
		t.Error("abandoned record was persisted")
	}
}

func TestRunEmbedsCVWhenVectorsConfigured(t *testing.T) {
	h := newHarness(t)
	emb := &recordingEmbedder{}
	h.deps.Embedder = emb
	h.deps.Vectors = h.repo
	runner := NewRunner(h.deps, Options{})

	_, err := runner.Run(context.Background(), records(t, `[
		{"application_id": "A1", "first_name": "Jean", "last_name": "Dupont", "documents": [{"type": "cv", "path": "a/cv.pdf"}]},
		{"application_id": "A2", "first_name": "Marie", "last_name": "Mba"}
	]`))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"text:cv.pdf"}, emb.texts); diff != "" {
		t.Errorf("embedded texts (-want +got):\n%s", diff)
	}
}

package migration

import (
	"context"
	"fmt"
	"io"

	"github.com/Abraxas-365/applyflow/pkg/logx"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
	"github.com/jedib0t/go-pretty/v6/table"
)

// maxLoggedErrors caps how many individual insert failures are logged.
const maxLoggedErrors = 3

// ImportStats are the counters of a bulk import.
type ImportStats struct {
	Total       int  `json:"total"`
	Imported    int  `json:"imported"`
	Duplicates  int  `json:"duplicates"`
	Errors      int  `json:"errors"`
	Retries     int  `json:"retries"`
	Interrupted bool `json:"interrupted"`
}

func (s *ImportStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Imported+s.Duplicates) / float64(s.Total) * 100
}

func (s *ImportStats) ExitCode() int {
	switch {
	case s.Interrupted:
		return ExitInterrupted
	case s.Errors > 0:
		return ExitFailures
	default:
		return ExitOK
	}
}

// Importer copies an export into the store document by document, with
// pacing between inserts and throttle-aware retries.
type Importer struct {
	repo      candidate.Repository
	scheduler *WriteScheduler
}

func NewImporter(repo candidate.Repository, scheduler *WriteScheduler) *Importer {
	if scheduler == nil {
		scheduler = NewWriteScheduler()
	}
	return &Importer{repo: repo, scheduler: scheduler}
}

// Import inserts every document of a JSON Lines export. Existing documents
// count as duplicates; undecodable lines count as errors.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*ImportStats, error) {
	lines, err := ReadExport(r)
	if err != nil {
		return nil, err
	}

	stats := &ImportStats{Total: len(lines)}
	if existing, err := im.repo.Count(ctx); err == nil && existing > 0 {
		logx.Infof("%d documents already stored, duplicates will be skipped", existing)
	}
	logx.Infof("Importing %d documents", stats.Total)

	interval := stats.Total / 20
	if interval < 1 {
		interval = 1
	}

	for i, line := range lines {
		n := i + 1
		if line.Err != nil {
			stats.Errors++
			im.logError(stats, "line %d: %v", line.Number, line.Err)
		} else {
			if err := im.scheduler.Pace(ctx); err != nil {
				stats.Interrupted = true
				break
			}
			out := im.scheduler.Write(ctx, "insert", func(ctx context.Context) error {
				return im.repo.InsertRaw(ctx, line.Doc)
			})
			stats.Retries += out.Retries

			switch out.Status {
			case WriteWritten:
				stats.Imported++
			case WriteDuplicate:
				stats.Duplicates++
			default:
				if ctx.Err() != nil {
					stats.Interrupted = true
				} else {
					stats.Errors++
					im.logError(stats, "document %d: %v", n, out.Err)
				}
			}
			if stats.Interrupted {
				break
			}
		}

		if n%interval == 0 || n == stats.Total {
			logx.Infof("Progress: %d/%d (%.1f%%) imported=%d duplicates=%d errors=%d",
				n, stats.Total, float64(n)/float64(stats.Total)*100, stats.Imported, stats.Duplicates, stats.Errors)
		}
	}

	if stats.Interrupted {
		return stats, context.Cause(ctx)
	}
	return stats, nil
}

func (im *Importer) logError(stats *ImportStats, format string, args ...any) {
	if stats.Errors <= maxLoggedErrors {
		logx.Errorf("Import failed for "+format, args...)
	}
}

// Verification compares the store with what was expected after an import.
type Verification struct {
	Stored   int64
	Expected int
	Sample   []candidate.Candidate
}

// Complete reports whether every expected document is stored.
func (v *Verification) Complete() bool { return v.Stored >= int64(v.Expected) }

// Verify counts stored documents and fetches a small sample.
func (im *Importer) Verify(ctx context.Context, expected int) (*Verification, error) {
	stored, err := im.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	v := &Verification{Stored: stored, Expected: expected}
	if stored > 0 {
		sample, err := im.repo.Sample(ctx, 5)
		if err != nil {
			logx.Warnf("Could not fetch sample documents: %v", err)
		}
		v.Sample = sample
	}
	return v, nil
}

// RenderImport writes the end-of-import report.
func RenderImport(w io.Writer, stats *ImportStats, v *Verification) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Import summary")
	t.AppendRows([]table.Row{
		{"Documents read", stats.Total},
		{"Imported", stats.Imported},
		{"Duplicates skipped", stats.Duplicates},
		{"Errors", stats.Errors},
		{"Throttle retries", stats.Retries},
		{"Success rate", fmt.Sprintf("%.1f%%", stats.SuccessRate())},
	})
	if v != nil {
		t.AppendFooter(table.Row{"Stored", fmt.Sprintf("%d/%d", v.Stored, v.Expected)})
	}
	t.Render()

	if v == nil {
		return
	}
	for i, c := range v.Sample {
		fmt.Fprintf(w, "  %d. %s (%s)\n", i+1, c.GetFullName(), c.Offer.Title)
	}
	switch {
	case v.Complete():
		fmt.Fprintln(w, "Import complete")
	case v.Stored > 0:
		fmt.Fprintf(w, "Partial import (%d/%d)\n", v.Stored, v.Expected)
	default:
		fmt.Fprintln(w, "Import failed: store is empty")
	}
}

package migration

import (
	"fmt"
	"io"
	"time"

	"github.com/Abraxas-365/applyflow/pkg/kernel"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailures    = 1
	ExitInterrupted = 130
)

// RecordFailure describes a record that did not reach the store.
type RecordFailure struct {
	Index int         `json:"index"`
	Key   string      `json:"key,omitempty"`
	Stage RecordState `json:"stage"`
	Error string      `json:"error"`
}

// Summary aggregates a run. Duplicates are non-failures: records skipped
// because they were already stored, or writes that hit an existing key.
type Summary struct {
	RunID       kernel.RunID    `json:"run_id"`
	Total       int             `json:"total"`
	Succeeded   int             `json:"succeeded"`
	Duplicates  int             `json:"duplicates"`
	Failed      int             `json:"failed"`
	Retried     int             `json:"retried"`
	Interrupted bool            `json:"interrupted"`
	StartedAt   time.Time       `json:"started_at"`
	Duration    time.Duration   `json:"duration"`
	Failures    []RecordFailure `json:"failures,omitempty"`
}

func newSummary(total int) *Summary {
	return &Summary{
		RunID:     kernel.NewRunID(uuid.NewString()),
		Total:     total,
		StartedAt: time.Now(),
	}
}

// Processed is the number of records that reached a final outcome.
func (s *Summary) Processed() int { return s.Succeeded + s.Duplicates + s.Failed }

// SuccessRate is the percentage of processed records that did not fail.
func (s *Summary) SuccessRate() float64 {
	p := s.Processed()
	if p == 0 {
		return 0
	}
	return float64(s.Succeeded+s.Duplicates) / float64(p) * 100
}

// ExitCode maps the run to a process status: 130 when interrupted, 1 when
// any record failed, 0 otherwise.
func (s *Summary) ExitCode() int {
	switch {
	case s.Interrupted:
		return ExitInterrupted
	case s.Failed > 0:
		return ExitFailures
	default:
		return ExitOK
	}
}

func (s *Summary) add(r RecordReport) {
	s.Retried += r.Retries
	switch r.State {
	case StatePersisted:
		if r.Duplicate {
			s.Duplicates++
		} else {
			s.Succeeded++
		}
	case StateSkipped:
		s.Duplicates++
	case StateFailed:
		s.Failed++
		f := RecordFailure{Index: r.Index, Key: r.Key, Stage: r.FailedAt}
		if r.Err != nil {
			f.Error = r.Err.Error()
		}
		s.Failures = append(s.Failures, f)
	}
}

func (s *Summary) finish() {
	s.Duration = time.Since(s.StartedAt)
}

// Render writes the end-of-run report.
func (s *Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Run %s", s.RunID)
	t.AppendRows([]table.Row{
		{"Records in source", s.Total},
		{"Processed", s.Processed()},
		{"Succeeded", s.Succeeded},
		{"Duplicates / skipped", s.Duplicates},
		{"Failed", s.Failed},
		{"Throttle retries", s.Retried},
		{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate())},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()

	if s.Interrupted {
		fmt.Fprintf(w, "Run interrupted after %d of %d records\n", s.Processed(), s.Total)
	}

	if len(s.Failures) == 0 {
		return
	}
	ft := table.NewWriter()
	ft.SetOutputMirror(w)
	ft.SetStyle(table.StyleLight)
	ft.SetTitle("Failed records")
	ft.AppendHeader(table.Row{"#", "Key", "Stage", "Error"})
	for _, f := range s.Failures {
		ft.AppendRow(table.Row{f.Index, f.Key, f.Stage, f.Error})
	}
	ft.SetColumnConfigs([]table.ColumnConfig{{Number: 4, WidthMax: 80}})
	ft.Render()
}

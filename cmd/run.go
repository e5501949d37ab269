package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/Abraxas-365/applyflow/pkg/config"
	"github.com/Abraxas-365/applyflow/pkg/logx"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/migration"
	"github.com/spf13/cobra"
)

var runFlags struct {
	concurrency int
	noSkip      bool
	keepTemp    bool
	report      string
}

var runCmd = &cobra.Command{
	Use:   "run [store-url] [source-file]",
	Short: "Enrich source records with document text and upsert them",
	Long: `Processes every record of the source file in order: normalizes it, resolves
its documents, downloads and extracts each one, then upserts the record by
application id. Failed documents leave their slot empty; failed records are
reported and the run continues.

Exit status is 0 when every record succeeded, 1 when any failed and 130 when
the run was interrupted.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runPipeline,
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&runFlags.concurrency, "concurrency", 0, "Documents processed in parallel per record (default DOCUMENT_CONCURRENCY)")
	f.BoolVar(&runFlags.noSkip, "no-skip-existing", false, "Reprocess records whose application id is already stored")
	f.BoolVar(&runFlags.keepTemp, "keep-temp", false, "Keep downloaded documents in TEMP_FOLDER")
	f.StringVar(&runFlags.report, "report", "", "Write the run summary as JSON to this path")
}

func applyStoreArgs(cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.Store.URL = args[0]
	}
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	applyStoreArgs(cfg, args)
	if len(args) > 1 {
		cfg.Pipeline.SourceFile = args[1]
	}
	if runFlags.concurrency > 0 {
		cfg.Pipeline.DocumentConcurrency = runFlags.concurrency
	}
	if runFlags.noSkip {
		cfg.Pipeline.SkipExisting = false
	}
	if runFlags.keepTemp {
		cfg.Pipeline.KeepTempFiles = true
	}
	if err := cfg.Validate(config.ModeRun); err != nil {
		return &exitError{code: migration.ExitFailures, err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := migration.LoadRecordsFile(cfg.Pipeline.SourceFile)
	if err != nil {
		return &exitError{code: migration.ExitFailures, err: err}
	}
	logx.Infof("Loaded %d records from %s", len(records), cfg.Pipeline.SourceFile)

	container, err := NewContainer(ctx, cfg)
	if err != nil {
		return &exitError{code: migration.ExitFailures, err: err}
	}
	defer container.Close()

	runner, err := container.Runner(ctx)
	if err != nil {
		return &exitError{code: migration.ExitFailures, err: err}
	}

	summary, err := runner.Run(ctx, records)
	if err != nil && !errors.Is(err, context.Canceled) {
		logx.Errorf("Run stopped: %v", err)
	}
	summary.Render(cmd.OutOrStdout())

	if runFlags.report != "" {
		if err := writeReport(runFlags.report, summary); err != nil {
			logx.Warnf("Could not write report: %v", err)
		}
	}

	if code := summary.ExitCode(); code != migration.ExitOK {
		return &exitError{code: code}
	}
	return nil
}

func writeReport(path string, summary *migration.Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

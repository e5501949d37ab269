package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/Abraxas-365/applyflow/pkg/config"
	"github.com/Abraxas-365/applyflow/pkg/logx"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/migration"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [store-url] <export.jsonl>",
	Short: "Bulk insert an export of already enriched documents",
	Long: `Inserts every document of a JSON Lines export (MongoDB extended JSON) as-is.
Documents already present are counted as duplicates. Writes are paced and
retried when the store signals throttling. The stored count is verified at
the end.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	source := args[len(args)-1]
	if len(args) == 2 {
		applyStoreArgs(cfg, args)
	}
	if err := cfg.Validate(config.ModeImport); err != nil {
		return &exitError{code: migration.ExitFailures, err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(source)
	if err != nil {
		return &exitError{
			code: migration.ExitFailures,
			err:  candidate.ErrRegistry.NewWithCause(candidate.CodeSourceInvalid, err).WithDetail("path", source),
		}
	}
	defer f.Close()

	container, err := NewContainer(ctx, cfg)
	if err != nil {
		return &exitError{code: migration.ExitFailures, err: err}
	}
	defer container.Close()

	importer := container.Importer()
	stats, err := importer.Import(ctx, f)
	if stats == nil {
		return &exitError{code: migration.ExitFailures, err: err}
	}
	if err != nil {
		logx.Warnf("Import stopped: %v", err)
	}

	var verification *migration.Verification
	if !stats.Interrupted {
		verification, err = importer.Verify(ctx, stats.Total-stats.Errors)
		if err != nil {
			logx.Warnf("Verification failed: %v", err)
		}
	}
	migration.RenderImport(cmd.OutOrStdout(), stats, verification)

	if code := stats.ExitCode(); code != migration.ExitOK {
		return &exitError{code: code}
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/Abraxas-365/applyflow/pkg/config"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/migration"
	"github.com/spf13/cobra"
)

var countFlags struct {
	sample int
}

var countCmd = &cobra.Command{
	Use:   "count [store-url]",
	Short: "Print the number of stored records",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCount,
}

func init() {
	countCmd.Flags().IntVar(&countFlags.sample, "sample", 0, "Also list up to N stored records")
}

func runCount(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	applyStoreArgs(cfg, args)
	if err := cfg.Validate(config.ModeServe); err != nil {
		return &exitError{code: migration.ExitFailures, err: err}
	}

	ctx := cmd.Context()
	container, err := NewContainer(ctx, cfg)
	if err != nil {
		return &exitError{code: migration.ExitFailures, err: err}
	}
	defer container.Close()

	n, err := container.Repository.Count(ctx)
	if err != nil {
		return &exitError{code: migration.ExitFailures, err: err}
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d records in %s/%s\n", n, cfg.Store.Database, cfg.Store.Collection)

	if countFlags.sample > 0 && n > 0 {
		sample, err := container.Repository.Sample(ctx, countFlags.sample)
		if err != nil {
			return &exitError{code: migration.ExitFailures, err: err}
		}
		for i, c := range sample {
			fmt.Fprintf(out, "  %d. %s (%s) documents=%d\n", i+1, c.GetFullName(), c.Key(), c.Documents.Count())
		}
	}
	return nil
}

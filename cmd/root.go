package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Abraxas-365/applyflow/pkg/config"
	"github.com/Abraxas-365/applyflow/pkg/logx"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/migration"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "applyflow",
	Short: "Enrich job-application records with document text and load them into a store",
	Long: "applyflow reads application records, downloads their attached documents,\n" +
		"extracts their text and upserts the enriched records into a document store.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cfg := loadConfig()
		level, format := cfg.Log.Level, cfg.Log.Format
		if cmd.Flags().Changed("log-level") {
			level = rootFlags.logLevel
		}
		if cmd.Flags().Changed("log-format") {
			format = rootFlags.logFormat
		}
		logx.SetLevel(logx.ParseLevel(level))
		logx.SetFormat(format)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "console", "Log format: console or json")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.Version = version
}

var appConfig *config.Config

func loadConfig() *config.Config {
	if appConfig == nil {
		appConfig = config.Load()
	}
	return appConfig
}

// exitError carries a process status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	defer logx.Sync()

	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			logx.Error(ee.err)
		}
		logx.Sync()
		os.Exit(ee.code)
	}
	logx.Errorf("Fatal error: %v", err)
	logx.Sync()
	os.Exit(migration.ExitFailures)
}

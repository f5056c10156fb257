package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	jsonOutput bool
	verbose    bool
	cfgFile    string
)

// rootCmd is the base command when cass-memory is called without a
// subcommand.
var rootCmd = &cobra.Command{
	Use:   "cass-memory",
	Short: "Local knowledge-curation engine for AI coding assistants",
	Long: `cass-memory turns an agent's session history into a curated,
self-pruning playbook of workflow rules and anti-patterns.

Core commands:
  reflect   Process new sessions into proposed playbook changes
  context   Assemble relevant playbook context for a task
  feedback  Record a helpful/harmful signal against a bullet
  trauma    Check a command against banned patterns
  playbook  Inspect the current playbook
  history   Search session history via the external indexer`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose || envTruthy("CASS_MEMORY_VERBOSE") {
			level = zerolog.DebugLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
			Level(level).
			With().Timestamp().Logger()
	},
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON envelopes")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "repo .cass directory (default: ./.cass)")
}

func envTruthy(name string) bool {
	v := os.Getenv(name)
	return v == "1" || v == "true" || v == "TRUE"
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cass-memory/cass-memory/internal/safety"
)

var traumaCmd = &cobra.Command{
	Use:   "trauma",
	Short: "Inspect and enforce banned commands",
}

var traumaCheckCmd = &cobra.Command{
	Use:   "check <command>",
	Short: "Check a command against active trauma patterns",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTraumaCheck,
}

func init() {
	traumaCmd.AddCommand(traumaCheckCmd)
	rootCmd.AddCommand(traumaCmd)
}

func runTraumaCheck(cmd *cobra.Command, args []string) error {
	command := joinArgs(args)

	cfg, err := loadConfig()
	if err != nil {
		return emit(cmd, "trauma check", nil, err)
	}

	globalEntries, err := globalStore(cfg).LoadTrauma()
	if err != nil {
		return emit(cmd, "trauma check", nil, err)
	}
	merged := globalEntries
	if rs := repoStore(cfg); rs != nil {
		repoTrauma, err := rs.LoadTrauma()
		if err != nil {
			return emit(cmd, "trauma check", nil, err)
		}
		merged = safety.Merge(globalEntries, repoTrauma)
	}

	decision := safety.Check(command, merged)

	if !jsonOutput {
		if decision.Denied {
			fmt.Printf("DENIED: %s\n", decision.Reason)
			os.Exit(1)
		}
		fmt.Println("allowed")
		return nil
	}
	return emit(cmd, "trauma check", decision, nil)
}

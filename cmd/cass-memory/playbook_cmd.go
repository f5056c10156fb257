package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cass-memory/cass-memory/internal/formatter"
	"github.com/cass-memory/cass-memory/internal/scoring"
	"github.com/cass-memory/cass-memory/internal/storage"
)

var playbookCmd = &cobra.Command{
	Use:   "playbook",
	Short: "Inspect the current playbook",
}

var playbookShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the merged global+repo playbook with effective scores",
	RunE:  runPlaybookShow,
}

func init() {
	playbookCmd.AddCommand(playbookShowCmd)
	rootCmd.AddCommand(playbookCmd)
}

func runPlaybookShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return emit(cmd, "playbook show", nil, err)
	}

	playbook, err := storage.MergedPlaybook(globalStore(cfg), repoStore(cfg))
	if err != nil {
		return emit(cmd, "playbook show", nil, err)
	}

	now := time.Now().UTC()
	params := scoringParams(cfg)

	if !jsonOutput {
		table := formatter.NewTable(os.Stdout, "ID", "MATURITY", "SCORE", "CONTENT")
		table.SetMaxWidth(3, 100)
		for _, b := range playbook.Bullets {
			score := scoring.EffectiveScore(&b, now, params)
			table.AddRow(b.ID[:min(8, len(b.ID))], string(b.Maturity), formatScore(score), b.Content)
		}
		return table.Render()
	}
	return emit(cmd, "playbook show", playbook, nil)
}

func formatScore(score float64) string {
	return fmt.Sprintf("%.2f", score)
}

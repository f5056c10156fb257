package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	assembler "github.com/cass-memory/cass-memory/internal/context"
	"github.com/cass-memory/cass-memory/internal/history"
	"github.com/cass-memory/cass-memory/internal/storage"
)

var contextCmd = &cobra.Command{
	Use:   "context <task description>",
	Short: "Assemble relevant playbook bullets, anti-patterns, and history for a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)
}

// historyAdapter adapts internal/history.Adapter to the narrow
// assembler.HistorySearcher seam, converting hits to plain snippet text.
type historyAdapter struct {
	a *history.Adapter
}

func (h historyAdapter) SafeSearch(query string, limit int) ([]string, error) {
	hits, err := h.a.SafeSearch(context.Background(), query, history.Options{Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(hits))
	for _, hit := range hits {
		out = append(out, hit.Snippet)
	}
	return out, nil
}

// localSearcher adapts internal/history.LocalFallbackSearch to the
// assembler.HistorySearcher seam, used when the cass binary isn't on PATH.
type localSearcher struct {
	diaryDir string
}

func (l localSearcher) SafeSearch(query string, limit int) ([]string, error) {
	hits, err := history.LocalFallbackSearch(l.diaryDir, query, limit)
	if err != nil {
		return nil, nil // degrade silently, matching SafeSearch's contract
	}
	out := make([]string, 0, len(hits))
	for _, hit := range hits {
		out = append(out, hit.SourcePath)
	}
	return out, nil
}

func runContext(cmd *cobra.Command, args []string) error {
	task := joinArgs(args)

	cfg, err := loadConfig()
	if err != nil {
		return emit(cmd, "context", nil, err)
	}

	playbook, err := storage.MergedPlaybook(globalStore(cfg), repoStore(cfg))
	if err != nil {
		playbook = nil // degrade silently per spec.md OQ3
	}

	var searcher assembler.HistorySearcher
	if history.Available(cfg.CassPath) {
		searcher = historyAdapter{a: history.New(cfg.CassPath)}
	} else {
		searcher = localSearcher{diaryDir: filepath.Join(globalStore(cfg).Dir, storage.DiaryDir)}
	}

	bundle := assembler.Assemble(task, playbook, searcher, time.Now().UTC(), assembler.Params{
		Scoring:    scoringParams(cfg),
		MaxBullets: cfg.MaxBulletsInContext,
		MaxHistory: cfg.MaxHistoryInContext,
	})

	if !jsonOutput {
		printBundle(bundle)
		return nil
	}
	return emit(cmd, "context", bundle, nil)
}

func printBundle(b assembler.Bundle) {
	fmt.Printf("Context for: %s\n", b.Task)
	if len(b.RelevantBullets) > 0 {
		fmt.Println("\nRelevant rules:")
		for _, bullet := range b.RelevantBullets {
			fmt.Printf("  - %s\n", bullet.Content)
		}
	}
	if len(b.AntiPatterns) > 0 {
		fmt.Println("\nAvoid:")
		for _, bullet := range b.AntiPatterns {
			fmt.Printf("  - %s\n", bullet.Content)
		}
	}
	if len(b.DeprecatedWarnings) > 0 {
		fmt.Println("\nDeprecated (no longer trusted):")
		for _, w := range b.DeprecatedWarnings {
			fmt.Printf("  - %s\n", w)
		}
	}
	if len(b.HistorySnippets) > 0 {
		fmt.Println("\nRelated history:")
		for _, s := range b.HistorySnippets {
			fmt.Printf("  - %s\n", s)
		}
	}
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

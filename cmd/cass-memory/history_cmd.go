package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cass-memory/cass-memory/internal/formatter"
	"github.com/cass-memory/cass-memory/internal/history"
	"github.com/cass-memory/cass-memory/internal/parser"
	"github.com/cass-memory/cass-memory/internal/provenance"
	"github.com/cass-memory/cass-memory/internal/storage"
	"github.com/cass-memory/cass-memory/internal/taxonomy"
	"github.com/cass-memory/cass-memory/internal/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Search session history via the external cass indexer",
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed session history",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistorySearch,
}

var historyMineCmd = &cobra.Command{
	Use:   "mine <transcript.jsonl>",
	Short: "Scan a raw session transcript for candidate knowledge (decisions, solutions, learnings, failures)",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryMine,
}

func init() {
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyMineCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	query := joinArgs(args)

	cfg, err := loadConfig()
	if err != nil {
		return emit(cmd, "history search", nil, err)
	}

	var hits []history.Hit
	if history.Available(cfg.CassPath) {
		adapter := history.New(cfg.CassPath)
		hits, err = adapter.Search(context.Background(), query, history.Options{
			Limit:        cfg.MaxHistoryInContext,
			LookbackDays: cfg.SessionLookbackDays,
		})
		if err != nil {
			return emit(cmd, "history search", nil, err)
		}
	} else {
		// cass binary unavailable: degrade to the local diary index rather
		// than failing the caller outright (spec.md §4.7).
		diaryDir := filepath.Join(globalStore(cfg).Dir, storage.DiaryDir)
		hits, err = history.LocalFallbackSearch(diaryDir, query, cfg.MaxHistoryInContext)
		if err != nil {
			return emit(cmd, "history search", nil, err)
		}
	}

	if !jsonOutput {
		table := formatter.NewTable(os.Stdout, "SESSION", "SCORE", "SNIPPET")
		table.SetMaxWidth(0, 40)
		table.SetMaxWidth(2, 80)
		for _, h := range hits {
			table.AddRow(h.SourcePath, formatScore(h.Score), h.Snippet)
		}
		return table.Render()
	}
	return emit(cmd, "history search", hits, nil)
}

// minedCandidate is one knowledge extraction surfaced from a raw transcript,
// for a human (or a future reflect pass) to turn into a diary entry. Tier
// and HumanGate follow the taxonomy package's quality rubric, applied to the
// extractor's raw pattern-match score.
type minedCandidate struct {
	Type      string  `json:"type"`
	Score     float64 `json:"score"`
	Tier      string  `json:"tier"`
	HumanGate bool    `json:"humanGate"`
	Snippet   string  `json:"snippet"`
}

func runHistoryMine(cmd *cobra.Command, args []string) error {
	path := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return emit(cmd, "history mine", nil, err)
	}

	p := parser.NewParser()
	result, err := p.ParseFile(path)
	if err != nil {
		return emit(cmd, "history mine", nil, err)
	}

	graph, err := provenance.NewGraph(filepath.Join(globalStore(cfg).Dir, "provenance.jsonl"))
	if err != nil {
		return emit(cmd, "history mine", nil, err)
	}

	extractor := parser.NewExtractor()
	var candidates []minedCandidate
	for _, msg := range result.Messages {
		best := extractor.ExtractBest(msg)
		if best == nil {
			continue
		}
		kt := best.Type
		// Blend the extractor's pattern-match confidence with the knowledge
		// type's base score, then bucket into a quality tier.
		composite := (best.Score + taxonomy.GetBaseScore(kt)) / 2
		if composite > 1 {
			composite = 1
		}
		tier := taxonomy.AssignTier(composite, taxonomy.DefaultTierConfigs)

		candidates = append(candidates, minedCandidate{
			Type:      string(kt),
			Score:     composite,
			Tier:      string(tier),
			HumanGate: taxonomy.RequiresHumanGate(tier, taxonomy.DefaultTierConfigs),
			Snippet:   msg.Content[best.StartIndex:min(best.EndIndex, len(msg.Content))],
		})

		if tier != types.TierDiscard {
			_ = graph.Append(provenance.Record{
				ID:           uuid.NewString(),
				ArtifactPath: path,
				ArtifactType: "mined_candidate",
				SourcePath:   path,
				SourceType:   "transcript",
				SessionID:    msg.SessionID,
				CreatedAt:    time.Now().UTC(),
				Metadata: map[string]interface{}{
					"knowledgeType": string(kt),
					"tier":          string(tier),
				},
			})
		}
	}

	if !jsonOutput {
		table := formatter.NewTable(os.Stdout, "TYPE", "TIER", "SCORE", "SNIPPET")
		table.SetMaxWidth(3, 100)
		for _, c := range candidates {
			table.AddRow(c.Type, c.Tier, formatScore(c.Score), c.Snippet)
		}
		return table.Render()
	}
	return emit(cmd, "history mine", candidates, nil)
}

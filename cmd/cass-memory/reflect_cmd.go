package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cass-memory/cass-memory/internal/config"
	"github.com/cass-memory/cass-memory/internal/curate"
	"github.com/cass-memory/cass-memory/internal/history"
	"github.com/cass-memory/cass-memory/internal/oracle"
	"github.com/cass-memory/cass-memory/internal/reflect"
	"github.com/cass-memory/cass-memory/internal/storage"
	"github.com/cass-memory/cass-memory/internal/types"
	"github.com/cass-memory/cass-memory/internal/validate"
)

// verdictSchema is the JSON schema handed to the oracle for a per-delta
// validation review (spec.md §4.5 normalizeValidatorVerdict).
var verdictSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "verdict": {"type": "string", "enum": ["ACCEPT", "REFINE", "REJECT"]},
    "confidence": {"type": "number"}
  },
  "required": ["verdict", "confidence"]
}`)

type verdictResponse struct {
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
}

var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Process new session diary entries into proposed playbook changes",
	RunE:  runReflect,
}

func init() {
	rootCmd.AddCommand(reflectCmd)
}

// localHistoryTool adapts history.LocalFallbackSearch to validate.HistoryTool
// for invocations where the cass binary isn't on PATH.
type localHistoryTool struct {
	diaryDir string
}

func (l localHistoryTool) SafeSearch(ctx context.Context, query string, opts history.Options) ([]history.Hit, error) {
	return history.LocalFallbackSearch(l.diaryDir, query, opts.Limit)
}

func historyToolFor(cfg *config.Config) validate.HistoryTool {
	if history.Available(cfg.CassPath) {
		return history.New(cfg.CassPath)
	}
	return localHistoryTool{diaryDir: filepath.Join(globalStore(cfg).Dir, storage.DiaryDir)}
}

func runReflect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return emit(cmd, "reflect", nil, err)
	}

	store := globalStore(cfg)

	var pending []types.DiaryEntry
	entries, err := store.ListDiaryEntries()
	if err != nil {
		return emit(cmd, "reflect", nil, err)
	}
	for _, e := range entries {
		processed, err := store.IsProcessed(e.SessionPath)
		if err != nil {
			return emit(cmd, "reflect", nil, err)
		}
		if !processed {
			pending = append(pending, e)
		}
	}

	if len(pending) == 0 {
		log.Debug().Msg("no unprocessed sessions found")
		return emit(cmd, "reflect", types.ReflectionResult{}, nil)
	}

	// A playbook snapshot is needed to render the reflection prompt; it
	// doesn't have to be the authoritative copy the write applies against
	// (that copy is reloaded fresh inside the lock below).
	snapshot, err := store.LoadPlaybook()
	if err != nil {
		return emit(cmd, "reflect", nil, err)
	}

	ctx := context.Background()
	extractor := extractorFor(cfg)
	result := reflect.Run(ctx, extractor, snapshot, pending, nil, cfg.MaxReflectorIterations)

	historyTool := historyToolFor(cfg)
	validDeltas, skippedByValidation := validateDeltas(ctx, extractor, result.Deltas, historyTool)

	now := time.Now().UTC()
	params := curate.Params{
		Scoring:               scoringParams(cfg),
		PruneHarmfulThreshold: cfg.PruneHarmfulThreshold,
	}

	var curation types.CurationResult
	_, err = store.MutatePlaybook(func(pb *types.Playbook) error {
		curation = curate.Apply(*pb, validDeltas, now, params)
		curate.ApplyMaturityTransitions(&curation.Playbook, now, params)
		*pb = curation.Playbook
		return nil
	})
	if err != nil {
		return emit(cmd, "reflect", nil, err)
	}
	curation.Skipped += skippedByValidation

	for _, e := range pending {
		diaryID := e.ID
		if diaryID == "" {
			diaryID = uuid.NewString()
		}
		if err := store.AppendProcessed(&types.ProcessedSession{
			SessionPath:     e.SessionPath,
			ProcessedAt:     now,
			DiaryID:         diaryID,
			DeltasGenerated: len(validDeltas),
		}); err != nil {
			return emit(cmd, "reflect", nil, err)
		}
	}

	if !jsonOutput {
		fmt.Printf("reflected over %d session(s): %d applied, %d skipped, %d inversion(s)\n",
			len(pending), curation.Applied, curation.Skipped, len(curation.Inversions))
		if result.OracleError != nil {
			fmt.Printf("oracle unavailable, no new deltas proposed: %v\n", result.OracleError)
		}
		return nil
	}
	return emit(cmd, "reflect", curation, nil)
}

// validateDeltas runs the evidence-count gate (spec.md §4.5) against every
// "add" delta's proposed content, then asks the oracle for an ACCEPT/
// REFINE/REJECT verdict on the survivors. Non-add deltas (replace/merge/
// feedback/deprecate) don't name new rule content to evidence-check, so
// they pass through unchanged. Either gate failing, or the oracle being
// unavailable, is never fatal — an oracle error just skips that delta's
// verdict check rather than the whole run.
func validateDeltas(ctx context.Context, extractor oracle.Extractor, deltas []types.PlaybookDelta, tool validate.HistoryTool) ([]types.PlaybookDelta, int) {
	var kept []types.PlaybookDelta
	skipped := 0
	for _, d := range deltas {
		if d.Type != types.DeltaAdd || d.Bullet == nil {
			kept = append(kept, d)
			continue
		}
		gate := validate.EvidenceCountGate(ctx, d.Bullet.Content, tool)
		if !gate.Passed {
			log.Debug().Str("content", d.Bullet.Content).Str("reason", gate.Reason).Msg("delta rejected by evidence gate")
			skipped++
			continue
		}
		if verdict, ok := oracleVerdict(ctx, extractor, d.Bullet.Content); ok && verdict == validate.VerdictInvalid {
			log.Debug().Str("content", d.Bullet.Content).Msg("delta rejected by oracle verdict")
			skipped++
			continue
		}
		kept = append(kept, d)
	}
	return kept, skipped
}

// oracleVerdict asks the oracle to review one proposed bullet's content and
// normalizes its verdict. The second return is false when no verdict could
// be obtained at all (oracle unavailable or malformed response), in which
// case the caller should fall back to the evidence gate's own decision.
func oracleVerdict(ctx context.Context, extractor oracle.Extractor, content string) (validate.Verdict, bool) {
	prompt := "Review this proposed playbook rule and decide ACCEPT, REFINE, or REJECT:\n" + content
	res, err := extractor.Extract(ctx, oracle.ExtractRequest{Schema: verdictSchema, Prompt: prompt})
	if err != nil {
		return "", false
	}
	var resp verdictResponse
	if err := json.Unmarshal(res.Object, &resp); err != nil {
		return "", false
	}
	verdict, _ := validate.NormalizeValidatorVerdict(resp.Verdict, resp.Confidence)
	return verdict, true
}

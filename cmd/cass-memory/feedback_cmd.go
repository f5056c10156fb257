package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cass-memory/cass-memory/internal/curate"
	"github.com/cass-memory/cass-memory/internal/types"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <bulletId> <helpful|harmful>",
	Short: "Record a helpful or harmful feedback signal against a bullet",
	Args:  cobra.ExactArgs(2),
	RunE:  runFeedback,
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
}

func runFeedback(cmd *cobra.Command, args []string) error {
	bulletID, kind := args[0], args[1]

	var deltaType types.DeltaType
	switch kind {
	case "helpful":
		deltaType = types.DeltaHelpful
	case "harmful":
		deltaType = types.DeltaHarmful
	default:
		return emit(cmd, "feedback", nil, types.ErrValidation("feedback kind must be 'helpful' or 'harmful', got "+kind, nil))
	}

	cfg, err := loadConfig()
	if err != nil {
		return emit(cmd, "feedback", nil, err)
	}

	store := globalStore(cfg)
	params := curate.Params{
		Scoring:               scoringParams(cfg),
		PruneHarmfulThreshold: cfg.PruneHarmfulThreshold,
	}

	now := time.Now().UTC()
	var result types.CurationResult
	_, err = store.MutatePlaybook(func(pb *types.Playbook) error {
		if pb.FindBullet(bulletID) == nil {
			return types.ErrValidation("no such bullet: "+bulletID, types.ErrBulletNotFound)
		}
		result = curate.Apply(*pb, []types.PlaybookDelta{{Type: deltaType, BulletID: bulletID}}, now, params)
		curate.ApplyMaturityTransitions(&result.Playbook, now, params)
		*pb = result.Playbook
		return nil
	})
	if err != nil {
		return emit(cmd, "feedback", nil, err)
	}

	if !jsonOutput {
		fmt.Printf("recorded %s feedback for %s\n", kind, bulletID)
		if len(result.Inversions) > 0 {
			fmt.Printf("generated %d anti-pattern bullet(s) from sustained harmful feedback\n", len(result.Inversions))
		}
		return nil
	}
	return emit(cmd, "feedback", result, nil)
}

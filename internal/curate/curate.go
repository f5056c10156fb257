// Package curate applies proposed playbook deltas to a playbook, generating
// inversions (anti-pattern bullets) when feedback reveals a rule is
// actively harmful (spec.md §4.6).
package curate

import (
	"time"

	"github.com/google/uuid"

	"github.com/cass-memory/cass-memory/internal/scoring"
	"github.com/cass-memory/cass-memory/internal/types"
)

// Params bundles the thresholds curation needs beyond scoring.Params.
type Params struct {
	Scoring               scoring.Params
	PruneHarmfulThreshold float64
}

// Apply applies deltas to playbook in order, on a mutable copy, returning
// the result plus bookkeeping about what happened. A delta referencing a
// missing bullet id, or structurally identical to one already applied in
// this batch, is skipped rather than treated as fatal (spec.md §4.6,
// "skipped-delta counting never fatal").
func Apply(playbook types.Playbook, deltas []types.PlaybookDelta, now time.Time, p Params) types.CurationResult {
	seen := make(map[string]struct{})
	result := types.CurationResult{Playbook: playbook}

	for _, d := range deltas {
		h := types.DeltaHash(d)
		if _, dup := seen[h]; dup {
			result.Skipped++
			continue
		}
		seen[h] = struct{}{}

		if applyOne(&result.Playbook, d, now) {
			result.Applied++
		} else {
			result.Skipped++
		}
	}

	result.Inversions = detectInversions(&result.Playbook, now, p)
	result.Playbook.Bullets = append(result.Playbook.Bullets, result.Inversions...)

	result.Playbook.Metadata.Version++
	result.Playbook.Metadata.UpdatedAt = now
	result.Playbook.Metadata.TotalReflections++
	result.Playbook.Metadata.LastReflection = now

	return result
}

func applyOne(pb *types.Playbook, d types.PlaybookDelta, now time.Time) bool {
	switch d.Type {
	case types.DeltaAdd:
		return applyAdd(pb, d, now)
	case types.DeltaReplace:
		return applyReplace(pb, d, now)
	case types.DeltaMerge:
		return applyMerge(pb, d, now)
	case types.DeltaDeprecate:
		return applyDeprecate(pb, d, now)
	case types.DeltaHelpful:
		return applyFeedback(pb, d.BulletID, types.FeedbackHelpful, d.SourceSession, now)
	case types.DeltaHarmful:
		return applyFeedback(pb, d.BulletID, types.FeedbackHarmful, d.SourceSession, now)
	default:
		return false
	}
}

func applyAdd(pb *types.Playbook, d types.PlaybookDelta, now time.Time) bool {
	if d.Bullet == nil || d.Bullet.Content == "" {
		return false
	}
	for _, existing := range pb.Bullets {
		if existing.CaseFoldedContent() == types.ToLowerASCII(d.Bullet.Content) {
			return false // already present, treat as no-op rather than duplicate
		}
	}
	b := types.PlaybookBullet{
		ID:         uuid.NewString(),
		Content:    d.Bullet.Content,
		Category:   d.Bullet.Category,
		Kind:       d.Bullet.Kind,
		IsNegative: d.Bullet.IsNegative,
		Scope:      d.Bullet.Scope,
		State:      types.StateDraft,
		Maturity:   types.MaturityCandidate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if d.SourceSession != "" {
		b.SourceSessions = append(b.SourceSessions, d.SourceSession)
	}
	pb.Bullets = append(pb.Bullets, b)
	return true
}

func applyReplace(pb *types.Playbook, d types.PlaybookDelta, now time.Time) bool {
	b := pb.FindBullet(d.BulletID)
	if b == nil || d.NewContent == "" {
		return false
	}
	b.Content = d.NewContent
	b.UpdatedAt = now
	return true
}

func applyMerge(pb *types.Playbook, d types.PlaybookDelta, now time.Time) bool {
	if len(d.BulletIDs) < 2 || d.MergedContent == "" {
		return false
	}
	var kept *types.PlaybookBullet
	remaining := pb.Bullets[:0]
	var merged []types.PlaybookBullet
	idSet := make(map[string]struct{}, len(d.BulletIDs))
	for _, id := range d.BulletIDs {
		idSet[id] = struct{}{}
	}
	for i := range pb.Bullets {
		b := pb.Bullets[i]
		if _, ok := idSet[b.ID]; ok {
			merged = append(merged, b)
			continue
		}
		remaining = append(remaining, b)
	}
	if len(merged) == 0 {
		return false
	}
	kept = &merged[0]
	kept.Content = d.MergedContent
	if d.Category != "" {
		kept.Category = d.Category
	}
	kept.UpdatedAt = now
	for _, m := range merged[1:] {
		kept.HelpfulCount += m.HelpfulCount
		kept.HarmfulCount += m.HarmfulCount
		kept.FeedbackEvents = append(kept.FeedbackEvents, m.FeedbackEvents...)
		kept.SourceSessions = append(kept.SourceSessions, m.SourceSessions...)
	}
	pb.Bullets = append(remaining, *kept)
	return true
}

func applyDeprecate(pb *types.Playbook, d types.PlaybookDelta, now time.Time) bool {
	b := pb.FindBullet(d.BulletID)
	if b == nil {
		return false
	}
	b.Deprecated = true
	b.Maturity = types.MaturityDeprecated
	b.State = types.StateRetired
	b.DeprecationReason = d.Reason
	b.ReplacedBy = d.ReplacedBy
	t := now
	b.DeprecatedAt = &t
	b.UpdatedAt = now
	return true
}

func applyFeedback(pb *types.Playbook, bulletID string, kind types.FeedbackType, sessionPath string, now time.Time) bool {
	b := pb.FindBullet(bulletID)
	if b == nil {
		return false
	}
	b.FeedbackEvents = append(b.FeedbackEvents, types.FeedbackEvent{
		Type:        kind,
		Timestamp:   now,
		SessionPath: sessionPath,
	})
	if kind == types.FeedbackHelpful {
		b.HelpfulCount++
	} else {
		b.HarmfulCount++
	}
	b.UpdatedAt = now
	return true
}

// ApplyMaturityTransitions walks every active bullet and promotes,
// partially steps down, or auto-deprecates it according to its current
// decayed feedback. Called after Apply so the transition sees feedback
// deltas from this same batch (spec.md §4.1).
func ApplyMaturityTransitions(pb *types.Playbook, now time.Time, p Params) {
	for i := range pb.Bullets {
		b := &pb.Bullets[i]
		if b.Maturity == types.MaturityDeprecated {
			continue
		}

		literalGate := scoring.CheckForDemotion(b, now, p.Scoring.DecayHalfLifeDays, p.PruneHarmfulThreshold)
		pruneGate := scoring.CheckForAutoDeprecate(b, now, p.Scoring.DecayHalfLifeDays, p.PruneHarmfulThreshold)
		if literalGate || pruneGate {
			b.Maturity = types.MaturityDeprecated
			b.Deprecated = true
			b.State = types.StateRetired
			b.DeprecationReason = "auto-deprecated: harmful feedback exceeded prune threshold"
			t := now
			b.DeprecatedAt = &t
			continue
		}

		promoted := scoring.CheckForPromotion(b, now, p.Scoring)
		if promoted != b.Maturity {
			b.Maturity = promoted
			if b.Maturity != types.MaturityCandidate && b.State == types.StateDraft {
				b.State = types.StateActive
			}
			continue
		}

		b.Maturity = scoring.StepDownMaturity(b, now, p.Scoring, p.PruneHarmfulThreshold)
	}
}

// detectInversions scans for bullets whose harmful ratio has crossed 0.5
// with enough decayed-harmful weight to be meaningful, and synthesizes an
// "AVOID: " anti-pattern bullet recommending against the original content
// (spec.md §4.6: inversion on sustained harmful feedback).
func detectInversions(pb *types.Playbook, now time.Time, p Params) []types.PlaybookBullet {
	var inversions []types.PlaybookBullet
	for _, b := range pb.Bullets {
		if b.IsNegative || b.Maturity == types.MaturityDeprecated {
			continue
		}
		ratio := scoring.HarmfulRatio(&b, now, p.Scoring.DecayHalfLifeDays)
		harmful := scoring.DecayedHarmful(&b, now, p.Scoring.DecayHalfLifeDays)
		if ratio < 0.5 || harmful < p.PruneHarmfulThreshold {
			continue
		}
		inversions = append(inversions, types.PlaybookBullet{
			ID:         uuid.NewString(),
			Content:    "AVOID: " + b.Content,
			Category:   b.Category,
			Kind:       types.KindAntiPattern,
			IsNegative: true,
			Scope:      b.Scope,
			State:      types.StateDraft,
			Maturity:   types.MaturityCandidate,
			CreatedAt:  now,
			UpdatedAt:  now,
			Tags:       []string{"inverted-from:" + b.ID},
		})
	}
	return inversions
}

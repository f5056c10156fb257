// Package scoring computes the time-decayed confidence score of a playbook
// bullet and drives its maturity state machine (spec.md §4.1).
package scoring

import (
	"math"
	"time"

	"github.com/cass-memory/cass-memory/internal/types"
)

// Params bundles the scoring tunables sourced from config, so callers don't
// thread five scalar arguments through every function.
type Params struct {
	DecayHalfLifeDays        float64
	HarmfulMultiplier        float64
	MaturityPromotionThreshold float64
	MaturityProvenThreshold    float64
	MaxHarmfulRatioForProven   float64
}

// maturityFactor weights to apply on top of the raw decayed score, reflecting
// how much more we trust a bullet that has proven itself over time.
const (
	factorProven      = 1.5
	factorEstablished = 1.2
	factorCandidate    = 1.0
	factorDeprecated   = 0.0
)

// decay returns the value of one feedback event after half-life decay:
// value = 2^(-age/halfLifeDays), clamped to [0, 1].
func decay(age time.Duration, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		return 1
	}
	ageDays := age.Hours() / 24
	v := math.Pow(2, -ageDays/halfLifeDays)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DecayedHelpful sums decay(age) over every helpful feedback event.
func DecayedHelpful(b *types.PlaybookBullet, now time.Time, halfLifeDays float64) float64 {
	return decayedSum(b, now, halfLifeDays, types.FeedbackHelpful)
}

// DecayedHarmful sums decay(age) over every harmful feedback event.
func DecayedHarmful(b *types.PlaybookBullet, now time.Time, halfLifeDays float64) float64 {
	return decayedSum(b, now, halfLifeDays, types.FeedbackHarmful)
}

func decayedSum(b *types.PlaybookBullet, now time.Time, halfLifeDays float64, kind types.FeedbackType) float64 {
	hl := b.ConfidenceDecayHalfLifeDays
	if hl <= 0 {
		hl = halfLifeDays
	}
	var sum float64
	for _, ev := range b.FeedbackEvents {
		if ev.Type != kind {
			continue
		}
		sum += decay(now.Sub(ev.Timestamp), hl)
	}
	return sum
}

// maturityFactorFor maps a Maturity to its score multiplier.
func maturityFactorFor(m types.Maturity) float64 {
	switch m {
	case types.MaturityProven:
		return factorProven
	case types.MaturityEstablished:
		return factorEstablished
	case types.MaturityDeprecated:
		return factorDeprecated
	default:
		return factorCandidate
	}
}

// EffectiveScore combines decayed helpful/harmful feedback and the
// maturity factor into the single number context assembly and pruning
// decisions rank bullets by:
//
//	effectiveScore = (decayedHelpful - harmfulMultiplier*decayedHarmful) * maturityFactor
func EffectiveScore(b *types.PlaybookBullet, now time.Time, p Params) float64 {
	helpful := DecayedHelpful(b, now, p.DecayHalfLifeDays)
	harmful := DecayedHarmful(b, now, p.DecayHalfLifeDays)
	raw := helpful - p.HarmfulMultiplier*harmful
	return raw * maturityFactorFor(b.Maturity)
}

// HarmfulRatio returns decayedHarmful / (decayedHelpful + decayedHarmful),
// or 0 when there is no feedback at all.
func HarmfulRatio(b *types.PlaybookBullet, now time.Time, halfLifeDays float64) float64 {
	helpful := DecayedHelpful(b, now, halfLifeDays)
	harmful := DecayedHarmful(b, now, halfLifeDays)
	total := helpful + harmful
	if total == 0 {
		return 0
	}
	return harmful / total
}

// IsStale reports whether a bullet hasn't received feedback in maxAgeDays,
// independent of its confidence half-life (spec.md §9 OQ1: the two are
// deliberately unrelated knobs).
func IsStale(b *types.PlaybookBullet, now time.Time, maxAgeDays float64) bool {
	if maxAgeDays <= 0 {
		return false
	}
	last := b.UpdatedAt
	for _, ev := range b.FeedbackEvents {
		if ev.Timestamp.After(last) {
			last = ev.Timestamp
		}
	}
	return now.Sub(last).Hours()/24 > maxAgeDays
}

// CheckForPromotion returns the maturity a bullet should transition to
// given its current decayed feedback, or the bullet's current maturity if
// no transition applies. Promotion only ever moves candidate->established
// or established->proven; it never un-deprecates a bullet.
func CheckForPromotion(b *types.PlaybookBullet, now time.Time, p Params) types.Maturity {
	if b.Maturity == types.MaturityDeprecated {
		return types.MaturityDeprecated
	}
	helpful := DecayedHelpful(b, now, p.DecayHalfLifeDays)
	ratio := HarmfulRatio(b, now, p.DecayHalfLifeDays)

	if b.Maturity == types.MaturityCandidate && helpful >= p.MaturityPromotionThreshold && ratio <= 0.2 {
		return types.MaturityEstablished
	}
	if b.Maturity == types.MaturityEstablished && helpful >= p.MaturityProvenThreshold && ratio <= p.MaxHarmfulRatioForProven {
		return types.MaturityProven
	}
	return b.Maturity
}

// demoteHarmfulRatio and demoteMinDecayedHarmful are the literal thresholds
// for "any -> deprecated", distinct from the configurable
// pruneHarmfulThreshold used by CheckForAutoDeprecate.
const (
	demoteHarmfulRatio      = 0.5
	demoteMinDecayedHarmful = 2.0
)

// CheckForDemotion returns true when a bullet has crossed the literal
// any-maturity auto-deprecate threshold: harmful ratio >= 0.5 and
// decayedHarmful >= 2, independent of the configurable pruneHarmfulThreshold.
func CheckForDemotion(b *types.PlaybookBullet, now time.Time, halfLifeDays, pruneHarmfulThreshold float64) bool {
	if b.Maturity == types.MaturityDeprecated {
		return false
	}
	harmful := DecayedHarmful(b, now, halfLifeDays)
	ratio := HarmfulRatio(b, now, halfLifeDays)
	return ratio >= demoteHarmfulRatio && harmful >= demoteMinDecayedHarmful
}

// CheckForAutoDeprecate reports whether decayedHarmful has reached the
// configurable pruneHarmfulThreshold, regardless of ratio — the
// "auto-deprecate" report distinct from CheckForDemotion's literal gate.
func CheckForAutoDeprecate(b *types.PlaybookBullet, now time.Time, halfLifeDays, pruneHarmfulThreshold float64) bool {
	if b.Maturity == types.MaturityDeprecated {
		return false
	}
	return DecayedHarmful(b, now, halfLifeDays) >= pruneHarmfulThreshold
}

// StepDownMaturity returns the partial demotion target for a bullet whose
// effectiveScore has gone negative but whose decayedHarmful is still below
// pruneHarmfulThreshold: proven->established, established->candidate. It
// never touches candidate or deprecated bullets, and never demotes a bullet
// that already qualifies for full auto-deprecation.
func StepDownMaturity(b *types.PlaybookBullet, now time.Time, p Params, pruneHarmfulThreshold float64) types.Maturity {
	if b.Maturity != types.MaturityProven && b.Maturity != types.MaturityEstablished {
		return b.Maturity
	}
	if CheckForAutoDeprecate(b, now, p.DecayHalfLifeDays, pruneHarmfulThreshold) {
		return b.Maturity
	}
	score := EffectiveScore(b, now, p)
	harmful := DecayedHarmful(b, now, p.DecayHalfLifeDays)
	if score >= 0 || harmful >= pruneHarmfulThreshold {
		return b.Maturity
	}
	if b.Maturity == types.MaturityProven {
		return types.MaturityEstablished
	}
	return types.MaturityCandidate
}

// Bucket is a coarse distribution label for reporting/summary views.
type Bucket string

const (
	BucketExcellent Bucket = "excellent"
	BucketGood      Bucket = "good"
	BucketNeutral   Bucket = "neutral"
	BucketAtRisk    Bucket = "at_risk"
)

// BucketFor classifies an effective score into a distribution bucket for
// `cass-memory playbook show` style summaries.
func BucketFor(score float64) Bucket {
	switch {
	case score >= 5:
		return BucketExcellent
	case score >= 2:
		return BucketGood
	case score > -2:
		return BucketNeutral
	default:
		return BucketAtRisk
	}
}

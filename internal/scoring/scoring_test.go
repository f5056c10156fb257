package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cass-memory/cass-memory/internal/types"
)

func defaultParams() Params {
	return Params{
		DecayHalfLifeDays:          90,
		HarmfulMultiplier:          4,
		MaturityPromotionThreshold: 3,
		MaturityProvenThreshold:    10,
		MaxHarmfulRatioForProven:   0.1,
	}
}

func TestDecay_HalfLifeHalves(t *testing.T) {
	now := time.Now()
	b := &types.PlaybookBullet{
		FeedbackEvents: []types.FeedbackEvent{
			{Type: types.FeedbackHelpful, Timestamp: now.Add(-90 * 24 * time.Hour)},
		},
	}
	got := DecayedHelpful(b, now, 90)
	assert.InDelta(t, 0.5, got, 0.01)
}

func TestDecay_FreshEventIsFullValue(t *testing.T) {
	now := time.Now()
	b := &types.PlaybookBullet{
		FeedbackEvents: []types.FeedbackEvent{{Type: types.FeedbackHelpful, Timestamp: now}},
	}
	assert.InDelta(t, 1.0, DecayedHelpful(b, now, 90), 0.001)
}

func TestEffectiveScore_HarmfulMultiplierPenalizes(t *testing.T) {
	now := time.Now()
	p := defaultParams()
	b := &types.PlaybookBullet{
		Maturity: types.MaturityCandidate,
		FeedbackEvents: []types.FeedbackEvent{
			{Type: types.FeedbackHelpful, Timestamp: now},
			{Type: types.FeedbackHarmful, Timestamp: now},
		},
	}
	score := EffectiveScore(b, now, p)
	assert.InDelta(t, 1-4*1, score, 0.01)
}

func TestEffectiveScore_MaturityFactorScales(t *testing.T) {
	now := time.Now()
	p := defaultParams()
	base := types.PlaybookBullet{
		FeedbackEvents: []types.FeedbackEvent{{Type: types.FeedbackHelpful, Timestamp: now}},
	}
	candidate := base
	candidate.Maturity = types.MaturityCandidate
	proven := base
	proven.Maturity = types.MaturityProven

	assert.Greater(t, EffectiveScore(&proven, now, p), EffectiveScore(&candidate, now, p))
}

func TestCheckForPromotion_CandidateToEstablished(t *testing.T) {
	now := time.Now()
	p := defaultParams()
	b := &types.PlaybookBullet{Maturity: types.MaturityCandidate}
	for i := 0; i < 3; i++ {
		b.FeedbackEvents = append(b.FeedbackEvents, types.FeedbackEvent{Type: types.FeedbackHelpful, Timestamp: now})
	}
	assert.Equal(t, types.MaturityEstablished, CheckForPromotion(b, now, p))
}

func TestCheckForPromotion_HighHarmfulRatioBlocksPromotion(t *testing.T) {
	now := time.Now()
	p := defaultParams()
	b := &types.PlaybookBullet{Maturity: types.MaturityCandidate}
	for i := 0; i < 3; i++ {
		b.FeedbackEvents = append(b.FeedbackEvents, types.FeedbackEvent{Type: types.FeedbackHelpful, Timestamp: now})
	}
	// Harmful ratio 1/4 = 0.25 > 0.2, so despite meeting the helpful
	// threshold the bullet must stay candidate.
	b.FeedbackEvents = append(b.FeedbackEvents, types.FeedbackEvent{Type: types.FeedbackHarmful, Timestamp: now})
	assert.Equal(t, types.MaturityCandidate, CheckForPromotion(b, now, p))
}

func TestCheckForPromotion_NeverUndeprecates(t *testing.T) {
	now := time.Now()
	p := defaultParams()
	b := &types.PlaybookBullet{Maturity: types.MaturityDeprecated}
	assert.Equal(t, types.MaturityDeprecated, CheckForPromotion(b, now, p))
}

func TestCheckForDemotion_HighHarmfulRatioTriggers(t *testing.T) {
	now := time.Now()
	b := &types.PlaybookBullet{Maturity: types.MaturityEstablished}
	for i := 0; i < 4; i++ {
		b.FeedbackEvents = append(b.FeedbackEvents, types.FeedbackEvent{Type: types.FeedbackHarmful, Timestamp: now})
	}
	assert.True(t, CheckForDemotion(b, now, 90, 3))
}

func TestCheckForDemotion_IgnoresPruneHarmfulThreshold(t *testing.T) {
	now := time.Now()
	b := &types.PlaybookBullet{Maturity: types.MaturityEstablished}
	for i := 0; i < 2; i++ {
		b.FeedbackEvents = append(b.FeedbackEvents, types.FeedbackEvent{Type: types.FeedbackHarmful, Timestamp: now})
	}
	// decayedHarmful=2, ratio=1.0: crosses the literal gate even though
	// pruneHarmfulThreshold is configured much higher.
	assert.True(t, CheckForDemotion(b, now, 90, 100))
}

func TestCheckForAutoDeprecate_CrossesPruneThreshold(t *testing.T) {
	now := time.Now()
	b := &types.PlaybookBullet{Maturity: types.MaturityEstablished}
	for i := 0; i < 3; i++ {
		b.FeedbackEvents = append(b.FeedbackEvents, types.FeedbackEvent{Type: types.FeedbackHarmful, Timestamp: now})
	}
	assert.True(t, CheckForAutoDeprecate(b, now, 90, 3))
	assert.False(t, CheckForAutoDeprecate(b, now, 90, 5))
}

func TestStepDownMaturity_ProvenToEstablishedOnNegativeScore(t *testing.T) {
	now := time.Now()
	p := defaultParams()
	b := &types.PlaybookBullet{Maturity: types.MaturityProven}
	b.FeedbackEvents = append(b.FeedbackEvents, types.FeedbackEvent{Type: types.FeedbackHarmful, Timestamp: now})
	// decayedHarmful=1 < pruneHarmfulThreshold(3); effectiveScore = (0 -
	// 4*1)*1.5 = -6 < 0, so this is a partial step-down, not auto-deprecate.
	assert.Equal(t, types.MaturityEstablished, StepDownMaturity(b, now, p, 3))
}

func TestStepDownMaturity_NoStepDownWhenAboveAutoDeprecateThreshold(t *testing.T) {
	now := time.Now()
	p := defaultParams()
	b := &types.PlaybookBullet{Maturity: types.MaturityProven}
	for i := 0; i < 3; i++ {
		b.FeedbackEvents = append(b.FeedbackEvents, types.FeedbackEvent{Type: types.FeedbackHarmful, Timestamp: now})
	}
	// decayedHarmful=3 >= pruneHarmfulThreshold(3): this is auto-deprecate
	// territory, not a partial step-down.
	assert.Equal(t, types.MaturityProven, StepDownMaturity(b, now, p, 3))
}

func TestStepDownMaturity_NoStepDownWhenScoreNonNegative(t *testing.T) {
	now := time.Now()
	p := defaultParams()
	b := &types.PlaybookBullet{Maturity: types.MaturityEstablished}
	b.FeedbackEvents = append(b.FeedbackEvents, types.FeedbackEvent{Type: types.FeedbackHelpful, Timestamp: now})
	assert.Equal(t, types.MaturityEstablished, StepDownMaturity(b, now, p, 3))
}

func TestIsStale_IndependentOfHalfLife(t *testing.T) {
	now := time.Now()
	b := &types.PlaybookBullet{UpdatedAt: now.Add(-100 * 24 * time.Hour)}
	assert.True(t, IsStale(b, now, 60))
	assert.False(t, IsStale(b, now, 200))
}

func TestBucketFor(t *testing.T) {
	assert.Equal(t, BucketExcellent, BucketFor(5))
	assert.Equal(t, BucketExcellent, BucketFor(6))
	assert.Equal(t, BucketGood, BucketFor(2))
	assert.Equal(t, BucketGood, BucketFor(4.99))
	assert.Equal(t, BucketNeutral, BucketFor(0))
	assert.Equal(t, BucketNeutral, BucketFor(-1))
	assert.Equal(t, BucketNeutral, BucketFor(1.5))
	assert.Equal(t, BucketAtRisk, BucketFor(-2))
	assert.Equal(t, BucketAtRisk, BucketFor(-3))
}

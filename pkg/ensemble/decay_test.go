package ensemble

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHalfLife(t *testing.T) {
	assert.InDelta(t, 30.0, HalfLife(2.0), 1e-9)
	assert.InDelta(t, 60.0, HalfLife(1.0), 1e-9)
	// Floored at 0.1 sessions/hour so the half-life stays defined.
	assert.InDelta(t, 600.0, HalfLife(0), 1e-9)
	assert.InDelta(t, 600.0, HalfLife(-5), 1e-9)
}

func TestApplyDecayBoundaries(t *testing.T) {
	// No elapsed time leaves the prediction untouched.
	assert.InDelta(t, 0.82, ApplyDecay(0.82, 0, 2.0), 1e-9)
	// Very long horizons drift to the uninformed baseline.
	assert.InDelta(t, 0.5, ApplyDecay(0.82, 1e6, 2.0), 1e-6)
	assert.InDelta(t, 0.5, ApplyDecay(0.1, 1e6, 2.0), 1e-6)
}

func TestTimeDecayInfo(t *testing.T) {
	info := TimeDecayInfo(0.70, 2.0)

	assert.InDelta(t, 30.0, info.HalfLifeMinutes, 1e-9)
	assert.InDelta(t, 52.1, info.ValidForMinutes, 0.05)
	assert.InDelta(t, 0.695, info.FutureConfidence.Min1, 1e-9)

	// Each horizon moves strictly toward 0.5.
	fc := info.FutureConfidence
	horizons := []float64{fc.Min1, fc.Min3, fc.Min5, fc.Min10}
	prev := math.Abs(0.70 - 0.5)
	for _, v := range horizons {
		d := math.Abs(v - 0.5)
		assert.Less(t, d, prev)
		prev = d
	}
}

func TestFutureConfidenceMonotoneBelowHalf(t *testing.T) {
	// Predictions below 0.5 drift upward toward 0.5.
	info := TimeDecayInfo(0.2, 4.0)
	fc := info.FutureConfidence
	assert.True(t, fc.Min1 <= fc.Min3 && fc.Min3 <= fc.Min5 && fc.Min5 <= fc.Min10)
	assert.True(t, fc.Min10 <= 0.5)
}

func TestIsStale(t *testing.T) {
	// hl=30min: factor crosses 0.3 at ~52.1 minutes.
	assert.False(t, IsStale(50, 2.0))
	assert.True(t, IsStale(55, 2.0))
}

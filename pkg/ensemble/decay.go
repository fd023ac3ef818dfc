package ensemble

import "math"

// staleFactor is the decay factor below which a prediction is considered
// stale and has reverted most of the way toward 0.5.
const staleFactor = 0.3

// HalfLife returns the information half-life in minutes for a turnover
// rate in sessions/hour. The rate is floored at 0.1 so the half-life is
// always defined.
func HalfLife(turnoverRate float64) float64 {
	return 60.0 / math.Max(0.1, turnoverRate)
}

// DecayFactor returns exp(-ln2 · elapsed / halfLife) for elapsed minutes.
func DecayFactor(elapsedMinutes, turnoverRate float64) float64 {
	return math.Exp(-math.Ln2 * elapsedMinutes / HalfLife(turnoverRate))
}

// ApplyDecay drifts a prediction toward the uninformed 0.5 baseline as
// time passes.
func ApplyDecay(p, elapsedMinutes, turnoverRate float64) float64 {
	return 0.5 + (p-0.5)*DecayFactor(elapsedMinutes, turnoverRate)
}

// IsStale reports whether a prediction has decayed past usefulness.
func IsStale(elapsedMinutes, turnoverRate float64) bool {
	return DecayFactor(elapsedMinutes, turnoverRate) < staleFactor
}

// FutureConfidence is the decayed P(free) at the standard horizons.
type FutureConfidence struct {
	Min1  float64 `json:"1min"`
	Min3  float64 `json:"3min"`
	Min5  float64 `json:"5min"`
	Min10 float64 `json:"10min"`
}

// DecayInfo is the full time-decay block attached to a prediction.
type DecayInfo struct {
	HalfLifeMinutes  float64          `json:"half_life_minutes"`
	ValidForMinutes  float64          `json:"valid_for_minutes"`
	FutureConfidence FutureConfidence `json:"future_confidence"`
}

// TimeDecayInfo computes the decay block for a prediction: half-life,
// the window until the decay factor drops below 0.3, and the projected
// P(free) at 1/3/5/10 minutes.
func TimeDecayInfo(pFree, turnoverRate float64) DecayInfo {
	hl := HalfLife(turnoverRate)
	return DecayInfo{
		HalfLifeMinutes: round1(hl),
		ValidForMinutes: round1(hl * (-math.Log(staleFactor) / math.Ln2)),
		FutureConfidence: FutureConfidence{
			Min1:  round3(ApplyDecay(pFree, 1, turnoverRate)),
			Min3:  round3(ApplyDecay(pFree, 3, turnoverRate)),
			Min5:  round3(ApplyDecay(pFree, 5, turnoverRate)),
			Min10: round3(ApplyDecay(pFree, 10, turnoverRate)),
		},
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

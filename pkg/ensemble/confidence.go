package ensemble

import (
	"math"

	"curbcast/pkg/config"
)

// ConfidenceSources is the per-component breakdown of a confidence score.
type ConfidenceSources struct {
	MeterData         float64 `json:"meter_data"`
	SpatialData       float64 `json:"spatial_data"`
	RealtimeFreshness float64 `json:"realtime_freshness"`
	ModelCertainty    float64 `json:"model_certainty"`
}

// Confidence is the multi-source confidence attached to a prediction.
type Confidence struct {
	Score   float64           `json:"score"`
	Tier    string            `json:"tier"`
	Sources ConfidenceSources `json:"sources"`
}

// ConfidenceInput carries the raw evidence behind a confidence score.
type ConfidenceInput struct {
	SampleCount int
	HasSign     bool
	HasCurb     bool
	HasSFMTA    bool
	// SignalAgeMin is the age of the freshest real-time signal consulted.
	// Ignored when AgeKnown is false.
	SignalAgeMin float64
	AgeKnown     bool
	POccupied    float64
}

// meterDataQuality scores the volume of meter data backing the prediction.
func meterDataQuality(sampleCount, threshold int) float64 {
	if threshold <= 0 {
		threshold = 1
	}
	return math.Min(1.0, float64(sampleCount)/float64(threshold))
}

// spatialDataQuality scores the available regulatory evidence.
func spatialDataQuality(hasSign, hasCurb, hasSFMTA bool) float64 {
	score := 0.0
	if hasSign {
		score += 0.4
	}
	if hasCurb {
		score += 0.3
	}
	if hasSFMTA {
		score += 0.3
	}
	return score
}

// realtimeFreshness is 1 below the fresh threshold, 0 above the stale
// threshold, linear between, and 0 when no signal age is known.
func realtimeFreshness(ageMin float64, known bool, cfg *config.ConfidenceConfig) float64 {
	if !known {
		return 0.0
	}
	if ageMin <= cfg.RealtimeFreshMinutes {
		return 1.0
	}
	if ageMin >= cfg.RealtimeStaleMinutes {
		return 0.0
	}
	return 1.0 - (ageMin-cfg.RealtimeFreshMinutes)/(cfg.RealtimeStaleMinutes-cfg.RealtimeFreshMinutes)
}

// modelCertainty is 1 − 2·|p − 0.5|, peaking at p = 0.5. The inversion
// relative to the name is inherited from the trained models' calibration
// data and is kept for compatibility; see the release notes.
func modelCertainty(pOccupied float64) float64 {
	return 1.0 - 2.0*math.Abs(pOccupied-0.5)
}

// ComputeConfidence produces the weighted confidence score, its tier and
// the component breakdown.
func ComputeConfidence(in ConfidenceInput, cfg *config.ConfidenceConfig) Confidence {
	meterQ := meterDataQuality(in.SampleCount, cfg.MeterSampleThreshold)
	spatialQ := spatialDataQuality(in.HasSign, in.HasCurb, in.HasSFMTA)
	rtFresh := realtimeFreshness(in.SignalAgeMin, in.AgeKnown, cfg)
	certainty := modelCertainty(in.POccupied)

	score := cfg.MeterDataWeight*meterQ +
		cfg.SpatialDataWeight*spatialQ +
		cfg.RealtimeFreshnessWeight*rtFresh +
		cfg.ModelCertaintyWeight*certainty

	tier := "low"
	switch {
	case score >= 0.7:
		tier = "high"
	case score >= 0.4:
		tier = "medium"
	}

	return Confidence{
		Score: round3(score),
		Tier:  tier,
		Sources: ConfidenceSources{
			MeterData:         round3(meterQ),
			SpatialData:       round3(spatialQ),
			RealtimeFreshness: round3(rtFresh),
			ModelCertainty:    round3(certainty),
		},
	}
}

// GuaranteeLevel derives the user-facing availability tier from P(free)
// and the confidence score.
func GuaranteeLevel(pFree, confidenceScore float64) string {
	switch {
	case pFree >= 0.95 && confidenceScore >= 0.8:
		return "guaranteed"
	case pFree >= 0.7 && confidenceScore >= 0.6:
		return "probable"
	case pFree >= 0.3:
		return "possible"
	default:
		return "unlikely"
	}
}

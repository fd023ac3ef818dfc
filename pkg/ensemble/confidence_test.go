package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"curbcast/pkg/config"
)

func confCfg() *config.ConfidenceConfig {
	cfg := config.DefaultConfig()
	return &cfg.Confidence
}

func TestSpatialDataQuality(t *testing.T) {
	assert.InDelta(t, 0.0, spatialDataQuality(false, false, false), 1e-9)
	assert.InDelta(t, 0.4, spatialDataQuality(true, false, false), 1e-9)
	assert.InDelta(t, 0.7, spatialDataQuality(true, true, false), 1e-9)
	assert.InDelta(t, 1.0, spatialDataQuality(true, true, true), 1e-9)
}

func TestRealtimeFreshness(t *testing.T) {
	cfg := confCfg() // fresh 5, stale 60

	assert.InDelta(t, 0.0, realtimeFreshness(0, false, cfg), 1e-9)
	assert.InDelta(t, 1.0, realtimeFreshness(2, true, cfg), 1e-9)
	assert.InDelta(t, 1.0, realtimeFreshness(5, true, cfg), 1e-9)
	assert.InDelta(t, 0.0, realtimeFreshness(60, true, cfg), 1e-9)
	assert.InDelta(t, 0.0, realtimeFreshness(120, true, cfg), 1e-9)
	// Linear in between: 32.5 min is halfway through [5, 60].
	assert.InDelta(t, 0.5, realtimeFreshness(32.5, true, cfg), 1e-9)
}

func TestModelCertaintyPeaksAtHalf(t *testing.T) {
	// Inherited inversion: maximal at p=0.5, zero at the extremes.
	assert.InDelta(t, 1.0, modelCertainty(0.5), 1e-9)
	assert.InDelta(t, 0.0, modelCertainty(0.0), 1e-9)
	assert.InDelta(t, 0.0, modelCertainty(1.0), 1e-9)
	assert.InDelta(t, 0.5, modelCertainty(0.75), 1e-9)
}

func TestComputeConfidenceTiers(t *testing.T) {
	cfg := confCfg()

	high := ComputeConfidence(ConfidenceInput{
		SampleCount: 200, HasSign: true, HasCurb: true, HasSFMTA: true,
		SignalAgeMin: 1, AgeKnown: true, POccupied: 0.5,
	}, cfg)
	// All components max out: 0.4 + 0.2 + 0.2 + 0.2.
	assert.InDelta(t, 1.0, high.Score, 1e-9)
	assert.Equal(t, "high", high.Tier)
	assert.InDelta(t, 1.0, high.Sources.MeterData, 1e-9)

	low := ComputeConfidence(ConfidenceInput{POccupied: 1.0}, cfg)
	assert.Equal(t, "low", low.Tier)
	assert.InDelta(t, 0.0, low.Score, 1e-9)

	med := ComputeConfidence(ConfidenceInput{
		SampleCount: 100, POccupied: 0.5,
	}, cfg)
	// 0.4·1 + 0.2·1 = 0.6.
	assert.InDelta(t, 0.6, med.Score, 1e-9)
	assert.Equal(t, "medium", med.Tier)
}

func TestGuaranteeLevel(t *testing.T) {
	assert.Equal(t, "guaranteed", GuaranteeLevel(0.96, 0.85))
	assert.Equal(t, "probable", GuaranteeLevel(0.96, 0.65)) // conf too low for guaranteed
	assert.Equal(t, "probable", GuaranteeLevel(0.75, 0.6))
	assert.Equal(t, "possible", GuaranteeLevel(0.75, 0.3)) // conf too low for probable
	assert.Equal(t, "possible", GuaranteeLevel(0.31, 0.9))
	assert.Equal(t, "unlikely", GuaranteeLevel(0.29, 0.9))
}

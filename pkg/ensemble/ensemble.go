// Package ensemble chains the model artifacts into the per-spot scoring
// pipeline: occupancy classifier, Platt calibration, transfer adjustment,
// turnover regressor, time decay and multi-source confidence.
package ensemble

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"curbcast/pkg/config"
	"curbcast/pkg/features"
	"curbcast/pkg/model"
)

// defaultVersion labels responses when no occupancy artifact is present.
const defaultVersion = "1.0.0"

// Prediction is the scored result for one spot at one timestamp.
type Prediction struct {
	Spot         *model.Spot
	DistM        float64
	PFree        float64
	POccupiedAdj float64
	TurnoverRate float64
	ZoneType     string
	Guarantee    string
	Confidence   Confidence
	Decay        DecayInfo
	Restrictions []string
}

// Ensemble holds the loaded artifacts and the configuration that drives
// the fallbacks. All fields are read-only after Load.
type Ensemble struct {
	cfg         *config.Config
	occupancy   *Booster
	turnover    *Booster
	calibration *Calibration
}

// Load reads the three artifact bundles from the configured directory.
// A missing artifact is recoverable: the corresponding stage falls back
// (nearest-meter occupancy, zone base churn, identity calibration).
func Load(cfg *config.Config) (*Ensemble, error) {
	dir := cfg.Model.ArtifactsDir
	e := &Ensemble{cfg: cfg}

	var err error
	if e.occupancy, err = LoadBooster(filepath.Join(dir, "occupancy.json")); err != nil {
		return nil, fmt.Errorf("load occupancy model: %w", err)
	}
	if e.turnover, err = LoadBooster(filepath.Join(dir, "turnover.json")); err != nil {
		return nil, fmt.Errorf("load turnover model: %w", err)
	}
	if e.calibration, err = LoadCalibration(filepath.Join(dir, "calibration.json")); err != nil {
		return nil, fmt.Errorf("load calibration: %w", err)
	}

	slog.Info("models loaded",
		"occupancy", e.occupancy != nil,
		"turnover", e.turnover != nil,
		"calibration", e.calibration != nil,
		"version", e.ModelVersion())
	return e, nil
}

// Loaded reports whether the occupancy model is present. The service
// still serves without it, but health reports degraded.
func (e *Ensemble) Loaded() bool {
	return e.occupancy != nil
}

// ModelVersion returns the occupancy bundle's version string.
func (e *Ensemble) ModelVersion() string {
	if e.occupancy != nil && e.occupancy.Version != "" {
		return e.occupancy.Version
	}
	return defaultVersion
}

// predictOccupancy runs the classifier, or falls back to the nearest
// meter's occupancy rate (0.5 when that is NaN too).
func (e *Ensemble) predictOccupancy(values map[string]float64) float64 {
	if e.occupancy != nil {
		return e.occupancy.Predict(e.occupancy.Row(values))
	}
	p, ok := values["nearest_meter_occupancy"]
	if !ok || math.IsNaN(p) {
		return 0.5
	}
	return p
}

// predictTurnover runs the regressor, or falls back to the zone's base
// churn rate. Either way the result is floored at 0.1 sessions/hour.
func (e *Ensemble) predictTurnover(values map[string]float64, zoneType string) float64 {
	if e.turnover != nil {
		return math.Max(0.1, e.turnover.Predict(e.turnover.Row(values)))
	}
	return math.Max(0.1, e.cfg.BaseChurn(zoneType))
}

// adjustTransfer shifts P(occupied) from metered to free-spot behaviour
// in logit space and clamps to [0.01, 0.99].
func (e *Ensemble) adjustTransfer(pOccupied float64, zoneType string) float64 {
	mult := e.cfg.TransferMultiplier(zoneType)
	p := math.Min(0.99, math.Max(0.01, pOccupied))
	logit := math.Log(p/(1-p)) + math.Log(mult)
	adjusted := 1.0 / (1.0 + math.Exp(-logit))
	return math.Min(0.99, math.Max(0.01, adjusted))
}

// PredictSpot runs the full scoring chain for one spot and its assembled
// feature set.
func (e *Ensemble) PredictSpot(spot *model.Spot, fs *features.Set) *Prediction {
	values := fs.Values
	zoneType := fs.ZoneType
	if zoneType == "" {
		zoneType = "mixed"
	}
	// The categorical zone is encoded into the scoring row here; every
	// other categorical family already writes integer codes.
	values["zone_type"] = features.EncodeZoneType(zoneType)

	pOccupied := e.predictOccupancy(values)
	pOccupied = e.calibration.Calibrate(pOccupied, zoneType)
	pOccupiedAdj := e.adjustTransfer(pOccupied, zoneType)
	pFree := 1.0 - pOccupiedAdj

	turnoverRate := e.predictTurnover(values, zoneType)

	conf := ComputeConfidence(ConfidenceInput{
		SampleCount:  intFeature(values, "meter_sample_count"),
		HasSign:      values["no_parking_signs_30m"] > 0 || values["has_time_limit"] > 0,
		HasCurb:      values["curb_color"] > 0,
		HasSFMTA:     strings.Contains(strings.ToLower(spot.DataSources), "sfmta"),
		SignalAgeMin: fs.RealtimeAge.Minutes(),
		AgeKnown:     fs.AgeKnown,
		POccupied:    pOccupiedAdj,
	}, &e.cfg.Confidence)

	return &Prediction{
		Spot:         spot,
		PFree:        round3(pFree),
		POccupiedAdj: pOccupiedAdj,
		TurnoverRate: math.Round(turnoverRate*100) / 100,
		ZoneType:     zoneType,
		Guarantee:    GuaranteeLevel(pFree, conf.Score),
		Confidence:   conf,
		Decay:        TimeDecayInfo(pFree, turnoverRate),
		Restrictions: restrictions(values),
	}
}

// restrictions renders the human-readable restriction strings for a
// feature set.
func restrictions(values map[string]float64) []string {
	var out []string
	if values["is_sweeping_now"] > 0 {
		out = append(out, "Street sweeping in progress")
	}
	if values["has_time_limit"] > 0 && values["time_limit_minutes"] > 0 {
		out = append(out, fmt.Sprintf("%dmin time limit", int(values["time_limit_minutes"])))
	}
	if values["has_permit_zone"] > 0 {
		out = append(out, "Permit zone")
	}
	return out
}

func intFeature(values map[string]float64, key string) int {
	v, ok := values[key]
	if !ok || math.IsNaN(v) {
		return 0
	}
	return int(v)
}

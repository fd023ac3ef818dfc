package ensemble

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// PlattParams are the (a, b) coefficients of a fitted Platt scaler:
// p' = 1 / (1 + exp(a·logit(p) + b)).
type PlattParams struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Calibration maps zone types to Platt parameters with a global fallback.
type Calibration struct {
	Version string                 `json:"version"`
	PerZone map[string]PlattParams `json:"per_zone"`
	Global  *PlattParams           `json:"global"`
}

// LoadCalibration reads calibration parameters from disk. A missing file
// returns (nil, nil); callers then calibrate with the identity.
func LoadCalibration(path string) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read calibration %s: %w", path, err)
	}
	var c Calibration
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse calibration %s: %w", path, err)
	}
	return &c, nil
}

// platt applies the Platt transform, clipping p away from the logit's
// singularities first.
func platt(p float64, params PlattParams) float64 {
	p = math.Min(0.999, math.Max(0.001, p))
	logit := math.Log(p / (1 - p))
	return 1.0 / (1.0 + math.Exp(params.A*logit+params.B))
}

// Calibrate maps a raw probability through the zone-specific scaler,
// falling back to the global one, then to identity. Safe on a nil
// receiver.
func (c *Calibration) Calibrate(p float64, zoneType string) float64 {
	if c == nil {
		return p
	}
	if params, ok := c.PerZone[zoneType]; ok {
		return platt(p, params)
	}
	if c.Global != nil {
		return platt(p, *c.Global)
	}
	return p
}

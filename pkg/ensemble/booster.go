package ensemble

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// node is one split or leaf in a boosted tree. A leaf has Feature == -1.
// Missing feature values (NaN) follow DefaultLeft.
type node struct {
	Feature     int     `json:"feature"`
	Threshold   float64 `json:"threshold"`
	Left        int     `json:"left"`
	Right       int     `json:"right"`
	DefaultLeft bool    `json:"default_left"`
	Value       float64 `json:"value"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

// eval walks the tree for one feature row.
func (t *tree) eval(row []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		v := row[n.Feature]
		switch {
		case math.IsNaN(v):
			if n.DefaultLeft {
				i = n.Left
			} else {
				i = n.Right
			}
		case v < n.Threshold:
			i = n.Left
		default:
			i = n.Right
		}
	}
}

// Booster is a gradient-boosted tree dump with its feature-column order.
// The dump format matches what the offline training pipeline exports.
type Booster struct {
	Version     string   `json:"version"`
	Objective   string   `json:"objective"` // "binary:logistic" or "reg:squarederror"
	BaseScore   float64  `json:"base_score"`
	FeatureCols []string `json:"feature_cols"`
	Trees       []tree   `json:"trees"`
}

// LoadBooster reads a tree dump from disk. A missing file returns
// (nil, nil) so callers can fall back.
func LoadBooster(path string) (*Booster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read booster %s: %w", path, err)
	}
	var b Booster
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse booster %s: %w", path, err)
	}
	if len(b.FeatureCols) == 0 {
		return nil, fmt.Errorf("booster %s has no feature columns", path)
	}
	return &b, nil
}

// Row builds the dense scoring row in the booster's column order, filling
// absent features with NaN.
func (b *Booster) Row(values map[string]float64) []float64 {
	row := make([]float64, len(b.FeatureCols))
	for i, col := range b.FeatureCols {
		if v, ok := values[col]; ok {
			row[i] = v
		} else {
			row[i] = math.NaN()
		}
	}
	return row
}

// Predict scores one row: the sum of tree outputs plus the base score,
// passed through the objective's link function.
func (b *Booster) Predict(row []float64) float64 {
	sum := b.BaseScore
	for i := range b.Trees {
		sum += b.Trees[i].eval(row)
	}
	if b.Objective == "binary:logistic" {
		return 1.0 / (1.0 + math.Exp(-sum))
	}
	return sum
}

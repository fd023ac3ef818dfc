package spatial

import (
	"sort"
	"sync"

	"curbcast/pkg/geo"
	"curbcast/pkg/model"
)

// MeterResult is a meter with its distance from a query point.
type MeterResult struct {
	Meter *model.Meter
	DistM float64
}

// MeterIndex answers nearest-neighbor queries over the meter catalogue.
// A flat scan with the equirectangular distance is fast enough for the
// ~30k meters in the city and avoids a second tree.
type MeterIndex struct {
	mu     sync.RWMutex
	meters []model.Meter
	loaded bool
}

// NewMeterIndex creates an empty index.
func NewMeterIndex() *MeterIndex {
	return &MeterIndex{}
}

// Load replaces the index contents.
func (idx *MeterIndex) Load(meters []model.Meter) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.meters = meters
	idx.loaded = true
}

// Loaded reports whether Load has completed at least once.
func (idx *MeterIndex) Loaded() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.loaded
}

// Count returns the number of indexed meters.
func (idx *MeterIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.meters)
}

// Nearest returns the k meters closest to p, nearest first. Equidistant
// meters keep their catalogue order.
func (idx *MeterIndex) Nearest(p geo.Point, k int) []MeterResult {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 || len(idx.meters) == 0 {
		return nil
	}

	results := make([]MeterResult, 0, len(idx.meters))
	for i := range idx.meters {
		m := &idx.meters[i]
		d := geo.EquirectDistance(p, geo.Point{Lat: m.Lat, Lng: m.Lng})
		results = append(results, MeterResult{Meter: m, DistM: d})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].DistM < results[j].DistM })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// CountWithin returns the number of meters within radiusM meters of p.
func (idx *MeterIndex) CountWithin(p geo.Point, radiusM float64) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := 0
	for i := range idx.meters {
		m := &idx.meters[i]
		if geo.EquirectDistance(p, geo.Point{Lat: m.Lat, Lng: m.Lng}) <= radiusM {
			n++
		}
	}
	return n
}

package spatial

import (
	"math"
	"sort"
	"sync"

	"curbcast/pkg/geo"
	"curbcast/pkg/model"
)

// GarageResult is a garage with its distance from a query point.
type GarageResult struct {
	Garage *model.Garage
	DistM  float64
}

// GarageIndex answers proximity queries over the off-street garage list.
// Distances use the full haversine formula; the list is small enough that
// the extra trigonometry does not matter.
type GarageIndex struct {
	mu      sync.RWMutex
	garages []model.Garage
}

// NewGarageIndex creates an empty index.
func NewGarageIndex() *GarageIndex {
	return &GarageIndex{}
}

// Load replaces the index contents.
func (idx *GarageIndex) Load(garages []model.Garage) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.garages = garages
}

// Count returns the number of indexed garages.
func (idx *GarageIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.garages)
}

// NearestDistance returns the distance to the closest garage, or NaN when
// no garages are loaded.
func (idx *GarageIndex) NearestDistance(p geo.Point) float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	best := math.NaN()
	for i := range idx.garages {
		g := &idx.garages[i]
		d := geo.Distance(p, geo.Point{Lat: g.Lat, Lng: g.Lng})
		if math.IsNaN(best) || d < best {
			best = d
		}
	}
	return best
}

// Nearby returns garages within twice the given radius, closest first,
// capped at 10. The doubled radius keeps nearby alternatives visible when
// the on-street search area is small.
func (idx *GarageIndex) Nearby(p geo.Point, radiusM float64) []GarageResult {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	limit := 2 * radiusM
	results := make([]GarageResult, 0, 10)
	for i := range idx.garages {
		g := &idx.garages[i]
		d := geo.Distance(p, geo.Point{Lat: g.Lat, Lng: g.Lng})
		if d <= limit {
			results = append(results, GarageResult{Garage: g, DistM: d})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].DistM < results[j].DistM })
	if len(results) > 10 {
		results = results[:10]
	}
	return results
}

// Package spatial provides in-memory geographic indexes over the static
// catalogues. All indexes are loaded once at startup and are read-only
// afterwards, so they are safe for concurrent use.
package spatial

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"

	"curbcast/pkg/geo"
	"curbcast/pkg/model"
)

// sfBound covers San Francisco with margin. Points outside it are
// skipped at load time.
var sfBound = orb.Bound{
	Min: orb.Point{-123.2, 37.2},
	Max: orb.Point{-121.7, 38.2},
}

type spotPointer struct {
	spot *model.Spot
}

func (p spotPointer) Point() orb.Point {
	return orb.Point{p.spot.Lng, p.spot.Lat}
}

// SpotResult is a spot with its distance from a query center.
type SpotResult struct {
	Spot  *model.Spot
	DistM float64
}

// SpotIndex answers radius queries over the curb-spot catalogue.
type SpotIndex struct {
	mu     sync.RWMutex
	tree   *quadtree.Quadtree
	byID   map[int64]*model.Spot
	loaded bool
}

// NewSpotIndex creates an empty index.
func NewSpotIndex() *SpotIndex {
	return &SpotIndex{
		tree: quadtree.New(sfBound),
		byID: make(map[int64]*model.Spot),
	}
}

// Load replaces the index contents with the given spots.
func (idx *SpotIndex) Load(spots []model.Spot) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.tree = quadtree.New(sfBound)
	idx.byID = make(map[int64]*model.Spot, len(spots))
	for i := range spots {
		sp := &spots[i]
		if !sfBound.Contains(orb.Point{sp.Lng, sp.Lat}) {
			slog.Warn("spot outside service area, skipping",
				"spot_id", sp.SpotID, "lat", sp.Lat, "lng", sp.Lng)
			continue
		}
		if err := idx.tree.Add(spotPointer{spot: sp}); err != nil {
			slog.Warn("spot not indexable, skipping", "spot_id", sp.SpotID, "error", err)
			continue
		}
		idx.byID[sp.SpotID] = sp
	}
	idx.loaded = true
}

// Loaded reports whether Load has completed at least once.
func (idx *SpotIndex) Loaded() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.loaded
}

// Count returns the number of indexed spots.
func (idx *SpotIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byID)
}

// Get returns a spot by id, or nil.
func (idx *SpotIndex) Get(spotID int64) *model.Spot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.byID[spotID]
}

// Query returns up to limit spots within radiusM meters of center, sorted
// nearest first. The quadtree bounding box prefilter over-selects, so each
// candidate is re-checked with the exact distance.
func (idx *SpotIndex) Query(center geo.Point, radiusM float64, limit int) []SpotResult {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	dLat, dLng := geo.MetersToDegrees(radiusM, center.Lat)
	box := orb.Bound{
		Min: orb.Point{center.Lng - dLng, center.Lat - dLat},
		Max: orb.Point{center.Lng + dLng, center.Lat + dLat},
	}

	candidates := idx.tree.InBound(nil, box)
	results := make([]SpotResult, 0, len(candidates))
	for _, c := range candidates {
		sp := c.(spotPointer).spot
		d := geo.Distance(center, geo.Point{Lat: sp.Lat, Lng: sp.Lng})
		if d <= radiusM {
			results = append(results, SpotResult{Spot: sp, DistM: d})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].DistM < results[j].DistM })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

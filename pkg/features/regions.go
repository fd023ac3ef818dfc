package features

import (
	"strings"

	"curbcast/pkg/config"
	"curbcast/pkg/geo"
	"curbcast/pkg/model"
)

// regionIDs fixes the integer encoding of the neighborhood keys. The ids
// are part of the trained models' vocabulary and must not change.
var regionIDs = map[string]int{
	"financial_district": 0,
	"soma":               1,
	"mission":            2,
	"north_beach":        3,
	"marina":             4,
	"civic_center":       5,
	"union_square":       6,
	"chinatown":          7,
	"castro":             8,
	"haight":             9,
}

// Regions resolves spots to neighborhood keys using the configured
// region table.
type Regions struct {
	byKey  map[string]config.Neighborhood
	byName map[string]string // lowercased display name -> key
}

// NewRegions builds the resolver from configuration.
func NewRegions(cfg *config.Config) *Regions {
	r := &Regions{
		byKey:  make(map[string]config.Neighborhood, len(cfg.Neighborhoods)),
		byName: make(map[string]string, len(cfg.Neighborhoods)),
	}
	for key, n := range cfg.Neighborhoods {
		r.byKey[key] = n
		r.byName[strings.ToLower(n.Name)] = key
	}
	return r
}

// ID returns the fixed integer id for a neighborhood key, or -1.
func (r *Regions) ID(key string) int {
	if id, ok := regionIDs[key]; ok {
		return id
	}
	return -1
}

// KeyForSpot resolves a spot to a neighborhood key. The spot's own
// neighborhood name wins when it matches the table; otherwise the spot is
// assigned to the nearest region whose declared radius contains it.
func (r *Regions) KeyForSpot(spot *model.Spot) string {
	if spot.Neighborhood != "" {
		name := strings.ToLower(strings.TrimSpace(spot.Neighborhood))
		if key, ok := r.byName[name]; ok {
			return key
		}
		if _, ok := r.byKey[name]; ok {
			return name
		}
	}
	return r.KeyForPoint(geo.Point{Lat: spot.Lat, Lng: spot.Lng})
}

// KeyForPoint returns the key of the nearest region whose radius contains
// the point, or "" when the point is in none.
func (r *Regions) KeyForPoint(p geo.Point) string {
	best := ""
	bestDist := 0.0
	for key, n := range r.byKey {
		d := geo.Distance(p, geo.Point{Lat: n.Lat, Lng: n.Lng})
		if d > n.RadiusM {
			continue
		}
		if best == "" || d < bestDist {
			best, bestDist = key, d
		}
	}
	return best
}

package features

import (
	"context"
	"math"
	"time"

	"curbcast/pkg/geo"
	"curbcast/pkg/model"
)

// spatialSource emits location features derived from the in-memory
// meter and garage indexes.
type spatialSource struct {
	deps Deps
}

func (spatialSource) Name() string { return "spatial" }

func (s *spatialSource) Contribute(_ context.Context, spot *model.Spot, _ time.Time, out *Set) error {
	p := geo.Point{Lat: spot.Lat, Lng: spot.Lng}
	v := out.Values

	v["lat"] = spot.Lat
	v["lng"] = spot.Lng

	if id := s.deps.Regions.ID(s.deps.Regions.KeyForSpot(spot)); id >= 0 {
		v["neighborhood_id"] = float64(id)
	} else {
		v["neighborhood_id"] = math.NaN()
	}

	if nearest := s.deps.Meters.Nearest(p, 1); len(nearest) > 0 {
		v["dist_to_nearest_meter"] = nearest[0].DistM
	} else {
		v["dist_to_nearest_meter"] = math.NaN()
	}

	within200 := s.deps.Meters.CountWithin(p, 200)
	v["meters_within_100m"] = float64(s.deps.Meters.CountWithin(p, 100))
	v["meters_within_200m"] = float64(within200)
	v["block_density"] = float64(within200) / 4.0

	v["dist_to_nearest_garage"] = s.deps.Garages.NearestDistance(p)

	return nil
}

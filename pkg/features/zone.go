package features

import (
	"context"
	"time"

	"curbcast/pkg/model"
)

// zoneTypeCodes encodes the zone classification for scoring. Unknown
// values map to mixed.
var zoneTypeCodes = map[string]float64{
	"residential": 0,
	"commercial":  1,
	"restaurant":  2,
	"gym":         3,
	"mixed":       4,
}

// EncodeZoneType returns the integer code for a zone type string.
func EncodeZoneType(zone string) float64 {
	if code, ok := zoneTypeCodes[zone]; ok {
		return code
	}
	return zoneTypeCodes["mixed"]
}

// zoneSource resolves the spot's zone classification. Priority: manual
// per-spot override, then the configured neighborhood mapping, then
// "mixed".
type zoneSource struct {
	deps Deps
}

func (zoneSource) Name() string { return "zone" }

func (s *zoneSource) Contribute(ctx context.Context, spot *model.Spot, _ time.Time, out *Set) error {
	out.ZoneType = "mixed"

	if zone, ok, err := s.deps.Zones.GetZoneOverride(ctx, spot.SpotID); err != nil {
		return err
	} else if ok {
		out.ZoneType = zone
		return nil
	}

	if key := s.deps.Regions.KeyForSpot(spot); key != "" {
		out.ZoneType = s.deps.Cfg.ZoneForNeighborhood(key)
	}
	return nil
}

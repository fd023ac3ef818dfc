package features

import (
	"context"
	"regexp"
	"strings"
	"time"

	"curbcast/pkg/geo"
	"curbcast/pkg/model"
)

// curbColorCodes encodes the painted curb colour.
var curbColorCodes = map[string]float64{
	"none":   0,
	"green":  1,
	"white":  2,
	"red":    3,
	"yellow": 4,
	"blue":   5,
}

// noParkingSignValues are the detection ontology values that mean
// parking is prohibited outright.
var noParkingSignValues = map[string]bool{
	"regulatory--no-parking--g1":              true,
	"regulatory--no-parking--g2":              true,
	"regulatory--no-stopping-or-standing--g1": true,
	"regulatory--no-standing-or-parking--g1":  true,
}

// timeLimitSignValues mark a posted maximum parking duration.
var timeLimitSignValues = map[string]bool{
	"regulatory--parking-restrictions--g1":     true,
	"regulatory--maximum-duration-parking--g1": true,
}

// defaultTimeLimitMinutes applies when a limit is posted but the duration
// cannot be parsed.
const defaultTimeLimitMinutes = 120

var timeLimitPattern = regexp.MustCompile(`(\d+)\s*(hour|hr|min)`)

// signSearchRadiusM bounds the sign detection lookup around a spot.
const signSearchRadiusM = 30

// signRuleSource emits regulatory features parsed from the spot's static
// fields and from nearby sign detections.
type signRuleSource struct {
	deps Deps
}

func (signRuleSource) Name() string { return "sign_rules" }

// ParseTimeLimit extracts a limit in minutes from a regulation string.
// Returns (0, false) when no limit is present.
func ParseTimeLimit(s string) (int, bool) {
	if strings.TrimSpace(s) == "" {
		return 0, false
	}
	m := timeLimitPattern.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return defaultTimeLimitMinutes, true
	}
	n := atoi(m[1])
	if strings.HasPrefix(m[2], "h") {
		n *= 60
	}
	return n, true
}

func (s *signRuleSource) Contribute(ctx context.Context, spot *model.Spot, _ time.Time, out *Set) error {
	v := out.Values

	limit, has := ParseTimeLimit(spot.TimeLimit)
	v["has_time_limit"] = boolFeature(has)
	if has {
		v["time_limit_minutes"] = float64(limit)
	} else {
		v["time_limit_minutes"] = 0
	}

	v["has_permit_zone"] = boolFeature(strings.TrimSpace(spot.PermitZone) != "")

	color := strings.ToLower(strings.TrimSpace(spot.CurbColor))
	if code, ok := curbColorCodes[color]; ok {
		v["curb_color"] = code
	} else {
		v["curb_color"] = curbColorCodes["none"]
	}

	center := geo.Point{Lat: spot.Lat, Lng: spot.Lng}
	dLat, dLng := geo.MetersToDegrees(signSearchRadiusM, spot.Lat)
	signs, err := s.deps.Signs.SignsInBox(ctx,
		spot.Lat-dLat, spot.Lat+dLat, spot.Lng-dLng, spot.Lng+dLng)
	if err != nil {
		return err
	}
	noParking, timeLimitSigns := 0, 0
	for _, sf := range signs {
		if geo.Distance(center, geo.Point{Lat: sf.Lat, Lng: sf.Lng}) > signSearchRadiusM {
			continue
		}
		if noParkingSignValues[sf.ObjectValue] {
			noParking++
		}
		if timeLimitSignValues[sf.ObjectValue] {
			timeLimitSigns++
		}
	}
	v["no_parking_signs_30m"] = float64(noParking)

	// A posted regulation or duration sign implies a limit even when the
	// spot record carries none.
	if !has {
		regs, err := s.deps.Signs.RegulationsInBox(ctx,
			spot.Lat-dLat, spot.Lat+dLat, spot.Lng-dLng, spot.Lng+dLng)
		if err != nil {
			return err
		}
		for _, reg := range regs {
			if geo.Distance(center, geo.Point{Lat: reg.Lat, Lng: reg.Lng}) > signSearchRadiusM {
				continue
			}
			if limit, ok := ParseTimeLimit(reg.TimeLimit); ok {
				v["has_time_limit"] = 1
				v["time_limit_minutes"] = float64(limit)
				has = true
				break
			}
		}
		if !has && timeLimitSigns > 0 {
			v["has_time_limit"] = 1
			v["time_limit_minutes"] = defaultTimeLimitMinutes
		}
	}

	return nil
}

package api

import (
	"math"
	"math/rand"

	"curbcast/pkg/config"
	"curbcast/pkg/geo"
)

// gateCoords coarsens a spot's coordinates based on tier and distance
// from the caller. Pro tier gets exact coordinates up close, ±fuzz
// meters of uniform jitter at medium range, and block-level rounding
// beyond; free tier always gets block-level (~111 m) rounding.
func gateCoords(lat, lng, distanceM float64, tier string, cfg *config.ProTierPrivacy) (float64, float64) {
	if tier == "pro" {
		if distanceM <= cfg.ExactWithinM {
			return lat, lng
		}
		if distanceM <= cfg.FuzzyWithinM {
			dLat, dLng := geo.MetersToDegrees(cfg.FuzzMeters, lat)
			lat += (rand.Float64()*2 - 1) * dLat
			lng += (rand.Float64()*2 - 1) * dLng
			return roundTo(lat, 5), roundTo(lng, 5)
		}
	}
	return roundTo(lat, 3), roundTo(lng, 3)
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

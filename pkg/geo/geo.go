package geo

import "math"

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// EarthRadiusM is the mean Earth radius in meters.
const EarthRadiusM = 6371000.0

// Distance calculates the Haversine distance between two points in meters.
func Distance(p1, p2 Point) float64 {
	dLat := (p2.Lat - p1.Lat) * (math.Pi / 180.0)
	dLng := (p2.Lng - p1.Lng) * (math.Pi / 180.0)
	lat1 := p1.Lat * (math.Pi / 180.0)
	lat2 := p2.Lat * (math.Pi / 180.0)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// EquirectDistance approximates the distance between two points in meters
// using an equirectangular projection. Much cheaper than Haversine and
// accurate enough for sub-kilometer nearest-neighbor ranking.
func EquirectDistance(p1, p2 Point) float64 {
	phi1 := p1.Lat * (math.Pi / 180.0)
	phi2 := p2.Lat * (math.Pi / 180.0)
	dPhi := phi2 - phi1
	dLam := (p2.Lng - p1.Lng) * (math.Pi / 180.0) * math.Cos(phi1)
	return EarthRadiusM * math.Sqrt(dPhi*dPhi+dLam*dLam)
}

// MetersToDegrees converts a distance in meters to approximate latitude and
// longitude deltas at the given latitude.
func MetersToDegrees(meters, lat float64) (dLat, dLng float64) {
	dLat = meters / 111320.0
	dLng = meters / (111320.0 * math.Cos(lat*(math.Pi/180.0)))
	return dLat, dLng
}

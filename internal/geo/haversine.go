package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371

// LatLng is a WGS84 coordinate in degrees, in the domain's natural
// (latitude, longitude) order.
type LatLng struct {
	Lat float64
	Lng float64
}

// Distance returns the great-circle (haversine) distance between two points
// in kilometres.
func Distance(a, b LatLng) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	deltaPhi := (b.Lat - a.Lat) * math.Pi / 180
	deltaLambda := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	// Rounding can push h a hair past 1 for antipodal points.
	h = math.Min(h, 1)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// RoundCoordinate rounds a coordinate to the 5 decimal places the store
// keeps. float32 wire values like 40.1 decode as 40.099998.
func RoundCoordinate(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

// ValidCoordinate rejects out-of-range values and the (0,0) placeholder
// some AVL units emit before they get a fix.
func ValidCoordinate(lat, lng float64) bool {
	if lat == 0 && lng == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by the Haversine formula.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether the point is the {0,0} "no fix yet" sentinel.
func (p Point) IsZero() bool {
	return p.Latitude == 0 && p.Longitude == 0
}

// IsFinite reports whether both coordinates are real numbers.
func (p Point) IsFinite() bool {
	return isFinite(p.Latitude) && isFinite(p.Longitude)
}

// Distance returns the great-circle distance in meters between two coordinates.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	if !isFinite(lat1) || !isFinite(lon1) || !isFinite(lat2) || !isFinite(lon2) {
		return math.NaN()
	}

	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// DistanceBetween is Distance for two Points.
func DistanceBetween(a, b Point) float64 {
	return Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// Within reports whether point lies inside the circle (center, radiusMeters).
// The boundary counts as inside. NaN distances and NaN radii are outside.
func Within(point, center Point, radiusMeters float64) bool {
	d := DistanceBetween(point, center)
	if math.IsNaN(d) || math.IsNaN(radiusMeters) {
		return false
	}
	return d <= radiusMeters
}

// RoundMeters rounds a distance to whole meters. NaN and infinite values map to -1.
func RoundMeters(d float64) int {
	if !isFinite(d) {
		return -1
	}
	return int(math.Round(d))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

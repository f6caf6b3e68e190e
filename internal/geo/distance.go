package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle math
const EarthRadiusMeters = 6371000.0

// GreatCircleDistance returns the haversine distance in meters between two
// geographic points (orb.Point is lon/lat ordered)
func GreatCircleDistance(a, b orb.Point) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }

	dLat := toRad(b.Lat() - a.Lat())
	dLon := toRad(b.Lon() - a.Lon())
	lat1 := toRad(a.Lat())
	lat2 := toRad(b.Lat())

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// MetersToDegrees converts a distance in meters to approximate lon/lat deltas
// at the given latitude. Used to build a search bbox around a point.
func MetersToDegrees(lat, meters float64) (dLon, dLat float64) {
	latRad := lat * math.Pi / 180.0
	metersPerDegreeLat := EarthRadiusMeters * math.Pi / 180.0
	metersPerDegreeLon := metersPerDegreeLat * math.Cos(latRad)

	return meters / metersPerDegreeLon, meters / metersPerDegreeLat
}

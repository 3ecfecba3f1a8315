// Package geo provides great-circle distance calculations for dispatch
// proximity ranking.
package geo

import (
	"math"

	"github.com/jihwankim/aegis/pkg/model"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula
const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two positions in
// kilometers.
func HaversineKm(a, b model.GeoLocation) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

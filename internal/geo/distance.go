// Package geo computes great-circle distances between coordinates.
package geo

import (
	"math"

	"github.com/mr1hm/go-shelter-finder/internal/models"
)

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0

// Distance returns the haversine distance in kilometers between a and b.
// Callers must reject non-finite coordinates before calling.
func Distance(a, b models.Coordinate) float64 {
	lat1Rad := toRadians(a.Latitude)
	lat2Rad := toRadians(b.Latitude)
	deltaLat := toRadians(b.Latitude - a.Latitude)
	deltaLng := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// Round rounds km to the given number of decimal places for display.
func Round(km float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(km*p) / p
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

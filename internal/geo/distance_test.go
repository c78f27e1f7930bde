package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mr1hm/go-shelter-finder/internal/models"
)

var (
	higashiSchool = models.Coordinate{Latitude: 34.7666, Longitude: 135.6281}
	firstJunior   = models.Coordinate{Latitude: 34.7650, Longitude: 135.6270}
)

func TestDistance_Identity(t *testing.T) {
	for _, c := range []models.Coordinate{
		higashiSchool,
		{Latitude: 0, Longitude: 0},
		{Latitude: -89.9, Longitude: 179.9},
	} {
		assert.Equal(t, 0.0, Distance(c, c))
	}
}

func TestDistance_Symmetric(t *testing.T) {
	pairs := [][2]models.Coordinate{
		{higashiSchool, firstJunior},
		{{Latitude: 35.6762, Longitude: 139.6503}, {Latitude: 34.6937, Longitude: 135.5023}},
		{{Latitude: -33.8688, Longitude: 151.2093}, {Latitude: 51.5074, Longitude: -0.1278}},
		{{Latitude: 10, Longitude: 179.5}, {Latitude: 10, Longitude: -179.5}},
	}

	for _, p := range pairs {
		ab := Distance(p[0], p[1])
		ba := Distance(p[1], p[0])
		assert.InEpsilon(t, ab, ba, 1e-9)
	}
}

func TestDistance_KnownValue(t *testing.T) {
	d := Distance(higashiSchool, firstJunior)

	// ~0.2 km between the two Neyagawa shelters
	assert.Greater(t, d, 0.1)
	assert.Less(t, d, 0.3)
}

func TestDistance_TokyoOsaka(t *testing.T) {
	tokyo := models.Coordinate{Latitude: 35.6762, Longitude: 139.6503}
	osaka := models.Coordinate{Latitude: 34.6937, Longitude: 135.5023}

	assert.InDelta(t, 397, Distance(tokyo, osaka), 5)
}

func TestDistance_NonNegative(t *testing.T) {
	d := Distance(models.Coordinate{Latitude: 90, Longitude: 0}, models.Coordinate{Latitude: -90, Longitude: 0})
	assert.InDelta(t, math.Pi*EarthRadiusKm, d, 1e-6)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.2, Round(0.1987, 1))
	assert.Equal(t, 1.0, Round(0.96, 1))
	assert.Equal(t, 12.35, Round(12.346, 2))
}

package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"staff-transport/internal/models"
)

func TestDistanceKmSamePoint(t *testing.T) {
	p := models.Coordinates{Lat: -18.9137, Lng: 47.5361}
	assert.Equal(t, 0.0, DistanceKm(p, p))
}

func TestDistanceKmSymmetric(t *testing.T) {
	pairs := [][2]models.Coordinates{
		{{Lat: -18.91, Lng: 47.53}, {Lat: -18.87, Lng: 47.50}},
		{{Lat: 48.8566, Lng: 2.3522}, {Lat: 51.5074, Lng: -0.1278}},
		{{Lat: 89.9, Lng: 179.9}, {Lat: -89.9, Lng: -179.9}},
	}

	for _, p := range pairs {
		assert.InDelta(t, DistanceKm(p[0], p[1]), DistanceKm(p[1], p[0]), 1e-9)
	}
}

func TestDistanceKmKnownValues(t *testing.T) {
	paris := models.Coordinates{Lat: 48.8566, Lng: 2.3522}
	london := models.Coordinates{Lat: 51.5074, Lng: -0.1278}

	// Paris to London is roughly 343.5 km
	assert.InDelta(t, 343.5, DistanceKm(paris, london), 1.0)

	// One degree of latitude along a meridian is ~111.19 km
	a := models.Coordinates{Lat: 10, Lng: 20}
	b := models.Coordinates{Lat: 11, Lng: 20}
	assert.InDelta(t, 111.19, DistanceKm(a, b), 0.01)
}

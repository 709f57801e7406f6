package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"staff-transport/internal/models"
)

func TestParseDepartureDescriptor(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
		want       models.Coordinates
		wantOK     bool
	}{
		{"lat first", "-18.91,47.53", models.Coordinates{Lat: -18.91, Lng: 47.53}, true},
		// Both values are valid latitudes, so the first stays the latitude; a
		// swapped reading would need the first value outside [-90, 90].
		{"both in lat range keeps first as lat", "47.53,-18.91", models.Coordinates{Lat: 47.53, Lng: -18.91}, true},
		{"only second in lat range", "120.5,-18.91", models.Coordinates{Lat: -18.91, Lng: 120.5}, true},
		{"semicolon and spaces", "  36.80 ;  10.18 ", models.Coordinates{Lat: 36.80, Lng: 10.18}, true},
		{"whitespace only separator", "36.80 10.18", models.Coordinates{Lat: 36.80, Lng: 10.18}, true},
		{"mixed run of separators", "36.80, ;\t10.18", models.Coordinates{Lat: 36.80, Lng: 10.18}, true},
		{"both out of lat range", "120,130", models.Coordinates{}, false},
		{"out of any range", "200,10", models.Coordinates{}, false},
		{"not numeric", "Gare centrale", models.Coordinates{}, false},
		{"one token", "36.80", models.Coordinates{}, false},
		{"three tokens", "36.80,10.18,5", models.Coordinates{}, false},
		{"zero placeholder", "0,0", models.Coordinates{}, false},
		{"nan", "NaN,10", models.Coordinates{}, false},
		{"infinity", "Inf,10", models.Coordinates{}, false},
		{"empty", "", models.Coordinates{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDepartureDescriptor(tt.descriptor)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want.Lat, got.Lat, 1e-9)
				assert.InDelta(t, tt.want.Lng, got.Lng, 1e-9)
			}
		})
	}
}

func TestParseDepartureDescriptorLatitudeDisambiguation(t *testing.T) {
	got, ok := ParseDepartureDescriptor("147.53,-18.91")
	assert.True(t, ok)
	assert.Equal(t, models.Coordinates{Lat: -18.91, Lng: 147.53}, got)
}

func TestResolveDepartureFromDescriptor(t *testing.T) {
	axis := models.Axis{ID: 1, Departure: "-18.91,47.53"}
	stops := []models.Stop{{ID: 1, Lat: 10, Lng: 10, Order: 1}}

	got, ok := ResolveDeparture(axis, stops)
	assert.True(t, ok)
	assert.Equal(t, models.Coordinates{Lat: -18.91, Lng: 47.53}, got)
}

func TestResolveDepartureFallsBackToFirstStop(t *testing.T) {
	axis := models.Axis{ID: 1, Departure: "Main depot"}
	stops := []models.Stop{
		{ID: 1, Lat: 36.83, Lng: 10.20, Order: 3},
		{ID: 2, Lat: 36.81, Lng: 10.18, Order: 1},
		{ID: 3, Lat: 36.82, Lng: 10.19, Order: 1},
	}

	got, ok := ResolveDeparture(axis, stops)
	assert.True(t, ok)
	// Smallest order; catalog order breaks the tie
	assert.Equal(t, models.Coordinates{Lat: 36.81, Lng: 10.18}, got)
}

func TestResolveDepartureFirstStopInvalid(t *testing.T) {
	axis := models.Axis{ID: 1}
	stops := []models.Stop{
		{ID: 1, Lat: 0, Lng: 0, Order: 1},
		{ID: 2, Lat: 36.81, Lng: 10.18, Order: 2},
	}

	_, ok := ResolveDeparture(axis, stops)
	assert.False(t, ok)
}

func TestResolveDepartureNoSource(t *testing.T) {
	_, ok := ResolveDeparture(models.Axis{ID: 1, Departure: "  "}, nil)
	assert.False(t, ok)
}

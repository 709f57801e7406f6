package testutil

import (
	"context"
	"strings"
	"sync"

	"staff-transport/internal/geocoding"
	"staff-transport/internal/models"
)

// MockGeocoder resolves addresses from a fixed table
type MockGeocoder struct {
	Addresses map[string]models.Coordinates

	mu    sync.Mutex
	calls []string
}

func NewMockGeocoder() *MockGeocoder {
	return &MockGeocoder{Addresses: make(map[string]models.Coordinates)}
}

func (g *MockGeocoder) Geocode(ctx context.Context, address string) (*geocoding.GeocodingResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, address)
	g.mu.Unlock()

	coords, ok := g.Addresses[address]
	if !ok {
		return nil, &geocoding.ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}
	return &geocoding.GeocodingResult{Coords: coords, DisplayName: address}, nil
}

func (g *MockGeocoder) Search(ctx context.Context, query string, limit int) ([]geocoding.GeocodingResult, error) {
	results := []geocoding.GeocodingResult{}
	for address, coords := range g.Addresses {
		if strings.Contains(strings.ToLower(address), strings.ToLower(query)) {
			results = append(results, geocoding.GeocodingResult{Coords: coords, DisplayName: address})
		}
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// Calls returns the addresses looked up so far
func (g *MockGeocoder) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

package testutil

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"staff-transport/internal/distance"
	"staff-transport/internal/models"
)

// RouteCall tracks a call to the route resolver
type RouteCall struct {
	Start models.Coordinates
	End   models.Coordinates
}

// MockRouteResolver is a deterministic RouteResolver for tests.
// By default it returns a three-point road route 30% longer than the
// straight line; Unreachable makes it behave like an exhausted upstream.
type MockRouteResolver struct {
	Unreachable bool
	Overrides   map[string]*distance.RouteResult
	// Gate, when set, blocks every call until it is closed
	Gate chan struct{}

	mu    sync.Mutex
	calls []RouteCall
}

func NewMockRouteResolver() *MockRouteResolver {
	return &MockRouteResolver{
		Overrides: make(map[string]*distance.RouteResult),
	}
}

func (m *MockRouteResolver) makeKey(start, end models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f", start.Lat, start.Lng, end.Lat, end.Lng)
}

// SetRoute sets the result for a specific start-end pair
func (m *MockRouteResolver) SetRoute(start, end models.Coordinates, result *distance.RouteResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Overrides[m.makeKey(start, end)] = result
}

// ResolveRoute records the call and returns the configured route
func (m *MockRouteResolver) ResolveRoute(ctx context.Context, start, end models.Coordinates) *distance.RouteResult {
	m.mu.Lock()
	m.calls = append(m.calls, RouteCall{Start: start, End: end})
	override, hasOverride := m.Overrides[m.makeKey(start, end)]
	gate := m.Gate
	unreachable := m.Unreachable
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}

	if hasOverride {
		result := *override
		return &result
	}

	if unreachable {
		return distance.FallbackRoute(start, end)
	}

	km := math.Round(distance.DistanceKm(start, end)*1.3*1000) / 1000
	mid := models.Coordinates{Lat: (start.Lat + end.Lat) / 2, Lng: (start.Lng+end.Lng)/2 + 0.001}
	return &distance.RouteResult{
		DistanceKm:  km,
		DurationMin: int(math.Round(km / 40 * 60)),
		Path:        []models.Coordinates{start, mid, end},
	}
}

// Calls returns a copy of the recorded calls
func (m *MockRouteResolver) Calls() []RouteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RouteCall(nil), m.calls...)
}

// ResetCalls clears the recorded calls
func (m *MockRouteResolver) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// RecordingSleeper records requested sleeps without waiting
type RecordingSleeper struct {
	mu     sync.Mutex
	Waits  []time.Duration
	Cancel bool
}

// Sleep matches distance.RetryPolicy.Sleep
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Waits = append(s.Waits, d)
	if s.Cancel {
		return context.Canceled
	}
	return ctx.Err()
}

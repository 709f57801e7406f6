package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"staff-transport/internal/models"
)

// RouteResult is a resolved route between two points
type RouteResult struct {
	DistanceKm  float64
	DurationMin int
	Path        []models.Coordinates
	IsFallback  bool
}

// RouteResolver resolves road routes between two points.
// It always returns a usable result; upstream failures produce a fallback.
type RouteResolver interface {
	ResolveRoute(ctx context.Context, start, end models.Coordinates) *RouteResult
}

// HTTPDoer is the transport used to reach the routing service
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrRouteRequestFailed is returned when a single OSRM route call fails
type ErrRouteRequestFailed struct {
	Attempt int
	Reason  string
}

func (e *ErrRouteRequestFailed) Error() string {
	return fmt.Sprintf("route request failed (attempt %d): %s", e.Attempt, e.Reason)
}

const (
	// DefaultOSRMBaseURL is the public OSRM demo server
	DefaultOSRMBaseURL = "https://router.project-osrm.org"

	minFallbackMinutes = 5
	fallbackMinPerKm   = 2.5
)

type osrmRouteResolver struct {
	baseURL    string
	httpClient HTTPDoer
	retry      RetryPolicy
}

type osrmRouteResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64         `json:"distance"`
	Duration float64         `json:"duration"`
	Geometry json.RawMessage `json:"geometry"`
}

// NewOSRMRouteResolver creates a route resolver backed by the OSRM route service
func NewOSRMRouteResolver(baseURL string, retry RetryPolicy) RouteResolver {
	if baseURL == "" {
		baseURL = DefaultOSRMBaseURL
	}
	return &osrmRouteResolver{
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
		retry:      retry,
	}
}

// NewOSRMRouteResolverWithClient is like NewOSRMRouteResolver with a custom transport
func NewOSRMRouteResolverWithClient(baseURL string, client HTTPDoer, retry RetryPolicy) RouteResolver {
	r := NewOSRMRouteResolver(baseURL, retry).(*osrmRouteResolver)
	if client != nil {
		r.httpClient = client
	}
	return r
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   15 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 15 * time.Second,
			MaxIdleConnsPerHost: 4,
		},
	}
}

func (r *osrmRouteResolver) ResolveRoute(ctx context.Context, start, end models.Coordinates) *RouteResult {
	log := logrus.WithFields(logrus.Fields{
		"component": "osrm",
		"start":     fmt.Sprintf("%.6f,%.6f", start.Lat, start.Lng),
		"end":       fmt.Sprintf("%.6f,%.6f", end.Lat, end.Lng),
	})

	if !start.IsValid() || !end.IsValid() {
		log.Warn("Invalid endpoint coordinates, using straight-line fallback")
		return FallbackRoute(start, end)
	}

	attempts := r.retry.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := r.fetchRoute(ctx, start, end, attempt)
		if err == nil {
			log.WithFields(logrus.Fields{
				"attempt":      attempt,
				"distance_km":  result.DistanceKm,
				"duration_min": result.DurationMin,
				"points":       len(result.Path),
			}).Debug("Route resolved")
			return result
		}

		log.WithError(err).WithField("attempt", attempt).Warn("Route request failed")

		if attempt < attempts {
			if err := r.retry.wait(ctx, attempt); err != nil {
				log.WithError(err).Warn("Retry wait interrupted")
				break
			}
		}
	}

	fallback := FallbackRoute(start, end)
	log.WithFields(logrus.Fields{
		"attempts":     attempts,
		"distance_km":  fallback.DistanceKm,
		"duration_min": fallback.DurationMin,
	}).Warn("Routing service unavailable, using straight-line fallback")
	return fallback
}

func (r *osrmRouteResolver) fetchRoute(ctx context.Context, start, end models.Coordinates, attempt int) (*RouteResult, error) {
	// OSRM expects longitude first
	queryURL := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson&steps=false",
		r.baseURL, start.Lng, start.Lat, end.Lng, end.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrRouteRequestFailed{Attempt: attempt, Reason: err.Error()}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &ErrRouteRequestFailed{Attempt: attempt, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ErrRouteRequestFailed{
			Attempt: attempt,
			Reason:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var osrmResp osrmRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&osrmResp); err != nil {
		return nil, &ErrRouteRequestFailed{Attempt: attempt, Reason: err.Error()}
	}

	if osrmResp.Code != "Ok" {
		return nil, &ErrRouteRequestFailed{
			Attempt: attempt,
			Reason:  fmt.Sprintf("OSRM error: %s %s", osrmResp.Code, osrmResp.Message),
		}
	}
	if len(osrmResp.Routes) == 0 {
		return nil, &ErrRouteRequestFailed{Attempt: attempt, Reason: "no routes returned"}
	}

	route := osrmResp.Routes[0]
	path, err := decodeRouteGeometry(route.Geometry)
	if err != nil {
		return nil, &ErrRouteRequestFailed{Attempt: attempt, Reason: err.Error()}
	}

	return &RouteResult{
		DistanceKm:  math.Round(route.Distance) / 1000,
		DurationMin: int(math.Round(route.Duration / 60)),
		Path:        path,
		IsFallback:  false,
	}, nil
}

// decodeRouteGeometry converts a GeoJSON LineString ([lng,lat] pairs) to [lat,lng] points
func decodeRouteGeometry(raw json.RawMessage) ([]models.Coordinates, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing route geometry")
	}

	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("invalid route geometry: %w", err)
	}

	line, ok := g.(*geom.LineString)
	if !ok {
		return nil, fmt.Errorf("unexpected route geometry type %T", g)
	}
	if line.NumCoords() == 0 {
		return nil, fmt.Errorf("empty route geometry")
	}

	path := make([]models.Coordinates, 0, line.NumCoords())
	for _, c := range line.Coords() {
		path = append(path, models.Coordinates{Lat: c.Y(), Lng: c.X()})
	}
	return path, nil
}

// FallbackRoute builds the straight-line substitute used when routing is unavailable
func FallbackRoute(start, end models.Coordinates) *RouteResult {
	km := DistanceKm(start, end)
	minutes := int(math.Round(km * fallbackMinPerKm))
	if minutes < minFallbackMinutes {
		minutes = minFallbackMinutes
	}

	return &RouteResult{
		DistanceKm:  km,
		DurationMin: minutes,
		Path:        []models.Coordinates{start, end},
		IsFallback:  true,
	}
}

package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"staff-transport/internal/models"
)

// DefaultNominatimBaseURL is the public OpenStreetMap Nominatim instance
const DefaultNominatimBaseURL = "https://nominatim.openstreetmap.org"

// GeocodingResult contains the result of a geocoding operation
type GeocodingResult struct {
	Coords      models.Coordinates `json:"coords"`
	DisplayName string             `json:"display_name"`
}

// Geocoder provides address-to-coordinates conversion.
// Failures are never retried.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeocodingResult, error)
	Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error)
}

// ErrGeocodingFailed is returned when an address cannot be geocoded
type ErrGeocodingFailed struct {
	Address string
	Reason  string
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for address: %s - %s", e.Address, e.Reason)
}

type nominatimGeocoder struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	rateLimiter *time.Ticker
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimGeocoder creates a new Nominatim geocoder limited to one request per second
func NewNominatimGeocoder(baseURL string) Geocoder {
	if baseURL == "" {
		baseURL = DefaultNominatimBaseURL
	}
	return &nominatimGeocoder{
		baseURL:   baseURL,
		userAgent: "StaffTransport/1.0",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		rateLimiter: time.NewTicker(1 * time.Second),
	}
}

func (g *nominatimGeocoder) Geocode(ctx context.Context, address string) (*GeocodingResult, error) {
	results, err := g.query(ctx, address, 1)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		logrus.WithField("address", address).Warn("No geocoding results found")
		return nil, &ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}

	lat, lng, err := parseLatLon(results[0])
	if err != nil {
		return nil, &ErrGeocodingFailed{Address: address, Reason: err.Error()}
	}

	logrus.WithFields(logrus.Fields{
		"component": "geocoding",
		"address":   address,
		"lat":       lat,
		"lng":       lng,
	}).Debug("Address geocoded")

	return &GeocodingResult{
		Coords:      models.Coordinates{Lat: lat, Lng: lng},
		DisplayName: results[0].DisplayName,
	}, nil
}

func (g *nominatimGeocoder) Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error) {
	if limit <= 0 {
		limit = 5
	}

	results, err := g.query(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	geocodingResults := make([]GeocodingResult, 0, len(results))
	for _, result := range results {
		lat, lng, err := parseLatLon(result)
		if err != nil {
			logrus.WithError(err).WithField("query", query).Warn("Skipping unparsable search result")
			continue
		}
		geocodingResults = append(geocodingResults, GeocodingResult{
			Coords:      models.Coordinates{Lat: lat, Lng: lng},
			DisplayName: result.DisplayName,
		})
	}

	return geocodingResults, nil
}

func (g *nominatimGeocoder) query(ctx context.Context, q string, limit int) ([]nominatimResponse, error) {
	select {
	case <-g.rateLimiter.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	queryURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=%d", g.baseURL, url.QueryEscape(q), limit)
	log := logrus.WithFields(logrus.Fields{"component": "geocoding", "query": q})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrGeocodingFailed{Address: q, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Error("Geocoding API request failed")
		return nil, &ErrGeocodingFailed{Address: q, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.WithField("status", resp.StatusCode).Error("Geocoding API error")
		return nil, &ErrGeocodingFailed{
			Address: q,
			Reason:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		log.WithError(err).Error("Failed to decode geocoding response")
		return nil, &ErrGeocodingFailed{Address: q, Reason: err.Error()}
	}

	return results, nil
}

func parseLatLon(r nominatimResponse) (float64, float64, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q", r.Lat)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q", r.Lon)
	}
	return lat, lng, nil
}

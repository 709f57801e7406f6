package assignment

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"staff-transport/internal/models"
)

var descriptorSeparators = regexp.MustCompile(`[,;\s]+`)

// ParseDepartureDescriptor reads a free-text "lat,lng" or "lng,lat" pair.
// The first token is taken as the latitude when both orders are in range.
func ParseDepartureDescriptor(descriptor string) (models.Coordinates, bool) {
	tokens := lo.Compact(descriptorSeparators.Split(strings.TrimSpace(descriptor), -1))
	if len(tokens) != 2 {
		return models.Coordinates{}, false
	}

	x, okX := parseFinite(tokens[0])
	y, okY := parseFinite(tokens[1])
	if !okX || !okY {
		return models.Coordinates{}, false
	}

	var point models.Coordinates
	switch {
	case math.Abs(x) <= 90 && math.Abs(y) <= 180:
		point = models.Coordinates{Lat: x, Lng: y}
	case math.Abs(y) <= 90 && math.Abs(x) <= 180:
		point = models.Coordinates{Lat: y, Lng: x}
	default:
		return models.Coordinates{}, false
	}

	return point, point.IsValid()
}

func parseFinite(token string) (float64, bool) {
	v, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ResolveDeparture returns the geographic origin of an axis. The descriptor
// wins when it parses; otherwise the stop with the smallest order index is
// used if its coordinates are valid. stops must be in catalog order.
func ResolveDeparture(axis models.Axis, stops []models.Stop) (models.Coordinates, bool) {
	if strings.TrimSpace(axis.Departure) != "" {
		if point, ok := ParseDepartureDescriptor(axis.Departure); ok {
			return point, true
		}
	}

	if len(stops) == 0 {
		return models.Coordinates{}, false
	}

	first := lo.MinBy(stops, func(a, b models.Stop) bool {
		return a.Order < b.Order
	})
	coords := first.GetCoords()
	if !coords.IsValid() {
		return models.Coordinates{}, false
	}
	return coords, true
}

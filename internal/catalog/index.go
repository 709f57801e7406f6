package catalog

import (
	"cmp"
	"math"
	"slices"

	"github.com/tidwall/rtree"

	"staff-transport/internal/distance"
	"staff-transport/internal/models"
)

// NearbyStop is a stop found around a point
type NearbyStop struct {
	models.Stop
	DistanceKm float64 `json:"distance_km"`
}

// StopIndex is a spatial index over stops with valid coordinates
type StopIndex struct {
	tree  rtree.RTree
	count int
}

// NewStopIndex indexes the given stops. Stops without valid coordinates are skipped.
func NewStopIndex(stops []models.Stop) *StopIndex {
	idx := &StopIndex{}
	for _, s := range stops {
		coords := s.GetCoords()
		if !coords.IsValid() {
			continue
		}
		point := [2]float64{coords.Lng, coords.Lat}
		idx.tree.Insert(point, point, s)
		idx.count++
	}
	return idx
}

// Len returns the number of indexed stops
func (idx *StopIndex) Len() int {
	return idx.count
}

// Nearby returns the stops within radiusKm of center, closest first
func (idx *StopIndex) Nearby(center models.Coordinates, radiusKm float64) []NearbyStop {
	results := []NearbyStop{}
	if radiusKm <= 0 || !center.IsValid() {
		return results
	}

	min, max := bounds(center, radiusKm)
	idx.tree.Search(min, max, func(_, _ [2]float64, data interface{}) bool {
		s := data.(models.Stop)
		d := distance.DistanceKm(center, s.GetCoords())
		if d <= radiusKm {
			results = append(results, NearbyStop{Stop: s, DistanceKm: d})
		}
		return true
	})

	slices.SortFunc(results, func(a, b NearbyStop) int {
		if c := cmp.Compare(a.DistanceKm, b.DistanceKm); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return results
}

// bounds returns a lng/lat box enclosing the circle around center
func bounds(center models.Coordinates, radiusKm float64) ([2]float64, [2]float64) {
	kmPerDegree := distance.EarthRadiusKm * math.Pi / 180
	dLat := radiusKm / kmPerDegree

	dLng := 180.0
	if cosLat := math.Cos(center.Lat * math.Pi / 180); cosLat > 1e-9 {
		dLng = math.Min(180, dLat/cosLat)
	}

	return [2]float64{center.Lng - dLng, center.Lat - dLat},
		[2]float64{center.Lng + dLng, center.Lat + dLat}
}

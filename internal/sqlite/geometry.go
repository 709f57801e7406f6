package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"staff-transport/internal/models"
)

// encodePath stores a [lat,lng] path as a GeoJSON LineString ([lng,lat] order)
func encodePath(path []models.Coordinates) (sql.NullString, error) {
	if len(path) == 0 {
		return sql.NullString{}, nil
	}

	flat := make([]float64, 0, len(path)*2)
	for _, p := range path {
		flat = append(flat, p.Lng, p.Lat)
	}

	data, err := geojson.Marshal(geom.NewLineStringFlat(geom.XY, flat))
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode path geometry: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodePath(raw sql.NullString) ([]models.Coordinates, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}

	var g geom.T
	if err := geojson.Unmarshal([]byte(raw.String), &g); err != nil {
		return nil, fmt.Errorf("failed to decode path geometry: %w", err)
	}

	ls, ok := g.(*geom.LineString)
	if !ok {
		return nil, fmt.Errorf("path geometry is %T, expected LineString", g)
	}

	path := make([]models.Coordinates, 0, ls.NumCoords())
	for i := 0; i < ls.NumCoords(); i++ {
		c := ls.Coord(i)
		path = append(path, models.Coordinates{Lat: c.Y(), Lng: c.X()})
	}
	return path, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"staff-transport/internal/database"
	"staff-transport/internal/models"
)

type tripRepository struct {
	store *Store
}

const tripColumns = `id, start_stop_id, start_lat, start_lng, start_address,
	end_stop_id, end_lat, end_lng, end_address, start_time, end_time,
	distance_km, duration_min, path_geometry, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*models.Trip, error) {
	var t models.Trip
	var startStop, endStop sql.NullInt64
	var startLat, startLng, endLat, endLng sql.NullFloat64
	var distanceKm sql.NullFloat64
	var durationMin sql.NullInt64
	var pathGeometry sql.NullString

	if err := row.Scan(
		&t.ID, &startStop, &startLat, &startLng, &t.Start.Address,
		&endStop, &endLat, &endLng, &t.End.Address, &t.StartTime, &t.EndTime,
		&distanceKm, &durationMin, &pathGeometry, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	t.Start.StopID = nullableID(startStop)
	t.Start.Coords = nullableCoords(startLat, startLng)
	t.End.StopID = nullableID(endStop)
	t.End.Coords = nullableCoords(endLat, endLng)

	if distanceKm.Valid {
		d := distanceKm.Float64
		t.DistanceKm = &d
	}
	if durationMin.Valid {
		m := int(durationMin.Int64)
		t.DurationMin = &m
	}

	// An undecodable path reads as missing so the route is resolved again
	path, err := decodePath(pathGeometry)
	if err != nil {
		logrus.WithFields(logrus.Fields{"component": "sqlite", "trip_id": t.ID}).
			WithError(err).Warn("Ignoring unreadable path geometry")
		path = nil
	}
	t.Path = path

	return &t, nil
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

// nullableCoords treats missing and (0,0) coordinates alike
func nullableCoords(lat, lng sql.NullFloat64) *models.Coordinates {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	c := models.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	if c.IsZero() {
		return nil
	}
	return &c
}

func coordArgs(c *models.Coordinates) (any, any) {
	if c == nil {
		return nil, nil
	}
	return c.Lat, c.Lng
}

func scanTrips(rows *sql.Rows) ([]models.Trip, error) {
	trips := []models.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trips: %w", err)
	}
	return trips, nil
}

func (r *tripRepository) GetByID(ctx context.Context, id int64) (*models.Trip, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	t, err := scanTrip(r.store.db.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trip %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	return t, nil
}

func (r *tripRepository) List(ctx context.Context, filter models.TripFilter) ([]models.Trip, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var where []string
	var args []any

	if filter.Date != "" {
		where = append(where, "substr(start_time, 1, 10) = ?")
		args = append(args, filter.Date)
	}
	if filter.StopID != nil {
		where = append(where, "(start_stop_id = ? OR end_stop_id = ?)")
		args = append(args, *filter.StopID, *filter.StopID)
	}

	query := `SELECT ` + tripColumns + ` FROM trips`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY start_time DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	return scanTrips(rows)
}

// ListMissingRoute also returns trips whose stored path geometry is unreadable
func (r *tripRepository) ListMissingRoute(ctx context.Context) ([]models.Trip, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT ` + tripColumns + ` FROM trips
	          WHERE distance_km IS NULL OR path_geometry IS NULL OR path_geometry = ''
	             OR (CASE WHEN json_valid(path_geometry) THEN json_extract(path_geometry, '$.type') END) IS NOT 'LineString'
	          ORDER BY id`

	rows, err := r.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips missing routes: %w", err)
	}
	defer rows.Close()

	trips, err := scanTrips(rows)
	if err != nil {
		return nil, err
	}
	return lo.Filter(trips, func(t models.Trip, _ int) bool { return t.NeedsRoute() }), nil
}

func (r *tripRepository) Create(ctx context.Context, t *models.Trip) (*models.Trip, error) {
	path, err := encodePath(t.Path)
	if err != nil {
		return nil, &database.PersistenceError{Op: "insert trip", Err: err}
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()
	startLat, startLng := coordArgs(t.Start.Coords)
	endLat, endLng := coordArgs(t.End.Coords)

	query := `INSERT INTO trips (start_stop_id, start_lat, start_lng, start_address,
	                             end_stop_id, end_lat, end_lng, end_address,
	                             start_time, end_time, distance_km, duration_min, path_geometry,
	                             created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.store.db.ExecContext(ctx, query,
		t.Start.StopID, startLat, startLng, t.Start.Address,
		t.End.StopID, endLat, endLng, t.End.Address,
		t.StartTime.UTC(), t.EndTime.UTC(), t.DistanceKm, t.DurationMin, path,
		now, now,
	)
	if err != nil {
		return nil, &database.PersistenceError{Op: "insert trip", Err: err}
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, &database.PersistenceError{Op: "insert trip", Err: err}
	}

	created := *t
	created.ID = id
	created.CreatedAt = now
	created.UpdatedAt = now
	return &created, nil
}

func (r *tripRepository) UpdateRoute(ctx context.Context, id int64, distanceKm float64, durationMin int, path []models.Coordinates) error {
	geometry, err := encodePath(path)
	if err != nil {
		return &database.PersistenceError{Op: fmt.Sprintf("update route of trip %d", id), Err: err}
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `UPDATE trips SET distance_km = ?, duration_min = ?, path_geometry = ?, updated_at = ?
	          WHERE id = ?`

	result, err := r.store.db.ExecContext(ctx, query, distanceKm, durationMin, geometry, time.Now().UTC(), id)
	if err != nil {
		return &database.PersistenceError{Op: fmt.Sprintf("update route of trip %d", id), Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &database.PersistenceError{Op: fmt.Sprintf("update route of trip %d", id), Err: err}
	}
	if affected == 0 {
		return fmt.Errorf("trip %d: %w", id, database.ErrNotFound)
	}

	return nil
}

func (r *tripRepository) BackfillEndpointCoordinates(ctx context.Context) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &database.PersistenceError{Op: "backfill endpoint coordinates", Err: err}
	}
	defer tx.Rollback()

	total := 0
	for _, side := range []string{"start", "end"} {
		query := fmt.Sprintf(`UPDATE trips
		          SET %[1]s_lat = (SELECT lat FROM stops WHERE stops.id = trips.%[1]s_stop_id),
		              %[1]s_lng = (SELECT lng FROM stops WHERE stops.id = trips.%[1]s_stop_id),
		              updated_at = ?
		          WHERE %[1]s_stop_id IS NOT NULL
		            AND (%[1]s_lat IS NULL OR %[1]s_lng IS NULL OR (%[1]s_lat = 0 AND %[1]s_lng = 0))
		            AND EXISTS (SELECT 1 FROM stops
		                        WHERE stops.id = trips.%[1]s_stop_id AND NOT (stops.lat = 0 AND stops.lng = 0))`, side)

		result, err := tx.ExecContext(ctx, query, time.Now().UTC())
		if err != nil {
			return 0, &database.PersistenceError{Op: "backfill " + side + " coordinates", Err: err}
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, &database.PersistenceError{Op: "backfill " + side + " coordinates", Err: err}
		}
		total += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, &database.PersistenceError{Op: "backfill endpoint coordinates", Err: err}
	}

	return total, nil
}

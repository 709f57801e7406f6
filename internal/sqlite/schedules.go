package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"staff-transport/internal/models"
)

type scheduleRepository struct {
	store *Store
}

func (r *scheduleRepository) ListScheduled(ctx context.Context, date, from, to string) ([]models.Personnel, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	// The pickup row may override the employee's axis; an employee pinned to a
	// stop inherits that stop's axis as a last resort.
	query := `SELECT e.id, e.full_name, e.position, e.stop_id, e.stop_order, e.lat, e.lng,
	                 COALESCE(p.axis_id, e.axis_id, s.axis_id), p.pickup_date, p.pickup_time
	          FROM pickups p
	          JOIN employees e ON e.id = p.employee_id
	          LEFT JOIN stops s ON s.id = e.stop_id
	          WHERE p.pickup_date = ? AND p.pickup_time BETWEEN ? AND ?
	          ORDER BY p.pickup_time, p.id`

	rows, err := r.store.db.QueryContext(ctx, query, date, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled pickups: %w", err)
	}
	defer rows.Close()

	personnel := []models.Personnel{}
	for rows.Next() {
		var p models.Personnel
		var stopID, axisID sql.NullInt64
		var stopOrder sql.NullString
		var lat, lng sql.NullFloat64
		if err := rows.Scan(
			&p.ID, &p.FullName, &p.Position, &stopID, &stopOrder, &lat, &lng,
			&axisID, &p.ScheduledDate, &p.ScheduledTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan scheduled pickup: %w", err)
		}
		if stopID.Valid {
			id := stopID.Int64
			p.StopID = &id
		}
		if axisID.Valid {
			id := axisID.Int64
			p.AxisID = &id
		}
		if stopOrder.Valid {
			p.StopOrder = stopOrder.String
		}
		if lat.Valid && lng.Valid {
			p.Coords = &models.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
		}
		personnel = append(personnel, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduled pickups: %w", err)
	}

	return personnel, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"staff-transport/internal/database"
	"staff-transport/internal/models"
)

type stopRepository struct {
	store *Store
}

const stopColumns = `id, name, lat, lng, axis_id, stop_order`

func scanStops(rows *sql.Rows) ([]models.Stop, error) {
	stops := []models.Stop{}
	for rows.Next() {
		var s models.Stop
		if err := rows.Scan(&s.ID, &s.Name, &s.Lat, &s.Lng, &s.AxisID, &s.Order); err != nil {
			return nil, fmt.Errorf("failed to scan stop: %w", err)
		}
		stops = append(stops, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stops: %w", err)
	}
	return stops, nil
}

func (r *stopRepository) List(ctx context.Context) ([]models.Stop, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows, err := r.store.db.QueryContext(ctx,
		`SELECT `+stopColumns+` FROM stops ORDER BY axis_id, stop_order, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	defer rows.Close()

	return scanStops(rows)
}

func (r *stopRepository) ListByAxis(ctx context.Context, axisID int64) ([]models.Stop, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows, err := r.store.db.QueryContext(ctx,
		`SELECT `+stopColumns+` FROM stops WHERE axis_id = ? ORDER BY stop_order, id`, axisID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stops for axis %d: %w", axisID, err)
	}
	defer rows.Close()

	return scanStops(rows)
}

func (r *stopRepository) GetByID(ctx context.Context, id int64) (*models.Stop, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var s models.Stop
	err := r.store.db.QueryRowContext(ctx, `SELECT `+stopColumns+` FROM stops WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.Lat, &s.Lng, &s.AxisID, &s.Order)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stop %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stop: %w", err)
	}

	return &s, nil
}

func (r *stopRepository) Create(ctx context.Context, s *models.Stop) (*models.Stop, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result, err := r.store.db.ExecContext(ctx,
		`INSERT INTO stops (name, lat, lng, axis_id, stop_order) VALUES (?, ?, ?, ?, ?)`,
		s.Name, s.Lat, s.Lng, s.AxisID, s.Order,
	)
	if err != nil {
		return nil, &database.PersistenceError{Op: "insert stop", Err: err}
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, &database.PersistenceError{Op: "insert stop", Err: err}
	}

	created := *s
	created.ID = id
	return &created, nil
}

func (r *stopRepository) NextOrder(ctx context.Context, axisID int64) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var maxOrder sql.NullInt64
	err := r.store.db.QueryRowContext(ctx,
		`SELECT MAX(stop_order) FROM stops WHERE axis_id = ?`, axisID).Scan(&maxOrder)
	if err != nil {
		return 0, &database.RecoverableError{Op: fmt.Sprintf("next stop order for axis %d", axisID), Err: err}
	}

	if !maxOrder.Valid {
		return 1, nil
	}
	return int(maxOrder.Int64) + 1, nil
}

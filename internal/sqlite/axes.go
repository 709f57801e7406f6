package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"staff-transport/internal/database"
	"staff-transport/internal/models"
)

type axisRepository struct {
	store *Store
}

func (r *axisRepository) List(ctx context.Context) ([]models.Axis, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows, err := r.store.db.QueryContext(ctx, `SELECT id, name, departure FROM axes ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query axes: %w", err)
	}
	defer rows.Close()

	axes := []models.Axis{}
	for rows.Next() {
		var a models.Axis
		if err := rows.Scan(&a.ID, &a.Name, &a.Departure); err != nil {
			return nil, fmt.Errorf("failed to scan axis: %w", err)
		}
		axes = append(axes, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating axes: %w", err)
	}

	return axes, nil
}

func (r *axisRepository) GetByID(ctx context.Context, id int64) (*models.Axis, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var a models.Axis
	err := r.store.db.QueryRowContext(ctx, `SELECT id, name, departure FROM axes WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.Departure)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("axis %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get axis: %w", err)
	}

	return &a, nil
}

func (r *axisRepository) Create(ctx context.Context, a *models.Axis) (*models.Axis, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result, err := r.store.db.ExecContext(ctx, `INSERT INTO axes (name, departure) VALUES (?, ?)`, a.Name, a.Departure)
	if err != nil {
		return nil, &database.PersistenceError{Op: "insert axis", Err: err}
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, &database.PersistenceError{Op: "insert axis", Err: err}
	}

	created := *a
	created.ID = id
	return &created, nil
}

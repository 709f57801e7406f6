package database

import (
	"context"

	"staff-transport/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	Axes() AxisRepository
	Stops() StopRepository
	Schedules() ScheduleRepository
	Trips() TripRepository
}

// AxisRepository handles axis persistence
type AxisRepository interface {
	List(ctx context.Context) ([]models.Axis, error)
	GetByID(ctx context.Context, id int64) (*models.Axis, error)
	Create(ctx context.Context, a *models.Axis) (*models.Axis, error)
}

// StopRepository handles stop persistence
type StopRepository interface {
	// List returns every stop, ordered by axis then order index
	List(ctx context.Context) ([]models.Stop, error)
	// ListByAxis returns the stops of one axis ordered by order index ascending
	ListByAxis(ctx context.Context, axisID int64) ([]models.Stop, error)
	GetByID(ctx context.Context, id int64) (*models.Stop, error)
	Create(ctx context.Context, s *models.Stop) (*models.Stop, error)
	// NextOrder returns one past the highest order index on the axis.
	// Lookup failures are reported as *RecoverableError.
	NextOrder(ctx context.Context, axisID int64) (int, error)
}

// ScheduleRepository reads the personnel scheduling join
type ScheduleRepository interface {
	// ListScheduled returns pickups on date with a time in [from, to] (HH:MM)
	ListScheduled(ctx context.Context, date, from, to string) ([]models.Personnel, error)
}

// TripRepository handles trip persistence
type TripRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Trip, error)
	List(ctx context.Context, filter models.TripFilter) ([]models.Trip, error)
	// ListMissingRoute returns trips without a distance or path geometry
	ListMissingRoute(ctx context.Context) ([]models.Trip, error)
	Create(ctx context.Context, t *models.Trip) (*models.Trip, error)
	// UpdateRoute stores distance, duration and path for a trip
	UpdateRoute(ctx context.Context, id int64, distanceKm float64, durationMin int, path []models.Coordinates) error
	// BackfillEndpointCoordinates copies stop coordinates onto trips missing them
	BackfillEndpointCoordinates(ctx context.Context) (int, error)
}

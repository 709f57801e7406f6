package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"staff-transport/internal/assignment"
	"staff-transport/internal/database"
	"staff-transport/internal/models"
)

// DefaultStopOrder is used when the next order on an axis cannot be computed
const DefaultStopOrder = 1

// StopForm is the input for creating a stop. A nil or non-positive Order
// places the stop after the last one on its axis.
type StopForm struct {
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	AxisID int64   `json:"axis_id"`
	Order  *int    `json:"order,omitempty"`
}

// PickupSequence lists an axis's stops in the order a vehicle leaving the
// departure point reaches them
type PickupSequence struct {
	Axis      models.Axis         `json:"axis"`
	Departure *models.Coordinates `json:"departure"`
	Stops     []models.Stop       `json:"stops"`
}

// Service manages the stop catalog
type Service struct {
	axes  database.AxisRepository
	stops database.StopRepository

	mu    sync.Mutex
	index *StopIndex
}

// NewService creates a catalog service
func NewService(axes database.AxisRepository, stops database.StopRepository) *Service {
	return &Service{axes: axes, stops: stops}
}

// CreateStop stores a new stop, allocating the next order on its axis when none is given
func (s *Service) CreateStop(ctx context.Context, form StopForm) (*models.Stop, error) {
	if _, err := s.axes.GetByID(ctx, form.AxisID); err != nil {
		return nil, err
	}

	order := 0
	if form.Order != nil {
		order = *form.Order
	}
	if order <= 0 {
		next, err := s.stops.NextOrder(ctx, form.AxisID)
		var recoverable *database.RecoverableError
		switch {
		case errors.As(err, &recoverable):
			logrus.WithFields(logrus.Fields{
				"component": "catalog",
				"axis_id":   form.AxisID,
			}).WithError(err).Warnf("Next stop order unavailable, using %d", DefaultStopOrder)
			next = DefaultStopOrder
		case err != nil:
			return nil, err
		}
		order = next
	}

	stop, err := s.stops.Create(ctx, &models.Stop{
		Name:   form.Name,
		Lat:    form.Lat,
		Lng:    form.Lng,
		AxisID: form.AxisID,
		Order:  order,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create stop: %w", err)
	}

	s.invalidate()
	return stop, nil
}

// StopsInPickupSequence returns the stops of an axis sorted by distance from
// its departure point. When no departure can be resolved the catalog order is kept.
func (s *Service) StopsInPickupSequence(ctx context.Context, axisID int64) (*PickupSequence, error) {
	axis, err := s.axes.GetByID(ctx, axisID)
	if err != nil {
		return nil, err
	}

	stops, err := s.stops.ListByAxis(ctx, axisID)
	if err != nil {
		return nil, err
	}

	seq := &PickupSequence{Axis: *axis, Stops: stops}
	if departure, ok := assignment.ResolveDeparture(*axis, stops); ok {
		seq.Departure = &departure
		seq.Stops = assignment.PickupSequence(departure, stops)
	}
	return seq, nil
}

// Nearby returns stops within radiusKm of a point, closest first
func (s *Service) Nearby(ctx context.Context, center models.Coordinates, radiusKm float64) ([]NearbyStop, error) {
	idx, err := s.stopIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Nearby(center, radiusKm), nil
}

func (s *Service) stopIndex(ctx context.Context) (*StopIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index != nil {
		return s.index, nil
	}

	stops, err := s.stops.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stops for index: %w", err)
	}

	s.index = NewStopIndex(stops)
	logrus.WithFields(logrus.Fields{"component": "catalog", "stops": s.index.Len()}).Debug("Built stop index")
	return s.index, nil
}

func (s *Service) invalidate() {
	s.mu.Lock()
	s.index = nil
	s.mu.Unlock()
}

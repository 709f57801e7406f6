package trips

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"staff-transport/internal/database"
	"staff-transport/internal/distance"
	"staff-transport/internal/geocoding"
	"staff-transport/internal/models"
)

// DefaultPacing is the delay between upstream route calls during migration
const DefaultPacing = 200 * time.Millisecond

// StopGetter reads a single stop
type StopGetter interface {
	GetByID(ctx context.Context, id int64) (*models.Stop, error)
}

// MigrateOptions tunes a bulk route backfill
type MigrateOptions struct {
	// IncludeFallback also recomputes trips whose stored path is a straight line
	IncludeFallback bool
}

// Coordinator keeps persisted trips supplied with route data. Reads heal
// incomplete trips; concurrent readers of one trip share a single
// upstream call and write.
type Coordinator struct {
	trips    database.TripRepository
	stops    StopGetter
	router   distance.RouteResolver
	geocoder geocoding.Geocoder

	pacing time.Duration
	sleep  func(ctx context.Context, d time.Duration) error

	flights singleflight.Group
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithPacing sets the delay between upstream calls during migration
func WithPacing(d time.Duration) Option {
	return func(c *Coordinator) { c.pacing = d }
}

// WithSleep replaces the pacing sleeper
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) { c.sleep = sleep }
}

// NewCoordinator creates a trip coordinator
func NewCoordinator(trips database.TripRepository, stops StopGetter, router distance.RouteResolver, geocoder geocoding.Geocoder, opts ...Option) *Coordinator {
	c := &Coordinator{
		trips:    trips,
		stops:    stops,
		router:   router,
		geocoder: geocoder,
		pacing:   DefaultPacing,
		sleep:    distance.SleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetTrip returns a trip, resolving and storing its route first when missing
func (c *Coordinator) GetTrip(ctx context.Context, id int64) (*models.Trip, error) {
	trip, err := c.trips.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !trip.NeedsRoute() {
		return trip, nil
	}
	return c.healOrKeep(ctx, trip)
}

// ListTrips returns the matching trips, healing each incomplete one
func (c *Coordinator) ListTrips(ctx context.Context, filter models.TripFilter) ([]models.Trip, error) {
	list, err := c.trips.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	for i := range list {
		if !list[i].NeedsRoute() {
			continue
		}
		healed, err := c.healOrKeep(ctx, &list[i])
		if err != nil {
			return nil, err
		}
		list[i] = *healed
	}
	return list, nil
}

// RecomputeTrip resolves the route again regardless of what is stored
func (c *Coordinator) RecomputeTrip(ctx context.Context, id int64) (*models.Trip, error) {
	if _, err := c.trips.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return c.heal(ctx, id, true)
}

// healOrKeep heals a trip, returning it unchanged when its endpoints cannot be located
func (c *Coordinator) healOrKeep(ctx context.Context, trip *models.Trip) (*models.Trip, error) {
	healed, err := c.heal(ctx, trip.ID, false)
	var verr *ValidationError
	if errors.As(err, &verr) {
		logrus.WithFields(logrus.Fields{
			"component": "trips",
			"trip_id":   trip.ID,
		}).Warnf("Trip route left unresolved: %v", err)
		return trip, nil
	}
	return healed, err
}

// heal is a get-or-compute accessor keyed on the trip id. Healing and forced
// recomputation of one trip share the key, so whichever starts first serves both.
func (c *Coordinator) heal(ctx context.Context, id int64, force bool) (*models.Trip, error) {
	key := strconv.FormatInt(id, 10)

	// The flight outlives any single caller that joins it
	flightCtx := context.WithoutCancel(ctx)

	v, err, shared := c.flights.Do(key, func() (any, error) {
		current, err := c.trips.GetByID(flightCtx, id)
		if err != nil {
			return nil, err
		}
		if !force && !current.NeedsRoute() {
			return current, nil
		}
		start, end, err := c.locateTrip(flightCtx, current)
		if err != nil {
			return nil, err
		}
		if err := c.storeRoute(flightCtx, id, start, end); err != nil {
			return nil, err
		}
		return c.trips.GetByID(flightCtx, id)
	})
	if err != nil {
		return nil, err
	}

	if shared {
		logrus.WithFields(logrus.Fields{"component": "trips", "trip_id": id}).Debug("Shared in-flight route resolution")
	}

	return cloneTrip(v.(*models.Trip)), nil
}

// cloneTrip copies a trip shared between flight callers
func cloneTrip(t *models.Trip) *models.Trip {
	trip := *t
	trip.Path = slices.Clone(t.Path)
	trip.Start.StopID = clonePtr(t.Start.StopID)
	trip.Start.Coords = clonePtr(t.Start.Coords)
	trip.End.StopID = clonePtr(t.End.StopID)
	trip.End.Coords = clonePtr(t.End.Coords)
	trip.DistanceKm = clonePtr(t.DistanceKm)
	trip.DurationMin = clonePtr(t.DurationMin)
	return &trip
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// locateTrip finds the coordinates of both stored endpoints
func (c *Coordinator) locateTrip(ctx context.Context, trip *models.Trip) (models.Coordinates, models.Coordinates, error) {
	start, err := c.locate(ctx, "start", trip.Start)
	if err != nil {
		return models.Coordinates{}, models.Coordinates{}, err
	}
	end, err := c.locate(ctx, "end", trip.End)
	if err != nil {
		return models.Coordinates{}, models.Coordinates{}, err
	}
	return start, end, nil
}

// storeRoute resolves the route between start and end and persists it on the trip
func (c *Coordinator) storeRoute(ctx context.Context, tripID int64, start, end models.Coordinates) error {
	route := c.router.ResolveRoute(ctx, start, end)

	logrus.WithFields(logrus.Fields{
		"component":   "trips",
		"trip_id":     tripID,
		"distance_km": route.DistanceKm,
		"fallback":    route.IsFallback,
	}).Info("Resolved trip route")

	if err := c.trips.UpdateRoute(ctx, tripID, route.DistanceKm, route.DurationMin, route.Path); err != nil {
		return fmt.Errorf("failed to store route for trip %d: %w", tripID, err)
	}
	return nil
}

// locate finds the coordinates of a stored endpoint: explicit coordinates,
// then the referenced stop, then the address.
func (c *Coordinator) locate(ctx context.Context, field string, ep models.TripEndpoint) (models.Coordinates, error) {
	if ep.Coords != nil && ep.Coords.IsValid() {
		return *ep.Coords, nil
	}

	if ep.StopID != nil {
		stop, err := c.stops.GetByID(ctx, *ep.StopID)
		if err == nil && stop.GetCoords().IsValid() {
			return stop.GetCoords(), nil
		}
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return models.Coordinates{}, fmt.Errorf("failed to load %s stop: %w", field, err)
		}
	}

	if strings.TrimSpace(ep.Address) != "" && c.geocoder != nil {
		result, err := c.geocoder.Geocode(ctx, ep.Address)
		if err == nil && result.Coords.IsValid() {
			return result.Coords, nil
		}
	}

	return models.Coordinates{}, &ValidationError{Field: field, Reason: "no usable location"}
}

// CreateTrip validates and locates both endpoints, resolves the route and
// stores the trip together with its route data.
func (c *Coordinator) CreateTrip(ctx context.Context, form models.TripForm) (int64, error) {
	if form.StartTime.IsZero() {
		return 0, &ValidationError{Field: "start_time", Reason: "required"}
	}
	if !form.EndTime.IsZero() && form.EndTime.Before(form.StartTime) {
		return 0, &ValidationError{Field: "end_time", Reason: "must not be before start_time"}
	}

	start, err := c.resolveEndpoint(ctx, "start", form.Start)
	if err != nil {
		return 0, err
	}
	end, err := c.resolveEndpoint(ctx, "end", form.End)
	if err != nil {
		return 0, err
	}

	route := c.router.ResolveRoute(ctx, *start.Coords, *end.Coords)

	endTime := form.EndTime
	if endTime.IsZero() {
		endTime = form.StartTime.Add(time.Duration(route.DurationMin) * time.Minute)
	}

	created, err := c.trips.Create(ctx, &models.Trip{
		Start:       start,
		End:         end,
		StartTime:   form.StartTime,
		EndTime:     endTime,
		DistanceKm:  &route.DistanceKm,
		DurationMin: &route.DurationMin,
		Path:        route.Path,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create trip: %w", err)
	}

	logger := logrus.WithFields(logrus.Fields{"component": "trips", "trip_id": created.ID})
	logger.WithField("fallback", route.IsFallback).Info("Created trip")

	stored, err := c.trips.GetByID(ctx, created.ID)
	if err != nil {
		return created.ID, fmt.Errorf("failed to verify trip %d: %w", created.ID, err)
	}
	if stored.NeedsRoute() {
		logger.Warn("Stored trip is missing route data, healing")
		if _, err := c.heal(ctx, created.ID, false); err != nil {
			return created.ID, err
		}
	}

	return created.ID, nil
}

// resolveEndpoint turns a form endpoint into a located one. A referenced stop
// wins over explicit coordinates, which win over the address.
func (c *Coordinator) resolveEndpoint(ctx context.Context, field string, ep models.TripEndpoint) (models.TripEndpoint, error) {
	if ep.StopID != nil {
		stop, err := c.stops.GetByID(ctx, *ep.StopID)
		if err != nil {
			return ep, fmt.Errorf("%s stop: %w", field, err)
		}
		coords := stop.GetCoords()
		if !coords.IsValid() {
			return ep, &ValidationError{Field: field, Reason: fmt.Sprintf("stop %d has no valid coordinates", stop.ID)}
		}
		ep.Coords = &coords
		return ep, nil
	}

	if ep.Coords != nil {
		if !ep.Coords.IsValid() {
			return ep, &ValidationError{Field: field, Reason: "invalid coordinates"}
		}
		return ep, nil
	}

	if strings.TrimSpace(ep.Address) != "" {
		if c.geocoder == nil {
			return ep, &ValidationError{Field: field, Reason: "address lookup unavailable"}
		}
		result, err := c.geocoder.Geocode(ctx, ep.Address)
		if err != nil {
			return ep, &ValidationError{Field: field, Reason: err.Error()}
		}
		if !result.Coords.IsValid() {
			return ep, &ValidationError{Field: field, Reason: "address resolved to invalid coordinates"}
		}
		coords := result.Coords
		ep.Coords = &coords
		return ep, nil
	}

	return ep, &ValidationError{Field: field, Reason: "a stop, coordinates or an address is required"}
}

// MigrateAll backfills endpoint coordinates from stops, then resolves and
// stores routes for every trip lacking them. Upstream calls are paced and
// per-trip failures are collected in the report.
func (c *Coordinator) MigrateAll(ctx context.Context, opts MigrateOptions) (*models.MigrationReport, error) {
	logger := logrus.WithField("component", "migration")
	report := &models.MigrationReport{Errors: []string{}}

	backfilled, err := c.trips.BackfillEndpointCoordinates(ctx)
	if err != nil {
		logger.WithError(err).Warn("Endpoint coordinate backfill failed")
		report.Errors = append(report.Errors, fmt.Sprintf("backfill: %v", err))
	}
	report.Backfilled = backfilled

	candidates, err := c.trips.ListMissingRoute(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips missing routes: %w", err)
	}

	if opts.IncludeFallback {
		all, err := c.trips.List(ctx, models.TripFilter{})
		if err != nil {
			return nil, fmt.Errorf("failed to list trips: %w", err)
		}
		for _, t := range all {
			if !t.NeedsRoute() && t.IsFallback() {
				candidates = append(candidates, t)
			}
		}
	}

	report.Total = len(candidates)
	logger.WithFields(logrus.Fields{"total": report.Total, "backfilled": backfilled}).Info("Starting route migration")

	called := false
	for i := range candidates {
		trip := &candidates[i]
		tripLogger := logger.WithField("trip_id", trip.ID)

		start, end, err := c.locateTrip(ctx, trip)
		if err != nil {
			tripLogger.WithError(err).Warn("Trip endpoints could not be located")
			report.Errors = append(report.Errors, fmt.Sprintf("trip %d: %v", trip.ID, err))
			continue
		}

		if called && c.pacing > 0 {
			if err := c.sleep(ctx, c.pacing); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("migration interrupted: %v", err))
				break
			}
		}
		called = true

		if err := c.storeRoute(ctx, trip.ID, start, end); err != nil {
			tripLogger.WithError(err).Warn("Trip route migration failed")
			report.Errors = append(report.Errors, fmt.Sprintf("trip %d: %v", trip.ID, err))
			continue
		}
		report.Success++
	}

	logger.WithFields(logrus.Fields{
		"success": report.Success,
		"errors":  len(report.Errors),
	}).Info("Route migration finished")

	return report, nil
}

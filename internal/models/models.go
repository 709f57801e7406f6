package models

import (
	"math"
	"time"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the point is the (0,0) placeholder
func (c Coordinates) IsZero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// IsValid reports whether the point can be used as a real location.
// (0,0) is a placeholder and never valid.
func (c Coordinates) IsValid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	if math.Abs(c.Lat) > 90 || math.Abs(c.Lng) > 180 {
		return false
	}
	return !c.IsZero()
}

// RoundCoordinate rounds to 5 decimal places (~1m precision)
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// Axis is a named transport route made of ordered stops
type Axis struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Departure string `json:"departure"`
}

// Stop is a pickup point belonging to one axis
type Stop struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	AxisID int64   `json:"axis_id"`
	Order  int     `json:"order"`
}

// GetCoords returns the coordinates of the stop
func (s *Stop) GetCoords() Coordinates {
	return Coordinates{Lat: s.Lat, Lng: s.Lng}
}

// Personnel is one scheduled pickup row as produced by the scheduling join.
// It is read-only input to the assigner.
type Personnel struct {
	ID            int64        `json:"id"`
	FullName      string       `json:"full_name"`
	Position      string       `json:"position"`
	StopID        *int64       `json:"stop_id,omitempty"`
	StopOrder     string       `json:"stop_order,omitempty"`
	Coords        *Coordinates `json:"coords,omitempty"`
	AxisID        *int64       `json:"axis_id,omitempty"`
	ScheduledDate string       `json:"scheduled_date"`
	ScheduledTime string       `json:"scheduled_time"`
}

// AssignedPersonnel is a Personnel row annotated with its computed stop
type AssignedPersonnel struct {
	Personnel
	AssignedStopID   *int64       `json:"assigned_stop_id,omitempty"`
	AssignedStopName string       `json:"assigned_stop_name,omitempty"`
	StopCoords       *Coordinates `json:"stop_coords,omitempty"`
	DistanceKm       *float64     `json:"distance_km"`
	Optimized        bool         `json:"optimized"`
}

// AssignmentResult is the ordered output of a stop assignment run
type AssignmentResult struct {
	Date     time.Time           `json:"date"`
	Entries  []AssignedPersonnel `json:"entries"`
	Warnings []string            `json:"warnings"`
}

// TripEndpoint describes one end of a trip. Any subset of the fields may be set.
type TripEndpoint struct {
	StopID  *int64       `json:"stop_id,omitempty"`
	Coords  *Coordinates `json:"coords,omitempty"`
	Address string       `json:"address,omitempty"`
}

// Trip is a persisted transport trip with its cached route data
type Trip struct {
	ID          int64         `json:"id"`
	Start       TripEndpoint  `json:"start"`
	End         TripEndpoint  `json:"end"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	DistanceKm  *float64      `json:"distance_km"`
	DurationMin *int          `json:"duration_min"`
	Path        []Coordinates `json:"path"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NeedsRoute reports whether the cached route data is incomplete
func (t *Trip) NeedsRoute() bool {
	return t.DistanceKm == nil || len(t.Path) == 0
}

// IsFallback reports whether the stored route is a straight-line substitute.
// Any path of two points or fewer counts, however it was produced.
func (t *Trip) IsFallback() bool {
	return len(t.Path) <= 2
}

// TripFilter narrows a trip listing
type TripFilter struct {
	Date   string
	StopID *int64
	Limit  int
	Offset int
}

// TripForm is the input for creating a trip
type TripForm struct {
	Start     TripEndpoint `json:"start"`
	End       TripEndpoint `json:"end"`
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
}

// MigrationReport summarizes a bulk route backfill
type MigrationReport struct {
	Total      int      `json:"total"`
	Success    int      `json:"success"`
	Backfilled int      `json:"backfilled"`
	Errors     []string `json:"errors"`
}

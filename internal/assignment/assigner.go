package assignment

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"staff-transport/internal/database"
	"staff-transport/internal/distance"
	"staff-transport/internal/models"
)

// AxisLookup reads a single axis
type AxisLookup interface {
	GetByID(ctx context.Context, id int64) (*models.Axis, error)
}

// StopLister reads the stops of an axis in catalog order
type StopLister interface {
	ListByAxis(ctx context.Context, axisID int64) ([]models.Stop, error)
}

// Assigner maps scheduled personnel to pickup stops
type Assigner struct {
	axes  AxisLookup
	stops StopLister
}

// NewAssigner creates an assigner backed by the given catalog readers
func NewAssigner(axes AxisLookup, stops StopLister) *Assigner {
	return &Assigner{axes: axes, stops: stops}
}

type axisKey struct {
	id    int64
	known bool
}

func (k axisKey) String() string {
	if !k.known {
		return "no axis"
	}
	return fmt.Sprintf("axis %d", k.id)
}

type axisGroup struct {
	key     axisKey
	members []models.Personnel
}

// groupByAxis folds personnel into groups keyed by axis, in first-seen order
func groupByAxis(personnel []models.Personnel) []axisGroup {
	return lo.Reduce(personnel, func(groups []axisGroup, p models.Personnel, _ int) []axisGroup {
		key := axisKey{}
		if p.AxisID != nil {
			key = axisKey{id: *p.AxisID, known: true}
		}
		for i := range groups {
			if groups[i].key == key {
				groups[i].members = append(groups[i].members, p)
				return groups
			}
		}
		return append(groups, axisGroup{key: key, members: []models.Personnel{p}})
	}, nil)
}

// explicitOrder parses a manually entered stop order. Only positive integers count.
func explicitOrder(raw string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func orderValue(p models.Personnel) int {
	if v, ok := explicitOrder(p.StopOrder); ok {
		return v
	}
	return math.MaxInt
}

func validCoords(c *models.Coordinates) bool {
	return c != nil && c.IsValid()
}

// batch carries the per-call warning list
type batch struct {
	warnings []string
}

func (b *batch) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logrus.WithField("component", "assignment").Warn(msg)
	b.warnings = append(b.warnings, msg)
}

// Assign returns the personnel in pickup order, annotated with their stop.
// It never fails: catalog errors and bad coordinates are reported as warnings
// and the affected entries degrade to unassigned or order-value sorting.
func (a *Assigner) Assign(ctx context.Context, personnel []models.Personnel, date time.Time) *models.AssignmentResult {
	b := &batch{}
	entries := make([]models.AssignedPersonnel, 0, len(personnel))

	for _, p := range personnel {
		if p.Coords != nil && !p.Coords.IsZero() && !p.Coords.IsValid() {
			b.warn("personnel %d (%s): invalid coordinates %.6f,%.6f", p.ID, p.FullName, p.Coords.Lat, p.Coords.Lng)
		}
	}

	for _, g := range groupByAxis(personnel) {
		if lo.SomeBy(g.members, func(p models.Personnel) bool { _, ok := explicitOrder(p.StopOrder); return ok }) {
			entries = append(entries, a.assignOrdered(ctx, b, g)...)
		} else {
			entries = append(entries, a.assignNearest(ctx, b, g)...)
		}
	}

	return &models.AssignmentResult{
		Date:     date,
		Entries:  entries,
		Warnings: b.warnings,
	}
}

// loadAxis fetches the axis and its stops. ok is false when either lookup fails.
func (a *Assigner) loadAxis(ctx context.Context, b *batch, key axisKey) (*models.Axis, []models.Stop, bool) {
	if !key.known {
		return nil, nil, false
	}

	axis, err := a.axes.GetByID(ctx, key.id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			b.warn("%s: not found in catalog", key)
		} else {
			b.warn("%s: axis lookup failed: %v", key, err)
		}
		return nil, nil, false
	}

	stops, err := a.stops.ListByAxis(ctx, key.id)
	if err != nil {
		b.warn("%s: stop lookup failed: %v", key, err)
		return axis, nil, false
	}

	return axis, stops, true
}

func (a *Assigner) assignOrdered(ctx context.Context, b *batch, g axisGroup) []models.AssignedPersonnel {
	axis, stops, ok := a.loadAxis(ctx, b, g.key)
	if !ok {
		return sortByOrderValue(g.members, stops)
	}

	departure, ok := ResolveDeparture(*axis, stops)
	if !ok {
		b.warn("%s (%s): departure point could not be resolved", g.key, axis.Name)
		return sortByOrderValue(g.members, stops)
	}

	sequence := PickupSequence(departure, stops)
	candidates := lo.Filter(sequence, func(s models.Stop, _ int) bool { return s.GetCoords().IsValid() })

	buckets := make(map[int64][]models.AssignedPersonnel, len(sequence))
	var unassigned []models.AssignedPersonnel

	for _, p := range g.members {
		entry := models.AssignedPersonnel{Personnel: p}

		if stop, found := referencedStop(p, sequence); found {
			annotateStop(&entry, stop)
			if validCoords(p.Coords) && stop.GetCoords().IsValid() {
				d := distance.DistanceKm(*p.Coords, stop.GetCoords())
				entry.DistanceKm = &d
			}
			buckets[stop.ID] = append(buckets[stop.ID], entry)
			continue
		}

		if p.StopID != nil {
			b.warn("personnel %d (%s): stop %d is not on %s", p.ID, p.FullName, *p.StopID, g.key)
		}

		if validCoords(p.Coords) {
			if stop, d, found := nearestStop(*p.Coords, candidates); found {
				annotateStop(&entry, stop)
				entry.DistanceKm = &d
				entry.Optimized = true
				buckets[stop.ID] = append(buckets[stop.ID], entry)
				continue
			}
		}

		unassigned = append(unassigned, entry)
	}

	out := make([]models.AssignedPersonnel, 0, len(g.members))
	for _, stop := range sequence {
		bucket := buckets[stop.ID]
		slices.SortStableFunc(bucket, func(x, y models.AssignedPersonnel) int {
			return strings.Compare(x.FullName, y.FullName)
		})
		out = append(out, bucket...)
	}
	return append(out, unassigned...)
}

func (a *Assigner) assignNearest(ctx context.Context, b *batch, g axisGroup) []models.AssignedPersonnel {
	var stops []models.Stop
	ok := false
	if len(g.members) > 1 {
		_, stops, ok = a.loadAxis(ctx, b, g.key)
	}

	if !ok || len(stops) == 0 {
		entries := lo.Map(g.members, func(p models.Personnel, _ int) models.AssignedPersonnel {
			entry := models.AssignedPersonnel{Personnel: p}
			if stop, found := referencedStop(p, stops); found {
				annotateStop(&entry, stop)
			}
			return entry
		})
		slices.SortStableFunc(entries, func(x, y models.AssignedPersonnel) int {
			return strings.Compare(x.FullName, y.FullName)
		})
		return entries
	}

	candidates := lo.Filter(stops, func(s models.Stop, _ int) bool { return s.GetCoords().IsValid() })

	entries := lo.Map(g.members, func(p models.Personnel, _ int) models.AssignedPersonnel {
		entry := models.AssignedPersonnel{Personnel: p}
		if validCoords(p.Coords) {
			if stop, d, found := nearestStop(*p.Coords, candidates); found {
				annotateStop(&entry, stop)
				entry.DistanceKm = &d
				entry.Optimized = true
				return entry
			}
		}
		if stop, found := referencedStop(p, stops); found {
			annotateStop(&entry, stop)
		}
		return entry
	})

	slices.SortStableFunc(entries, compareByDistance)
	return entries
}

// compareByDistance orders by distance ascending with missing distances last, then by name
func compareByDistance(x, y models.AssignedPersonnel) int {
	switch {
	case x.DistanceKm != nil && y.DistanceKm == nil:
		return -1
	case x.DistanceKm == nil && y.DistanceKm != nil:
		return 1
	case x.DistanceKm != nil && y.DistanceKm != nil:
		if c := cmp.Compare(*x.DistanceKm, *y.DistanceKm); c != 0 {
			return c
		}
	}
	return strings.Compare(x.FullName, y.FullName)
}

// sortByOrderValue orders by explicit stop order (missing or invalid last), then by name
func sortByOrderValue(members []models.Personnel, stops []models.Stop) []models.AssignedPersonnel {
	entries := lo.Map(members, func(p models.Personnel, _ int) models.AssignedPersonnel {
		entry := models.AssignedPersonnel{Personnel: p}
		if stop, found := referencedStop(p, stops); found {
			annotateStop(&entry, stop)
		}
		return entry
	})

	slices.SortStableFunc(entries, func(x, y models.AssignedPersonnel) int {
		if c := cmp.Compare(orderValue(x.Personnel), orderValue(y.Personnel)); c != 0 {
			return c
		}
		return strings.Compare(x.FullName, y.FullName)
	})
	return entries
}

// PickupSequence sorts stops by distance from the departure point. Equal
// distances keep catalog order; stops without valid coordinates go last.
func PickupSequence(departure models.Coordinates, stops []models.Stop) []models.Stop {
	sequence := slices.Clone(stops)
	slices.SortStableFunc(sequence, func(x, y models.Stop) int {
		xv, yv := x.GetCoords().IsValid(), y.GetCoords().IsValid()
		switch {
		case xv && !yv:
			return -1
		case !xv && yv:
			return 1
		case !xv && !yv:
			return 0
		}
		return cmp.Compare(distance.DistanceKm(departure, x.GetCoords()), distance.DistanceKm(departure, y.GetCoords()))
	})
	return sequence
}

// nearestStop returns the closest candidate; the first one wins on equal distance
func nearestStop(point models.Coordinates, candidates []models.Stop) (models.Stop, float64, bool) {
	var best models.Stop
	bestDist := math.Inf(1)
	found := false

	for _, s := range candidates {
		d := distance.DistanceKm(point, s.GetCoords())
		if d < bestDist {
			best, bestDist, found = s, d, true
		}
	}
	return best, bestDist, found
}

func referencedStop(p models.Personnel, stops []models.Stop) (models.Stop, bool) {
	if p.StopID == nil {
		return models.Stop{}, false
	}
	return lo.Find(stops, func(s models.Stop) bool { return s.ID == *p.StopID })
}

func annotateStop(entry *models.AssignedPersonnel, stop models.Stop) {
	id := stop.ID
	entry.AssignedStopID = &id
	entry.AssignedStopName = stop.Name
	if coords := stop.GetCoords(); coords.IsValid() {
		entry.StopCoords = &coords
	}
}

package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staff-transport/internal/database"
	"staff-transport/internal/models"
)

func ptr[T any](v T) *T { return &v }

func newTrip(start, end models.TripEndpoint, at time.Time) *models.Trip {
	return &models.Trip{
		Start:     start,
		End:       end,
		StartTime: at,
		EndTime:   at.Add(30 * time.Minute),
	}
}

func TestTripCreateAndGetWithRoute(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	at := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	trip := newTrip(
		models.TripEndpoint{Coords: &models.Coordinates{Lat: 36.80, Lng: 10.17}, Address: "Depot"},
		models.TripEndpoint{Coords: &models.Coordinates{Lat: 36.85, Lng: 10.22}},
		at,
	)
	trip.DistanceKm = ptr(7.412)
	trip.DurationMin = ptr(14)
	trip.Path = []models.Coordinates{
		{Lat: 36.80, Lng: 10.17},
		{Lat: 36.82, Lng: 10.20},
		{Lat: 36.85, Lng: 10.22},
	}

	created, err := store.Trips().Create(ctx, trip)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.NotZero(t, created.CreatedAt)

	got, err := store.Trips().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Depot", got.Start.Address)
	assert.Nil(t, got.Start.StopID)
	require.NotNil(t, got.End.Coords)
	assert.InDelta(t, 10.22, got.End.Coords.Lng, 1e-9)
	require.NotNil(t, got.DistanceKm)
	assert.InDelta(t, 7.412, *got.DistanceKm, 1e-9)
	require.NotNil(t, got.DurationMin)
	assert.Equal(t, 14, *got.DurationMin)
	assert.Equal(t, trip.Path, got.Path)
	assert.True(t, got.StartTime.Equal(at))
	assert.False(t, got.NeedsRoute())
	assert.False(t, got.IsFallback())
}

func TestTripGetByIDNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Trips().GetByID(context.Background(), 7)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestTripWithoutRouteAndUpdate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created, err := store.Trips().Create(ctx, newTrip(
		models.TripEndpoint{Coords: &models.Coordinates{Lat: 36.80, Lng: 10.17}},
		models.TripEndpoint{Coords: &models.Coordinates{Lat: 36.85, Lng: 10.22}},
		time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC),
	))
	require.NoError(t, err)

	got, err := store.Trips().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DistanceKm)
	assert.Nil(t, got.DurationMin)
	assert.Nil(t, got.Path)
	assert.True(t, got.NeedsRoute())

	missing, err := store.Trips().ListMissingRoute(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 1)

	path := []models.Coordinates{{Lat: 36.80, Lng: 10.17}, {Lat: 36.85, Lng: 10.22}}
	require.NoError(t, store.Trips().UpdateRoute(ctx, created.ID, 6.9, 17, path))

	got, err = store.Trips().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.NeedsRoute())
	assert.True(t, got.IsFallback())
	assert.Equal(t, path, got.Path)

	missing, err = store.Trips().ListMissingRoute(ctx)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestTripUpdateRouteNotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.Trips().UpdateRoute(context.Background(), 99, 1, 5, nil)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestTripListFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	axis := seedAxis(t, store, "East", "")
	stop := seedStop(t, store, axis.ID, "A", 36.81, 10.18, 1)
	coords := &models.Coordinates{Lat: 36.85, Lng: 10.22}

	day1 := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 5, 2, 7, 0, 0, 0, time.UTC)

	_, err := store.Trips().Create(ctx, newTrip(models.TripEndpoint{StopID: &stop.ID}, models.TripEndpoint{Coords: coords}, day1))
	require.NoError(t, err)
	_, err = store.Trips().Create(ctx, newTrip(models.TripEndpoint{Coords: coords}, models.TripEndpoint{Coords: coords}, day1.Add(time.Hour)))
	require.NoError(t, err)
	_, err = store.Trips().Create(ctx, newTrip(models.TripEndpoint{Coords: coords}, models.TripEndpoint{StopID: &stop.ID}, day2))
	require.NoError(t, err)

	all, err := store.Trips().List(ctx, models.TripFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	// Newest first
	assert.True(t, all[0].StartTime.Equal(day2))

	byDate, err := store.Trips().List(ctx, models.TripFilter{Date: "2024-05-01"})
	require.NoError(t, err)
	assert.Len(t, byDate, 2)

	byStop, err := store.Trips().List(ctx, models.TripFilter{StopID: &stop.ID})
	require.NoError(t, err)
	assert.Len(t, byStop, 2)

	both, err := store.Trips().List(ctx, models.TripFilter{Date: "2024-05-02", StopID: &stop.ID})
	require.NoError(t, err)
	assert.Len(t, both, 1)

	page, err := store.Trips().List(ctx, models.TripFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.True(t, page[0].StartTime.Equal(day1.Add(time.Hour)))
}

func TestTripBackfillEndpointCoordinates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	axis := seedAxis(t, store, "East", "")
	stopA := seedStop(t, store, axis.ID, "A", 36.81, 10.18, 1)
	stopB := seedStop(t, store, axis.ID, "B", 36.84, 10.21, 2)
	placeholder := seedStop(t, store, axis.ID, "Unknown", 0, 0, 3)

	at := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	first, err := store.Trips().Create(ctx, newTrip(
		models.TripEndpoint{StopID: &stopA.ID},
		models.TripEndpoint{StopID: &stopB.ID},
		at,
	))
	require.NoError(t, err)
	second, err := store.Trips().Create(ctx, newTrip(
		models.TripEndpoint{StopID: &placeholder.ID},
		models.TripEndpoint{StopID: &stopB.ID, Coords: &models.Coordinates{Lat: 36.9, Lng: 10.3}},
		at,
	))
	require.NoError(t, err)

	n, err := store.Trips().BackfillEndpointCoordinates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.Trips().GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Start.Coords)
	assert.Equal(t, stopA.GetCoords(), *got.Start.Coords)
	require.NotNil(t, got.End.Coords)
	assert.Equal(t, stopB.GetCoords(), *got.End.Coords)

	got, err = store.Trips().GetByID(ctx, second.ID)
	require.NoError(t, err)
	// Placeholder stop coordinates are never copied; explicit ones are kept
	assert.Nil(t, got.Start.Coords)
	require.NotNil(t, got.End.Coords)
	assert.InDelta(t, 36.9, got.End.Coords.Lat, 1e-9)
}

func TestPathGeometryRoundTrip(t *testing.T) {
	path := []models.Coordinates{{Lat: 36.8, Lng: 10.1}, {Lat: 36.9, Lng: 10.2}}

	raw, err := encodePath(path)
	require.NoError(t, err)
	assert.True(t, raw.Valid)
	assert.Contains(t, raw.String, `"LineString"`)
	assert.Contains(t, raw.String, `[10.1,36.8]`)

	decoded, err := decodePath(raw)
	require.NoError(t, err)
	assert.Equal(t, path, decoded)

	empty, err := encodePath(nil)
	require.NoError(t, err)
	assert.False(t, empty.Valid)
}

func TestTripUnreadablePathGeometryReadsAsMissing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	at := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	start := models.TripEndpoint{Coords: &models.Coordinates{Lat: 36.8, Lng: 10.1}}
	end := models.TripEndpoint{Coords: &models.Coordinates{Lat: 36.9, Lng: 10.2}}

	legacy, err := store.Trips().Create(ctx, newTrip(start, end, at))
	require.NoError(t, err)
	routed := newTrip(start, end, at.Add(time.Hour))
	routed.DistanceKm = ptr(12.5)
	routed.DurationMin = ptr(20)
	routed.Path = []models.Coordinates{{Lat: 36.8, Lng: 10.1}, {Lat: 36.85, Lng: 10.15}, {Lat: 36.9, Lng: 10.2}}
	healthy, err := store.Trips().Create(ctx, routed)
	require.NoError(t, err)
	corrupt, err := store.Trips().Create(ctx, routed)
	require.NoError(t, err)

	_, err = store.DB().Exec(`UPDATE trips SET path_geometry = '[[36.8,10.1],[36.9,10.2]]' WHERE id = ?`, legacy.ID)
	require.NoError(t, err)
	_, err = store.DB().Exec(`UPDATE trips SET path_geometry = 'not json' WHERE id = ?`, corrupt.ID)
	require.NoError(t, err)

	got, err := store.Trips().GetByID(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Path)
	assert.True(t, got.NeedsRoute())

	all, err := store.Trips().List(ctx, models.TripFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	missing, err := store.Trips().ListMissingRoute(ctx)
	require.NoError(t, err)
	ids := make([]int64, 0, len(missing))
	for _, trip := range missing {
		ids = append(ids, trip.ID)
	}
	assert.Equal(t, []int64{legacy.ID, corrupt.ID}, ids)
	assert.NotContains(t, ids, healthy.ID)
}

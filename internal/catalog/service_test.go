package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staff-transport/internal/database"
	"staff-transport/internal/models"
	"staff-transport/internal/sqlite"
)

func setupTestService(t *testing.T) (*Service, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store.Axes(), store.Stops()), store
}

// brokenOrderStops fails every next-order lookup
type brokenOrderStops struct {
	database.StopRepository
	err error
}

func (b *brokenOrderStops) NextOrder(ctx context.Context, axisID int64) (int, error) {
	return 0, b.err
}

func intPtr(v int) *int { return &v }

func TestCreateStopAllocatesNextOrder(t *testing.T) {
	svc, store := setupTestService(t)
	ctx := context.Background()

	axis, err := store.Axes().Create(ctx, &models.Axis{Name: "East"})
	require.NoError(t, err)

	first, err := svc.CreateStop(ctx, StopForm{Name: "A", Lat: 36.81, Lng: 10.18, AxisID: axis.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Order)

	explicit, err := svc.CreateStop(ctx, StopForm{Name: "B", Lat: 36.82, Lng: 10.19, AxisID: axis.ID, Order: intPtr(7)})
	require.NoError(t, err)
	assert.Equal(t, 7, explicit.Order)

	next, err := svc.CreateStop(ctx, StopForm{Name: "C", Lat: 36.83, Lng: 10.20, AxisID: axis.ID, Order: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 8, next.Order)
}

func TestCreateStopUnknownAxis(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.CreateStop(context.Background(), StopForm{Name: "A", Lat: 36.81, Lng: 10.18, AxisID: 9})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestCreateStopDefaultsOrderOnRecoverableError(t *testing.T) {
	_, store := setupTestService(t)
	ctx := context.Background()

	axis, err := store.Axes().Create(ctx, &models.Axis{Name: "East"})
	require.NoError(t, err)
	_, err = store.Stops().Create(ctx, &models.Stop{Name: "Existing", Lat: 36.8, Lng: 10.1, AxisID: axis.ID, Order: 4})
	require.NoError(t, err)

	stops := &brokenOrderStops{
		StopRepository: store.Stops(),
		err:            &database.RecoverableError{Op: "next stop order", Err: errors.New("database is locked")},
	}
	svc := NewService(store.Axes(), stops)

	stop, err := svc.CreateStop(ctx, StopForm{Name: "New", Lat: 36.81, Lng: 10.18, AxisID: axis.ID})
	require.NoError(t, err)
	assert.Equal(t, DefaultStopOrder, stop.Order)
}

func TestCreateStopHardNextOrderFailure(t *testing.T) {
	_, store := setupTestService(t)
	ctx := context.Background()

	axis, err := store.Axes().Create(ctx, &models.Axis{Name: "East"})
	require.NoError(t, err)

	stops := &brokenOrderStops{StopRepository: store.Stops(), err: errors.New("boom")}
	svc := NewService(store.Axes(), stops)

	_, err = svc.CreateStop(ctx, StopForm{Name: "New", Lat: 36.81, Lng: 10.18, AxisID: axis.ID})
	assert.EqualError(t, err, "boom")
}

func TestStopsInPickupSequence(t *testing.T) {
	svc, store := setupTestService(t)
	ctx := context.Background()

	axis, err := store.Axes().Create(ctx, &models.Axis{Name: "East", Departure: "36.80 10.18"})
	require.NoError(t, err)
	for _, s := range []StopForm{
		{Name: "Far", Lat: 36.90, Lng: 10.18},
		{Name: "Unknown", Lat: 0, Lng: 0},
		{Name: "Near", Lat: 36.81, Lng: 10.18},
	} {
		s.AxisID = axis.ID
		_, err := svc.CreateStop(ctx, s)
		require.NoError(t, err)
	}

	seq, err := svc.StopsInPickupSequence(ctx, axis.ID)
	require.NoError(t, err)
	require.NotNil(t, seq.Departure)
	assert.Equal(t, models.Coordinates{Lat: 36.80, Lng: 10.18}, *seq.Departure)

	got := make([]string, len(seq.Stops))
	for i, s := range seq.Stops {
		got[i] = s.Name
	}
	assert.Equal(t, []string{"Near", "Far", "Unknown"}, got)
}

func TestStopsInPickupSequenceWithoutDeparture(t *testing.T) {
	svc, store := setupTestService(t)
	ctx := context.Background()

	axis, err := store.Axes().Create(ctx, &models.Axis{Name: "West", Departure: "main gate"})
	require.NoError(t, err)
	_, err = svc.CreateStop(ctx, StopForm{Name: "Z", AxisID: axis.ID})
	require.NoError(t, err)
	_, err = svc.CreateStop(ctx, StopForm{Name: "A", AxisID: axis.ID})
	require.NoError(t, err)

	seq, err := svc.StopsInPickupSequence(ctx, axis.ID)
	require.NoError(t, err)
	assert.Nil(t, seq.Departure)
	require.Len(t, seq.Stops, 2)
	assert.Equal(t, "Z", seq.Stops[0].Name)

	_, err = svc.StopsInPickupSequence(ctx, 404)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestNearbyRebuildsAfterCreate(t *testing.T) {
	svc, store := setupTestService(t)
	ctx := context.Background()

	axis, err := store.Axes().Create(ctx, &models.Axis{Name: "East"})
	require.NoError(t, err)
	_, err = svc.CreateStop(ctx, StopForm{Name: "A", Lat: 36.81, Lng: 10.18, AxisID: axis.ID})
	require.NoError(t, err)

	center := models.Coordinates{Lat: 36.80, Lng: 10.18}
	found, err := svc.Nearby(ctx, center, 5)
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = svc.CreateStop(ctx, StopForm{Name: "B", Lat: 36.805, Lng: 10.18, AxisID: axis.ID})
	require.NoError(t, err)

	found, err = svc.Nearby(ctx, center, 5)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "B", found[0].Name)
}

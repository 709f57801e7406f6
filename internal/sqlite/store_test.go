package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staff-transport/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedAxis(t *testing.T, store *Store, name, departure string) models.Axis {
	t.Helper()
	a, err := store.Axes().Create(context.Background(), &models.Axis{Name: name, Departure: departure})
	require.NoError(t, err)
	return *a
}

func seedStop(t *testing.T, store *Store, axisID int64, name string, lat, lng float64, order int) models.Stop {
	t.Helper()
	s, err := store.Stops().Create(context.Background(), &models.Stop{
		Name: name, Lat: lat, Lng: lng, AxisID: axisID, Order: order,
	})
	require.NoError(t, err)
	return *s
}

func TestNewStore(t *testing.T) {
	store := setupTestStore(t)
	assert.NotNil(t, store.Axes())
	assert.NotNil(t, store.Stops())
	assert.NotNil(t, store.Schedules())
	assert.NotNil(t, store.Trips())
	assert.Equal(t, ":memory:", store.GetDBPath())
}

func TestHealthCheck(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.HealthCheck(context.Background()))
}

func TestHealthCheckAfterClose(t *testing.T) {
	store, err := New(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.Error(t, store.HealthCheck(context.Background()))
}

func TestEmptyTables(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	axes, err := store.Axes().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, axes)

	stops, err := store.Stops().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, stops)

	trips, err := store.Trips().List(ctx, models.TripFilter{})
	require.NoError(t, err)
	assert.Empty(t, trips)

	scheduled, err := store.Schedules().ListScheduled(ctx, "2024-05-01", "00:00", "23:59")
	require.NoError(t, err)
	assert.Empty(t, scheduled)
}

func TestReopenFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "transport.db")
	ctx := context.Background()

	store, err := New(path)
	require.NoError(t, err)
	seedAxis(t, store, "North", "")
	require.NoError(t, store.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	axes, err := reopened.Axes().List(ctx)
	require.NoError(t, err)
	require.Len(t, axes, 1)
	assert.Equal(t, "North", axes[0].Name)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"SERVER_ADDR", "DB_PATH", "OSRM_BASE_URL", "NOMINATIM_BASE_URL",
	"ROUTE_MAX_RETRIES", "ROUTE_RETRY_STEP", "MIGRATION_PACING", "LOG_LEVEL", "LOG_FILE",
}

func clearEnv(t *testing.T) {
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.ServerAddr)
	assert.Equal(t, "data/transport.db", cfg.DBPath)
	assert.Equal(t, "https://router.project-osrm.org", cfg.OSRMBaseURL)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.NominatimBaseURL)
	assert.Equal(t, 3, cfg.RouteMaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RouteRetryStep)
	assert.Equal(t, 200*time.Millisecond, cfg.MigrationPacing)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.LogFile)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("ROUTE_MAX_RETRIES", "5")
	t.Setenv("ROUTE_RETRY_STEP", "1s")
	t.Setenv("MIGRATION_PACING", "0s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FILE", "logs/transport.log")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, 5, cfg.RouteMaxRetries)
	assert.Equal(t, time.Second, cfg.RouteRetryStep)
	assert.Zero(t, cfg.MigrationPacing)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "logs/transport.log", cfg.LogFile)
}

func TestFromEnvInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"ROUTE_MAX_RETRIES", "three"},
		{"ROUTE_MAX_RETRIES", "0"},
		{"ROUTE_RETRY_STEP", "500"},
		{"MIGRATION_PACING", "-1s"},
		{"LOG_LEVEL", "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("DB_PATH")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DB_PATH=/tmp/from-dotenv.db\n"), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-dotenv.db", cfg.DBPath)
}

func TestLoadWithoutDotEnv(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "data/transport.db", cfg.DBPath)
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir for Go < 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

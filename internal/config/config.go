package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the service settings read from the environment
type Config struct {
	ServerAddr       string
	DBPath           string
	OSRMBaseURL      string
	NominatimBaseURL string
	RouteMaxRetries  int
	RouteRetryStep   time.Duration
	MigrationPacing  time.Duration
	LogLevel         string
	LogFile          string
}

// Load reads an optional .env file, then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
		logrus.Debug("No .env file found (using environment variables)")
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables, applying defaults
func FromEnv() (*Config, error) {
	cfg := &Config{
		ServerAddr:       getEnv("SERVER_ADDR", "127.0.0.1:8080"),
		DBPath:           getEnv("DB_PATH", "data/transport.db"),
		OSRMBaseURL:      getEnv("OSRM_BASE_URL", "https://router.project-osrm.org"),
		NominatimBaseURL: getEnv("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFile:          os.Getenv("LOG_FILE"),
	}

	var err error
	if cfg.RouteMaxRetries, err = getInt("ROUTE_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.RouteMaxRetries < 1 {
		return nil, fmt.Errorf("ROUTE_MAX_RETRIES must be at least 1, got %d", cfg.RouteMaxRetries)
	}
	if cfg.RouteRetryStep, err = getDuration("ROUTE_RETRY_STEP", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.MigrationPacing, err = getDuration("MIGRATION_PACING", 200*time.Millisecond); err != nil {
		return nil, err
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, raw)
	}
	return d, nil
}

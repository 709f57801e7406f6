package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"staff-transport/internal/database"

	_ "modernc.org/sqlite"
)

const (
	DefaultDBFileName = "transport.db"
	schemaVersion     = 1
)

// Store is a SQLite-based data store implementing database.DataStore
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	axisRepo     database.AxisRepository
	stopRepo     database.StopRepository
	scheduleRepo database.ScheduleRepository
	tripRepo     database.TripRepository
}

// New creates a new SQLite store at the specified path (":memory:" for tests)
func New(dbPath string) (*Store, error) {
	inMemory := dbPath == ":memory:"
	if !inMemory {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logrus.WithField("path", dbPath).Info("Opening SQLite database")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to :memory: is a separate database
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.axisRepo = &axisRepository{store: store}
	store.stopRepo = &stopRepository{store: store}
	store.scheduleRepo = &scheduleRepository{store: store}
	store.tripRepo = &tripRepository{store: store}

	return store, nil
}

// GetDBPath returns the current database file path
func (s *Store) GetDBPath() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist, create everything
		return s.createSchema()
	}

	if version < schemaVersion {
		return s.runMigrations(version)
	}

	return nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT INTO schema_version (version) VALUES (1);

	-- Axes (named routes made of ordered stops)
	CREATE TABLE IF NOT EXISTS axes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		departure TEXT NOT NULL DEFAULT ''
	);

	-- Stops (pickup points)
	CREATE TABLE IF NOT EXISTS stops (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		lat REAL NOT NULL DEFAULT 0,
		lng REAL NOT NULL DEFAULT 0,
		axis_id INTEGER NOT NULL,
		stop_order INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (axis_id) REFERENCES axes(id) ON DELETE CASCADE
	);

	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		full_name TEXT NOT NULL,
		position TEXT NOT NULL DEFAULT '',
		lat REAL,
		lng REAL,
		stop_id INTEGER,
		stop_order TEXT,
		axis_id INTEGER,
		FOREIGN KEY (stop_id) REFERENCES stops(id) ON DELETE SET NULL,
		FOREIGN KEY (axis_id) REFERENCES axes(id) ON DELETE SET NULL
	);

	-- Scheduled pickups
	CREATE TABLE IF NOT EXISTS pickups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL,
		pickup_date TEXT NOT NULL,
		pickup_time TEXT NOT NULL,
		axis_id INTEGER,
		FOREIGN KEY (employee_id) REFERENCES employees(id) ON DELETE CASCADE,
		FOREIGN KEY (axis_id) REFERENCES axes(id) ON DELETE SET NULL
	);

	-- Trips with cached route data
	CREATE TABLE IF NOT EXISTS trips (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_stop_id INTEGER,
		start_lat REAL,
		start_lng REAL,
		start_address TEXT NOT NULL DEFAULT '',
		end_stop_id INTEGER,
		end_lat REAL,
		end_lng REAL,
		end_address TEXT NOT NULL DEFAULT '',
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		distance_km REAL,
		duration_min INTEGER,
		path_geometry TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (start_stop_id) REFERENCES stops(id) ON DELETE SET NULL,
		FOREIGN KEY (end_stop_id) REFERENCES stops(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stops_axis_order ON stops(axis_id, stop_order);
	CREATE INDEX IF NOT EXISTS idx_pickups_date_time ON pickups(pickup_date, pickup_time);
	CREATE INDEX IF NOT EXISTS idx_trips_start_time ON trips(start_time);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	logrus.WithField("version", schemaVersion).Info("SQLite schema initialized")
	return nil
}

func (s *Store) runMigrations(fromVersion int) error {
	logrus.WithFields(logrus.Fields{"from": fromVersion, "to": schemaVersion}).Info("Migrating SQLite schema")

	_, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		// Checkpoint WAL before closing
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the underlying handle for seeding and tooling
func (s *Store) DB() *sql.DB {
	return s.db
}

// Repository accessors
func (s *Store) Axes() database.AxisRepository          { return s.axisRepo }
func (s *Store) Stops() database.StopRepository         { return s.stopRepo }
func (s *Store) Schedules() database.ScheduleRepository { return s.scheduleRepo }
func (s *Store) Trips() database.TripRepository         { return s.tripRepo }

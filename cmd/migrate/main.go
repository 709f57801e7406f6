// Command migrate backfills route data for stored trips.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"staff-transport/internal/config"
	"staff-transport/internal/logging"
	"staff-transport/internal/server"
	"staff-transport/internal/sqlite"
	"staff-transport/internal/trips"
)

func main() {
	if err := run(); err != nil {
		logrus.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	includeFallback := flag.Bool("include-fallback", false, "also recompute trips stored with a straight-line route")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCloser, err := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logCloser.Close()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open data store: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := server.NewHandler(cfg, store)
	report, err := handler.Trips.MigrateAll(ctx, trips.MigrateOptions{IncludeFallback: *includeFallback})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/DMW2151/mta-buses/internal/config"
	"github.com/DMW2151/mta-buses/internal/db"
	"github.com/DMW2151/mta-buses/internal/logging"
	"github.com/DMW2151/mta-buses/internal/static"
)

func main() {
	dataDir := flag.String("data-dir", "data/static", "directory with one sub-directory or .zip per region")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, "import-static", logging.NewRunID())

	if err := run(cfg, logger, *dataDir); err != nil {
		logger.Error("static import failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, dataDir string) error {
	if err := cfg.Validate(cfg.Database); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	res, err := static.NewLoader(store, logger).LoadDir(ctx, dataDir)
	if err != nil {
		return err
	}

	logger.Info("static import done",
		"regions", res.Regions,
		"shapes", res.Shapes,
		"shapes_skipped", res.ShapesSkipped,
		"points_inserted", res.PointsInserted,
		"trips_inserted", res.TripsInserted,
		"rows_dropped", res.RowsDropped)
	return nil
}

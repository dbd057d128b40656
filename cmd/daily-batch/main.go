package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DMW2151/mta-buses/internal/archive"
	"github.com/DMW2151/mta-buses/internal/batch"
	"github.com/DMW2151/mta-buses/internal/config"
	"github.com/DMW2151/mta-buses/internal/db"
	"github.com/DMW2151/mta-buses/internal/logging"
	"github.com/DMW2151/mta-buses/internal/models"
)

func main() {
	date := flag.String("date", "", "service date to summarise (YYYY-MM-DD, default: yesterday in TZ)")
	skipPrune := flag.Bool("skip-prune", false, "archive only, do not delete aged observations")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	runID := logging.NewRunID()
	logger := logging.New(cfg.Log, "daily-batch", runID)

	if err := run(cfg, logger, runID, *date, !*skipPrune); err != nil {
		logger.Error("daily batch failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, runID, date string, prune bool) error {
	if err := cfg.Validate(cfg.Database, cfg.Archive, cfg.Schedule); err != nil {
		return err
	}

	target := batch.YesterdayIn(time.Now(), cfg.Schedule.Location)
	if date != "" {
		d, err := time.Parse(models.DateLayout, date)
		if err != nil {
			return fmt.Errorf("invalid -date %q: %w", date, err)
		}
		target = d
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

	sink, err := archive.New(ctx, cfg.Archive, runID)
	if err != nil {
		return fmt.Errorf("failed to create archive sink: %w", err)
	}

	runner := batch.NewRunner(
		batch.NewAggregator(store, sink, logger),
		batch.NewPruner(store, cfg.Schedule.RetentionDays, cfg.Schedule.Location, logger),
		nil,
		logger,
	)

	report, err := runner.Run(ctx, target, prune)
	if err != nil {
		return err
	}

	logger.Info("daily batch done",
		"service_date", report.ServiceDate.Format(models.DateLayout),
		"trips", report.Trips,
		"pruned", report.Pruned,
		"prune_ran", report.PruneRan)
	return nil
}

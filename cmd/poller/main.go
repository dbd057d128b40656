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

	"github.com/go-co-op/gocron"

	"github.com/DMW2151/mta-buses/internal/archive"
	"github.com/DMW2151/mta-buses/internal/batch"
	"github.com/DMW2151/mta-buses/internal/config"
	"github.com/DMW2151/mta-buses/internal/db"
	"github.com/DMW2151/mta-buses/internal/logging"
	"github.com/DMW2151/mta-buses/internal/metrics"
	"github.com/DMW2151/mta-buses/internal/realtime/feed"
)

func main() {
	once := flag.Bool("once", false, "run a single poll cycle and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, "poller", logging.NewRunID())

	if err := run(cfg, logger, *once); err != nil {
		logger.Error("poller failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, once bool) error {
	if err := cfg.Validate(cfg.Database, cfg.Feed, cfg.Schedule); err != nil {
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

	collector := metrics.NewCollector()
	client := feed.NewClient(cfg.Feed.VehiclePositionsURL, cfg.Feed.APIKey, cfg.Feed.Timeout)
	poller := feed.NewPoller(client, store, collector, logger)

	// Cron mode: one cycle, failure is the exit status.
	if once {
		_, err := poller.Poll(ctx)
		return err
	}

	if cfg.HTTP.MetricsAddr != "" {
		srv := collector.Serve(cfg.HTTP.MetricsAddr, logger)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			srv.Shutdown(shutdownCtx)
		}()
	}

	scheduler := gocron.NewScheduler(cfg.Schedule.Location)

	// A failed poll is logged and retried on the next tick.
	_, err = scheduler.Every(cfg.Schedule.PollInterval).SingletonMode().Do(func() {
		pollCtx, done := context.WithTimeout(ctx, cfg.Schedule.PollInterval)
		defer done()
		if _, err := poller.Poll(pollCtx); err != nil {
			logger.Error("poll failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule poll job: %w", err)
	}

	if cfg.Schedule.DailyJobAt != "" {
		if err := scheduleDailyJob(ctx, scheduler, cfg, store, collector, logger); err != nil {
			return err
		}
	}

	scheduler.StartAsync()
	logger.Info("poller running",
		"poll_interval", cfg.Schedule.PollInterval,
		"daily_job_at", cfg.Schedule.DailyJobAt)

	<-ctx.Done()
	logger.Info("shutting down")
	scheduler.Stop()
	return nil
}

func scheduleDailyJob(ctx context.Context, scheduler *gocron.Scheduler, cfg *config.Config, store db.Store, collector *metrics.Collector, logger *slog.Logger) error {
	if err := cfg.Validate(cfg.Archive); err != nil {
		return err
	}

	runID := logging.NewRunID()
	sink, err := archive.New(ctx, cfg.Archive, runID)
	if err != nil {
		return fmt.Errorf("failed to create archive sink: %w", err)
	}

	jobLogger := logger.With("job", "daily")
	runner := batch.NewRunner(
		batch.NewAggregator(store, sink, jobLogger),
		batch.NewPruner(store, cfg.Schedule.RetentionDays, cfg.Schedule.Location, jobLogger),
		collector,
		jobLogger,
	)

	_, err = scheduler.Every(1).Day().At(cfg.Schedule.DailyJobAt).SingletonMode().Do(func() {
		target := batch.YesterdayIn(time.Now(), cfg.Schedule.Location)
		if _, err := runner.Run(ctx, target, true); err != nil {
			jobLogger.Error("daily job failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule daily job: %w", err)
	}
	return nil
}

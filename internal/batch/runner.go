package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DMW2151/mta-buses/internal/archive"
	"github.com/DMW2151/mta-buses/internal/models"
)

// Metrics receives the outcome of each daily run. A nil Metrics is allowed.
type Metrics interface {
	ObserveDailyRun(result string, summaries int, pruned int64)
}

// Daily run results reported to Metrics.
const (
	ResultOK           = "ok"
	ResultReadError    = "read_error"
	ResultArchiveError = "archive_error"
	ResultPruneError   = "prune_error"
)

// Report summarises a daily run.
type Report struct {
	ServiceDate time.Time
	Trips       int
	Pruned      int64
	PruneRan    bool
}

// Runner sequences the daily job. Pruning only happens after the summary
// was archived.
type Runner struct {
	aggregator *Aggregator
	pruner     *Pruner
	metrics    Metrics
	logger     *slog.Logger
}

func NewRunner(aggregator *Aggregator, pruner *Pruner, metrics Metrics, logger *slog.Logger) *Runner {
	return &Runner{aggregator: aggregator, pruner: pruner, metrics: metrics, logger: logger}
}

// YesterdayIn returns the calendar date before now in loc.
func YesterdayIn(now time.Time, loc *time.Location) time.Time {
	return models.CivilDate(now.In(loc)).AddDate(0, 0, -1)
}

// Run archives serviceDate and, if prune is set, deletes aged rows.
func (r *Runner) Run(ctx context.Context, serviceDate time.Time, prune bool) (Report, error) {
	report := Report{ServiceDate: models.CivilDate(serviceDate)}
	logger := r.logger.With("service_date", report.ServiceDate.Format(models.DateLayout))

	trips, err := r.aggregator.Run(ctx, report.ServiceDate)
	if err != nil {
		var archiveErr *archive.ArchiveWriteError
		result := ResultReadError
		if errors.As(err, &archiveErr) {
			result = ResultArchiveError
		}
		r.observe(result, 0, 0)
		logger.Error("daily summary failed, skipping prune", "error", err)
		return report, fmt.Errorf("failed to archive daily summary: %w", err)
	}
	report.Trips = trips

	if !prune {
		r.observe(ResultOK, trips, 0)
		return report, nil
	}

	pruned, err := r.pruner.Run(ctx)
	if err != nil {
		r.observe(ResultPruneError, trips, 0)
		return report, fmt.Errorf("failed to prune observations: %w", err)
	}
	report.Pruned = pruned
	report.PruneRan = true

	r.observe(ResultOK, trips, pruned)
	logger.Info("daily job complete", "trips", trips, "pruned", pruned)
	return report, nil
}

func (r *Runner) observe(result string, trips int, pruned int64) {
	if r.metrics != nil {
		r.metrics.ObserveDailyRun(result, trips, pruned)
	}
}

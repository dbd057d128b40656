package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/DMW2151/mta-buses/internal/models"
)

// ObservationDeleter removes observations older than a date.
type ObservationDeleter interface {
	DeleteObservationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner deletes observations whose service date is older than the
// retention horizon, measured from the wall-clock date at prune time.
type Pruner struct {
	store         ObservationDeleter
	retentionDays int
	location      *time.Location
	now           func() time.Time
	logger        *slog.Logger
}

func NewPruner(store ObservationDeleter, retentionDays int, location *time.Location, logger *slog.Logger) *Pruner {
	return &Pruner{
		store:         store,
		retentionDays: retentionDays,
		location:      location,
		now:           time.Now,
		logger:        logger,
	}
}

// Cutoff is today in the configured location minus the retention days.
// Rows dated strictly before it are deleted.
func (p *Pruner) Cutoff() time.Time {
	today := models.CivilDate(p.now().In(p.location))
	return today.AddDate(0, 0, -p.retentionDays)
}

// Run deletes aged observations. It does not check that the dates being
// removed were archived; the Runner orders that.
func (p *Pruner) Run(ctx context.Context) (int64, error) {
	cutoff := p.Cutoff()
	n, err := p.store.DeleteObservationsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	p.logger.Info("pruned observations",
		"before", cutoff.Format(models.DateLayout),
		"retention_days", p.retentionDays,
		"rows", n)
	return n, nil
}

package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DMW2151/mta-buses/internal/models"
)

// Fetcher retrieves one raw feed payload.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// ObservationWriter persists a decoded batch atomically, skipping rows
// whose natural key already exists. It returns the number of new rows.
type ObservationWriter interface {
	UpsertObservations(ctx context.Context, observations []models.Observation) (int64, error)
}

// Metrics receives per-poll counters. A nil Metrics is allowed.
type Metrics interface {
	ObservePoll(result string, elapsed time.Duration)
	ObserveDecode(decoded, dropped int)
	ObserveWrite(inserted, duplicates int)
}

// Poll results reported to Metrics.
const (
	ResultOK          = "ok"
	ResultFetchError  = "fetch_error"
	ResultDecodeError = "decode_error"
	ResultWriteError  = "write_error"
)

// Stats summarises one poll cycle.
type Stats struct {
	Entities   int
	Decoded    int
	Dropped    int
	Inserted   int64
	Duplicates int64
}

// Poller runs fetch, decode and write for one poll cycle.
type Poller struct {
	fetcher Fetcher
	writer  ObservationWriter
	metrics Metrics
	logger  *slog.Logger
}

// NewPoller wires a poller. metrics may be nil.
func NewPoller(fetcher Fetcher, writer ObservationWriter, metrics Metrics, logger *slog.Logger) *Poller {
	return &Poller{fetcher: fetcher, writer: writer, metrics: metrics, logger: logger}
}

// Poll fetches the feed, decodes it completely and only then writes it.
// Any failure before the write leaves the store untouched.
func (p *Poller) Poll(ctx context.Context) (Stats, error) {
	start := time.Now()
	var stats Stats

	payload, err := p.fetcher.Fetch(ctx)
	if err != nil {
		p.observe(ResultFetchError, start)
		return stats, fmt.Errorf("failed to fetch vehicle positions: %w", err)
	}

	batch, err := Decode(payload)
	if err != nil {
		p.observe(ResultDecodeError, start)
		return stats, err
	}

	stats.Entities = batch.Entities
	stats.Decoded = len(batch.Observations)
	stats.Dropped = batch.Dropped
	if p.metrics != nil {
		p.metrics.ObserveDecode(stats.Decoded, stats.Dropped)
	}

	if len(batch.Observations) == 0 {
		p.logger.Info("feed has no usable vehicle positions",
			"entities", batch.Entities, "dropped", batch.Dropped)
		p.observe(ResultOK, start)
		return stats, nil
	}

	inserted, err := p.writer.UpsertObservations(ctx, batch.Observations)
	if err != nil {
		p.observe(ResultWriteError, start)
		return stats, fmt.Errorf("failed to write vehicle positions: %w", err)
	}

	stats.Inserted = inserted
	stats.Duplicates = int64(stats.Decoded) - inserted
	if p.metrics != nil {
		p.metrics.ObserveWrite(int(stats.Inserted), int(stats.Duplicates))
	}
	p.observe(ResultOK, start)

	p.logger.Info("polled vehicle positions",
		"feed_timestamp", batch.FeedTimestamp,
		"entities", stats.Entities,
		"dropped", stats.Dropped,
		"inserted", stats.Inserted,
		"duplicates", stats.Duplicates,
		"elapsed", time.Since(start))
	return stats, nil
}

func (p *Poller) observe(result string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObservePoll(result, time.Since(start))
	}
}

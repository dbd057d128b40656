// Package batch runs the daily job: summarise one service date, archive
// the summary, then prune aged observations.
package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/DMW2151/mta-buses/internal/archive"
	"github.com/DMW2151/mta-buses/internal/models"
)

// SummaryReader computes per-trip first/last seen bounds for a date.
type SummaryReader interface {
	DailyTripSummaries(ctx context.Context, serviceDate time.Time) ([]models.DailyTripSummary, error)
}

var summaryHeader = []string{"direction_id", "trip_id", "service_date", "start_time", "end_time", "runtime"}

// SummaryKey is the archive key for a service date's summary.
func SummaryKey(serviceDate time.Time) string {
	return "daily_performance_summary_" + serviceDate.Format(models.DateLayout) + ".csv"
}

// EncodeSummaries renders summaries as CSV with a header row. runtime is
// in whole seconds.
func EncodeSummaries(summaries []models.DailyTripSummary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(summaryHeader); err != nil {
		return nil, err
	}
	for _, s := range summaries {
		record := []string{
			strconv.Itoa(s.DirectionID),
			s.TripID,
			s.ServiceDate.Format(models.DateLayout),
			strconv.FormatInt(s.StartTime, 10),
			strconv.FormatInt(s.EndTime, 10),
			strconv.FormatInt(int64(s.Runtime()/time.Second), 10),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Aggregator summarises a service date and hands the CSV to the sink.
type Aggregator struct {
	store  SummaryReader
	sink   archive.Sink
	logger *slog.Logger
}

func NewAggregator(store SummaryReader, sink archive.Sink, logger *slog.Logger) *Aggregator {
	return &Aggregator{store: store, sink: sink, logger: logger}
}

// Run archives the summary for serviceDate and returns the number of
// trips in it. A day with no observations still writes a header-only file
// so a re-run always replaces the previous object.
func (a *Aggregator) Run(ctx context.Context, serviceDate time.Time) (int, error) {
	serviceDate = models.CivilDate(serviceDate)

	summaries, err := a.store.DailyTripSummaries(ctx, serviceDate)
	if err != nil {
		return 0, err
	}

	body, err := EncodeSummaries(summaries)
	if err != nil {
		return 0, fmt.Errorf("failed to encode summaries: %w", err)
	}

	key := SummaryKey(serviceDate)
	if err := a.sink.Put(ctx, key, body); err != nil {
		return 0, err
	}

	stats := SummaryStats(summaries)
	a.logger.Info("archived daily summary",
		"service_date", serviceDate.Format(models.DateLayout),
		"key", key,
		"trips", len(summaries),
		"bytes", len(body),
		"runtime_mean_s", math.Round(stats.Mean),
		"runtime_stddev_s", math.Round(stats.StdDev()),
		"runtime_max_s", stats.Max)
	return len(summaries), nil
}

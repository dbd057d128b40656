package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry with the pipeline's counters. It
// satisfies feed.Metrics and batch.Metrics.
type Collector struct {
	reg *prometheus.Registry

	Polls           *prometheus.CounterVec // result label: ok|fetch_error|decode_error|write_error
	PollDuration    prometheus.Histogram
	EntitiesDecoded prometheus.Counter
	EntitiesDropped prometheus.Counter
	RowsInserted    prometheus.Counter
	RowsDuplicate   prometheus.Counter

	DailyRuns        *prometheus.CounterVec // result label: ok|read_error|archive_error|prune_error
	SummariesWritten prometheus.Counter
	RowsPruned       prometheus.Counter

	HTTPRequests *prometheus.CounterVec // code and method labels
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mta_buses_polls_total",
			Help: "Feed poll cycles by result.",
		}, []string{"result"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mta_buses_poll_duration_seconds",
			Help:    "Duration of one fetch, decode and write cycle.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		EntitiesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mta_buses_entities_decoded_total",
			Help: "Feed entities projected into observations.",
		}),
		EntitiesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mta_buses_entities_dropped_total",
			Help: "Feed entities dropped for missing trip or position fields.",
		}),
		RowsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mta_buses_rows_inserted_total",
			Help: "Observations newly stored.",
		}),
		RowsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mta_buses_rows_duplicate_total",
			Help: "Observations skipped because their key was already stored.",
		}),
		DailyRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mta_buses_daily_runs_total",
			Help: "Daily aggregate and prune runs by result.",
		}, []string{"result"}),
		SummariesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mta_buses_summaries_archived_total",
			Help: "Trip summary rows written to the archive.",
		}),
		RowsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mta_buses_rows_pruned_total",
			Help: "Observations deleted by retention.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mta_buses_http_requests_total",
			Help: "API requests by status code and method.",
		}, []string{"code", "method"}),
	}

	reg.MustRegister(
		c.Polls, c.PollDuration,
		c.EntitiesDecoded, c.EntitiesDropped,
		c.RowsInserted, c.RowsDuplicate,
		c.DailyRuns, c.SummariesWritten, c.RowsPruned,
		c.HTTPRequests,
	)

	return c
}

func (c *Collector) ObservePoll(result string, elapsed time.Duration) {
	c.Polls.WithLabelValues(result).Inc()
	c.PollDuration.Observe(elapsed.Seconds())
}

func (c *Collector) ObserveDecode(decoded, dropped int) {
	c.EntitiesDecoded.Add(float64(decoded))
	c.EntitiesDropped.Add(float64(dropped))
}

func (c *Collector) ObserveWrite(inserted, duplicates int) {
	c.RowsInserted.Add(float64(inserted))
	c.RowsDuplicate.Add(float64(duplicates))
}

func (c *Collector) ObserveDailyRun(result string, summaries int, pruned int64) {
	c.DailyRuns.WithLabelValues(result).Inc()
	c.SummariesWritten.Add(float64(summaries))
	c.RowsPruned.Add(float64(pruned))
}

// Instrument counts requests served by next.
func (c *Collector) Instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(c.HTTPRequests, next)
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", addr)
	return srv
}

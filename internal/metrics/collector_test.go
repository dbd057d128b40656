package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.ObservePoll("ok", 200*time.Millisecond)
	c.ObservePoll("ok", 100*time.Millisecond)
	c.ObservePoll("decode_error", time.Millisecond)
	c.ObserveDecode(10, 2)
	c.ObserveWrite(7, 3)
	c.ObserveDailyRun("ok", 42, 1000)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Polls.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Polls.WithLabelValues("decode_error")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.EntitiesDecoded))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.EntitiesDropped))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.RowsInserted))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.RowsDuplicate))
	assert.Equal(t, 42.0, testutil.ToFloat64(c.SummariesWritten))
	assert.Equal(t, 1000.0, testutil.ToFloat64(c.RowsPruned))
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector()
	c.ObserveWrite(1, 0)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "mta_buses_rows_inserted_total 1")
}

func TestCollectorInstrument(t *testing.T) {
	c := NewCollector()
	h := c.Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/summaries/2024-01-01", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("418", "get")))
}

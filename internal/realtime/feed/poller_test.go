package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DMW2151/mta-buses/internal/models"
)

type stubFetcher struct {
	payload []byte
	err     error
}

func (s stubFetcher) Fetch(context.Context) ([]byte, error) { return s.payload, s.err }

// memoryWriter mimics ON CONFLICT DO NOTHING on the natural key.
type memoryWriter struct {
	rows  map[models.ObservationKey]models.Observation
	calls int
	err   error
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{rows: make(map[models.ObservationKey]models.Observation)}
}

func (m *memoryWriter) UpsertObservations(_ context.Context, obs []models.Observation) (int64, error) {
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, o := range obs {
		if _, ok := m.rows[o.Key()]; ok {
			continue
		}
		m.rows[o.Key()] = o
		n++
	}
	return n, nil
}

type recordingMetrics struct {
	results []string
	decoded int
	dropped int
	dupes   int
}

func (r *recordingMetrics) ObservePoll(result string, _ time.Duration) {
	r.results = append(r.results, result)
}
func (r *recordingMetrics) ObserveDecode(decoded, dropped int) {
	r.decoded += decoded
	r.dropped += dropped
}
func (r *recordingMetrics) ObserveWrite(_, duplicates int) { r.dupes += duplicates }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPollDuplicateEntitiesStoreOnce(t *testing.T) {
	payload := encodeFeed(t,
		vehicleEntity("1", "A", 0, "20240101", 1000, 40.1, -73.9),
		vehicleEntity("2", "A", 0, "20240101", 1000, 40.1, -73.9),
	)
	writer := newMemoryWriter()
	metrics := &recordingMetrics{}
	p := NewPoller(stubFetcher{payload: payload}, writer, metrics, discardLogger())

	stats, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Inserted)
	assert.Equal(t, int64(1), stats.Duplicates)
	assert.Len(t, writer.rows, 1)

	// Replaying the same poll changes nothing.
	stats, err = p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Inserted)
	assert.Len(t, writer.rows, 1)

	assert.Equal(t, []string{ResultOK, ResultOK}, metrics.results)
	assert.Equal(t, 3, metrics.dupes)
}

func TestPollDecodeErrorSkipsWrite(t *testing.T) {
	writer := newMemoryWriter()
	metrics := &recordingMetrics{}
	p := NewPoller(stubFetcher{payload: []byte{0xff, 0xff}}, writer, metrics, discardLogger())

	_, err := p.Poll(context.Background())
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Zero(t, writer.calls)
	assert.Equal(t, []string{ResultDecodeError}, metrics.results)
}

func TestPollFetchErrorSkipsWrite(t *testing.T) {
	writer := newMemoryWriter()
	p := NewPoller(stubFetcher{err: &FetchError{Endpoint: "http://feed", Err: context.DeadlineExceeded}}, writer, nil, discardLogger())

	_, err := p.Poll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Zero(t, writer.calls)
}

func TestPollEmptyBatchIsNoop(t *testing.T) {
	writer := newMemoryWriter()
	p := NewPoller(stubFetcher{payload: encodeFeed(t)}, writer, nil, discardLogger())

	stats, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Decoded)
	assert.Zero(t, writer.calls)
}

func TestPollWriteErrorPropagates(t *testing.T) {
	writer := newMemoryWriter()
	writer.err = errors.New("connection reset")
	metrics := &recordingMetrics{}
	payload := encodeFeed(t, vehicleEntity("1", "A", 0, "20240101", 1000, 40.1, -73.9))
	p := NewPoller(stubFetcher{payload: payload}, writer, metrics, discardLogger())

	_, err := p.Poll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, writer.err)
	assert.Equal(t, []string{ResultWriteError}, metrics.results)
}

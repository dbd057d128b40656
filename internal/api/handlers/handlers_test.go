package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DMW2151/mta-buses/internal/db"
	"github.com/DMW2151/mta-buses/internal/models"
)

type fakeRepo struct {
	observations []models.Observation
	summaries    []models.DailyTripSummary
	points       []models.ShapePoint
	geometry     *models.RouteGeometry
	err          error
	pingErr      error

	gotTrip string
	gotDate time.Time
}

func (f *fakeRepo) Ping(context.Context) error { return f.pingErr }

func (f *fakeRepo) TripObservations(_ context.Context, tripID string, d time.Time) ([]models.Observation, error) {
	f.gotTrip, f.gotDate = tripID, d
	return f.observations, f.err
}

func (f *fakeRepo) DailyTripSummaries(_ context.Context, d time.Time) ([]models.DailyTripSummary, error) {
	f.gotDate = d
	return f.summaries, f.err
}

func (f *fakeRepo) ShapePoints(context.Context, string) ([]models.ShapePoint, error) {
	return f.points, f.err
}

func (f *fakeRepo) RouteGeometry(context.Context, string) (*models.RouteGeometry, error) {
	if f.geometry == nil {
		return nil, db.ErrNotFound
	}
	return f.geometry, f.err
}

func newRouter(repo *fakeRepo) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", NewHealthHandler(repo).GetHealth)
	r.Get("/api/trips/{tripId}/positions", NewTripHandler(repo).GetTripPositions)
	r.Get("/api/shapes/{shapeId}", NewShapeHandler(repo).GetShape)
	r.Get("/api/summaries/{date}", NewSummaryHandler(repo).GetSummaries)
	return r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func serviceDay() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

func TestHealth(t *testing.T) {
	repo := &fakeRepo{}
	rec := get(t, newRouter(repo), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"connected"`)

	repo.pingErr = errors.New("connection refused")
	rec = get(t, newRouter(repo), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetTripPositions(t *testing.T) {
	repo := &fakeRepo{observations: []models.Observation{
		{DirectionID: 0, TripID: "A", ServiceDate: serviceDay(), Timestamp: 1000, Latitude: 40.1, Longitude: -73.9},
		{DirectionID: 0, TripID: "A", ServiceDate: serviceDay(), Timestamp: 1030, Latitude: 40.2, Longitude: -73.8},
	}}

	rec := get(t, newRouter(repo), "/api/trips/A/positions?date=2024-01-01")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A", repo.gotTrip)
	assert.Equal(t, serviceDay(), repo.gotDate)

	var resp TripPositionsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "2024-01-01", resp.ServiceDate)
	assert.Equal(t, int64(1030), resp.Positions[1].Timestamp)
}

func TestGetTripPositionsBadDate(t *testing.T) {
	for _, target := range []string{"/api/trips/A/positions", "/api/trips/A/positions?date=20240101"} {
		rec := get(t, newRouter(&fakeRepo{}), target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestGetTripPositionsStoreError(t *testing.T) {
	repo := &fakeRepo{err: &db.StoreReadError{Op: "trip observations", Err: errors.New("timeout")}}
	rec := get(t, newRouter(repo), "/api/trips/A/positions?date=2024-01-01")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetShape(t *testing.T) {
	line := orb.LineString{{-73.0, 40.0}, {-73.1, 40.1}}
	b, err := wkb.Marshal(line)
	require.NoError(t, err)
	d := 14.0
	repo := &fakeRepo{
		geometry: &models.RouteGeometry{ShapeID: "S1", WKB: b},
		points: []models.ShapePoint{
			{ShapeID: "S1", Sequence: 0, Latitude: 40.0, Longitude: -73.0},
			{ShapeID: "S1", Sequence: 1, Latitude: 40.1, Longitude: -73.1, Distance: &d},
		},
	}

	rec := get(t, newRouter(repo), "/api/shapes/S1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	feature, err := geojson.UnmarshalFeature(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, line, feature.Geometry)
	assert.Equal(t, 14.0, feature.Properties.MustFloat64("lengthKm"))
	assert.Equal(t, []interface{}{nil, 14.0}, feature.Properties["distancesKm"])
}

func TestGetShapeNotFound(t *testing.T) {
	rec := get(t, newRouter(&fakeRepo{}), "/api/shapes/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSummaries(t *testing.T) {
	repo := &fakeRepo{summaries: []models.DailyTripSummary{
		{DirectionID: 0, TripID: "T", ServiceDate: serviceDay(), StartTime: 100, EndTime: 300},
	}}

	rec := get(t, newRouter(repo), "/api/summaries/2024-01-01")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SummariesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Trips, 1)
	assert.Equal(t, int64(200), resp.Trips[0].RuntimeSeconds)

	rec = get(t, newRouter(repo), "/api/summaries/2024-01-01?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "direction_id,trip_id,service_date"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "daily_performance_summary_2024-01-01.csv")
}

func TestGetSummariesBadDate(t *testing.T) {
	rec := get(t, newRouter(&fakeRepo{}), "/api/summaries/yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

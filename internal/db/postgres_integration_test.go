//go:build integration

package db

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/DMW2151/mta-buses/internal/geo"
	"github.com/DMW2151/mta-buses/internal/models"
)

func startPostGIS(t *testing.T) *Postgres {
	t.Helper()
	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:        "postgis/postgis:16-3.4",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "mta",
			"POSTGRES_PASSWORD": "mta",
			"POSTGRES_DB":       "buses",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(90 * time.Second),
	}

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgis container: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, nat.Port("5432/tcp"))
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://mta:mta@%s:%s/buses?sslmode=disable", host, port.Port())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := ConnectPostgres(ctx, dsn, logger)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	require.NoError(t, p.EnsureSchema(ctx))
	return p
}

func TestPostgresStore(t *testing.T) {
	p := startPostGIS(t)
	ctx := context.Background()

	t.Run("upsert is idempotent and first write wins", func(t *testing.T) {
		first := obs("A", 1000, "2024-01-01")
		changed := first
		changed.Latitude = 41.0

		n, err := p.UpsertObservations(ctx, []models.Observation{first, first})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = p.UpsertObservations(ctx, []models.Observation{changed})
		require.NoError(t, err)
		assert.Zero(t, n)

		got, err := p.TripObservations(ctx, "A", date("2024-01-01"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, 40.1, got[0].Latitude, 1e-9)
	})

	t.Run("daily summaries", func(t *testing.T) {
		_, err := p.UpsertObservations(ctx, []models.Observation{
			obs("T", 100, "2024-02-01"), obs("T", 250, "2024-02-01"), obs("T", 300, "2024-02-01"),
		})
		require.NoError(t, err)

		got, err := p.DailyTripSummaries(ctx, date("2024-02-01"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(100), got[0].StartTime)
		assert.Equal(t, int64(300), got[0].EndTime)
	})

	t.Run("prune", func(t *testing.T) {
		today := date("2024-03-21")
		_, err := p.UpsertObservations(ctx, []models.Observation{
			obs("OLD", 1, today.AddDate(0, 0, -20).Format(models.DateLayout)),
			obs("NEW", 2, today.Format(models.DateLayout)),
		})
		require.NoError(t, err)

		_, err = p.DeleteObservationsBefore(ctx, today.AddDate(0, 0, -14))
		require.NoError(t, err)

		got, err := p.TripObservations(ctx, "NEW", today)
		require.NoError(t, err)
		assert.Len(t, got, 1)
		got, err = p.TripObservations(ctx, "OLD", today.AddDate(0, 0, -20))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("route geometry is lng lat in 4326", func(t *testing.T) {
		shape, err := geo.Build("S1", []geo.LatLng{{Lat: 40.0, Lng: -73.0}, {Lat: 40.1, Lng: -73.1}})
		require.NoError(t, err)
		wkb, err := shape.WKB()
		require.NoError(t, err)

		require.NoError(t, p.ReplaceRouteGeometry(ctx, models.RouteGeometry{ShapeID: "S1", WKB: wkb}))
		require.NoError(t, p.ReplaceRouteGeometry(ctx, models.RouteGeometry{ShapeID: "S1", WKB: wkb}))

		var count, srid, points int
		var x, y float64
		err = p.pool.QueryRow(ctx, `
			SELECT COUNT(*) OVER (), ST_SRID(path), ST_NPoints(path), ST_X(ST_StartPoint(path)), ST_Y(ST_StartPoint(path))
			FROM bus_routes WHERE shape = 'S1'`).Scan(&count, &srid, &points, &x, &y)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, 4326, srid)
		assert.Equal(t, 2, points)
		assert.Equal(t, -73.0, x)
		assert.Equal(t, 40.0, y)

		g, err := p.RouteGeometry(ctx, "S1")
		require.NoError(t, err)
		assert.NotEmpty(t, g.WKB)
	})

	t.Run("shape points keep null first distance", func(t *testing.T) {
		d := 14.0
		_, err := p.InsertShapePoints(ctx, []models.ShapePoint{
			{ShapeID: "S2", Sequence: 0, Latitude: 40.0, Longitude: -73.0},
			{ShapeID: "S2", Sequence: 1, Latitude: 40.1, Longitude: -73.1, Distance: &d},
		})
		require.NoError(t, err)

		got, err := p.ShapePoints(ctx, "S2")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Nil(t, got[0].Distance)
		assert.Equal(t, 14.0, *got[1].Distance)
	})
}

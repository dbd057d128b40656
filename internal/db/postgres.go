package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DMW2151/mta-buses/internal/models"
)

//go:embed schema_postgres.sql
var postgresSchemaSQL string

// Postgres is the PostGIS-backed store.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// ConnectPostgres opens a pool and verifies connectivity.
func ConnectPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to postgres")
	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// EnsureSchema creates the PostGIS extension, tables and indexes if they
// don't exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	p.logger.Debug("database schema ensured")
	return nil
}

// execBatch queues one statement per row and sends them in a single
// transaction, returning the summed rows affected.
func (p *Postgres) execBatch(ctx context.Context, op string, queue func(b *pgx.Batch)) (int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, &StoreWriteError{Op: op, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	queue(batch)

	results := tx.SendBatch(ctx, batch)
	var affected int64
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, &StoreWriteError{Op: op, Err: err}
		}
		affected += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, &StoreWriteError{Op: op, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &StoreWriteError{Op: op, Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	return affected, nil
}

func (p *Postgres) UpsertObservations(ctx context.Context, observations []models.Observation) (int64, error) {
	if len(observations) == 0 {
		return 0, nil
	}
	return p.execBatch(ctx, "upsert observations", func(b *pgx.Batch) {
		for _, o := range observations {
			b.Queue(`
				INSERT INTO bus_locations (direction_id, trip_id, start_date, "timestamp", latitude, longitude)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (direction_id, trip_id, "timestamp") DO NOTHING`,
				o.DirectionID, o.TripID, o.ServiceDate, o.Timestamp, o.Latitude, o.Longitude)
		}
	})
}

func (p *Postgres) DailyTripSummaries(ctx context.Context, serviceDate time.Time) ([]models.DailyTripSummary, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT direction_id, trip_id, MIN("timestamp"), MAX("timestamp")
		FROM bus_locations
		WHERE start_date = $1
		GROUP BY direction_id, trip_id
		ORDER BY trip_id, direction_id`,
		serviceDate)
	if err != nil {
		return nil, &StoreReadError{Op: "daily trip summaries", Err: err}
	}
	defer rows.Close()

	var summaries []models.DailyTripSummary
	for rows.Next() {
		s := models.DailyTripSummary{ServiceDate: serviceDate}
		if err := rows.Scan(&s.DirectionID, &s.TripID, &s.StartTime, &s.EndTime); err != nil {
			return nil, &StoreReadError{Op: "daily trip summaries", Err: err}
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreReadError{Op: "daily trip summaries", Err: err}
	}
	return summaries, nil
}

func (p *Postgres) TripObservations(ctx context.Context, tripID string, serviceDate time.Time) ([]models.Observation, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT direction_id, trip_id, start_date, "timestamp", latitude, longitude
		FROM bus_locations
		WHERE trip_id = $1 AND start_date = $2
		ORDER BY "timestamp"`,
		tripID, serviceDate)
	if err != nil {
		return nil, &StoreReadError{Op: "trip observations", Err: err}
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.DirectionID, &o.TripID, &o.ServiceDate, &o.Timestamp, &o.Latitude, &o.Longitude); err != nil {
			return nil, &StoreReadError{Op: "trip observations", Err: err}
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreReadError{Op: "trip observations", Err: err}
	}
	return out, nil
}

func (p *Postgres) InsertShapePoints(ctx context.Context, points []models.ShapePoint) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}
	return p.execBatch(ctx, "insert shape points", func(b *pgx.Batch) {
		for _, pt := range points {
			b.Queue(`
				INSERT INTO shapes_seq (shape_id, seq, lat, lng, distance)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (shape_id, seq) DO NOTHING`,
				pt.ShapeID, pt.Sequence, pt.Latitude, pt.Longitude, pt.Distance)
		}
	})
}

// ReplaceRouteGeometry overwrites the line for one shape.
func (p *Postgres) ReplaceRouteGeometry(ctx context.Context, g models.RouteGeometry) error {
	_, err := p.execBatch(ctx, "replace route geometry", func(b *pgx.Batch) {
		b.Queue(`DELETE FROM bus_routes WHERE shape = $1`, g.ShapeID)
		b.Queue(`INSERT INTO bus_routes (shape, path) VALUES ($1, ST_SetSRID(ST_GeomFromWKB($2), 4326))`,
			g.ShapeID, g.WKB)
	})
	return err
}

// RouteGeometry returns the stored line for a shape as WKB.
func (p *Postgres) RouteGeometry(ctx context.Context, shapeID string) (*models.RouteGeometry, error) {
	g := &models.RouteGeometry{ShapeID: shapeID}
	err := p.pool.QueryRow(ctx, `SELECT ST_AsBinary(path) FROM bus_routes WHERE shape = $1`, shapeID).Scan(&g.WKB)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &StoreReadError{Op: "route geometry", Err: err}
	}
	return g, nil
}

func (p *Postgres) ShapePoints(ctx context.Context, shapeID string) ([]models.ShapePoint, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT shape_id, seq, lat, lng, distance
		FROM shapes_seq
		WHERE shape_id = $1
		ORDER BY seq`,
		shapeID)
	if err != nil {
		return nil, &StoreReadError{Op: "shape points", Err: err}
	}
	defer rows.Close()

	var out []models.ShapePoint
	for rows.Next() {
		var pt models.ShapePoint
		if err := rows.Scan(&pt.ShapeID, &pt.Sequence, &pt.Latitude, &pt.Longitude, &pt.Distance); err != nil {
			return nil, &StoreReadError{Op: "shape points", Err: err}
		}
		out = append(out, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreReadError{Op: "shape points", Err: err}
	}
	return out, nil
}

func (p *Postgres) InsertServiceInfo(ctx context.Context, trips []models.TripServiceInfo) (int64, error) {
	if len(trips) == 0 {
		return 0, nil
	}
	return p.execBatch(ctx, "insert service info", func(b *pgx.Batch) {
		for _, t := range trips {
			b.Queue(`
				INSERT INTO service_info (route_id, service_id, trip_id, headsign, direction_id, shape_id)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (trip_id) DO NOTHING`,
				t.RouteID, t.ServiceID, t.TripID, t.Headsign, t.DirectionID, t.ShapeID)
		}
	})
}

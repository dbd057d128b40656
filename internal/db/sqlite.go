package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DMW2151/mta-buses/internal/models"
)

//go:embed schema_sqlite.sql
var sqliteSchemaSQL string

// SQLite is the single-file store used for local runs and tests. Dates
// are stored as YYYY-MM-DD text and geometry as a WKB blob.
type SQLite struct {
	conn    *sql.DB
	writeMu sync.Mutex
	logger  *slog.Logger
}

// ConnectSQLite opens a SQLite database with WAL mode enabled.
func ConnectSQLite(dbPath string, logger *slog.Logger) (*SQLite, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logger.Warn("failed to set pragma", "pragma", "synchronous", "error", err)
	}

	logger.Info("connected to sqlite", "path", dbPath)
	return &SQLite{conn: conn, logger: logger}, nil
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// EnsureSchema creates tables and indexes if they don't exist.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.conn.ExecContext(ctx, sqliteSchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.logger.Debug("database schema ensured")
	return nil
}

// execEach runs one prepared statement per row inside a transaction and
// returns the summed rows affected.
func (s *SQLite) execEach(ctx context.Context, op, query string, n int, args func(i int) []any) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StoreWriteError{Op: op, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, &StoreWriteError{Op: op, Err: fmt.Errorf("failed to prepare statement: %w", err)}
	}
	defer stmt.Close()

	var affected int64
	for i := 0; i < n; i++ {
		res, err := stmt.ExecContext(ctx, args(i)...)
		if err != nil {
			return 0, &StoreWriteError{Op: op, Err: err}
		}
		rows, _ := res.RowsAffected()
		affected += rows
	}

	if err := tx.Commit(); err != nil {
		return 0, &StoreWriteError{Op: op, Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	return affected, nil
}

func (s *SQLite) UpsertObservations(ctx context.Context, observations []models.Observation) (int64, error) {
	if len(observations) == 0 {
		return 0, nil
	}
	return s.execEach(ctx, "upsert observations", `
		INSERT INTO bus_locations (direction_id, trip_id, start_date, "timestamp", latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (direction_id, trip_id, "timestamp") DO NOTHING`,
		len(observations), func(i int) []any {
			o := observations[i]
			return []any{o.DirectionID, o.TripID, o.ServiceDate.Format(models.DateLayout), o.Timestamp, o.Latitude, o.Longitude}
		})
}

func (s *SQLite) DailyTripSummaries(ctx context.Context, serviceDate time.Time) ([]models.DailyTripSummary, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT direction_id, trip_id, MIN("timestamp"), MAX("timestamp")
		FROM bus_locations
		WHERE start_date = ?
		GROUP BY direction_id, trip_id
		ORDER BY trip_id, direction_id`,
		serviceDate.Format(models.DateLayout))
	if err != nil {
		return nil, &StoreReadError{Op: "daily trip summaries", Err: err}
	}
	defer rows.Close()

	var summaries []models.DailyTripSummary
	for rows.Next() {
		sum := models.DailyTripSummary{ServiceDate: serviceDate}
		if err := rows.Scan(&sum.DirectionID, &sum.TripID, &sum.StartTime, &sum.EndTime); err != nil {
			return nil, &StoreReadError{Op: "daily trip summaries", Err: err}
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreReadError{Op: "daily trip summaries", Err: err}
	}
	return summaries, nil
}

func (s *SQLite) TripObservations(ctx context.Context, tripID string, serviceDate time.Time) ([]models.Observation, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT direction_id, trip_id, start_date, "timestamp", latitude, longitude
		FROM bus_locations
		WHERE trip_id = ? AND start_date = ?
		ORDER BY "timestamp"`,
		tripID, serviceDate.Format(models.DateLayout))
	if err != nil {
		return nil, &StoreReadError{Op: "trip observations", Err: err}
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		var o models.Observation
		var date string
		if err := rows.Scan(&o.DirectionID, &o.TripID, &date, &o.Timestamp, &o.Latitude, &o.Longitude); err != nil {
			return nil, &StoreReadError{Op: "trip observations", Err: err}
		}
		if o.ServiceDate, err = time.Parse(models.DateLayout, date); err != nil {
			return nil, &StoreReadError{Op: "trip observations", Err: fmt.Errorf("bad start_date %q: %w", date, err)}
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreReadError{Op: "trip observations", Err: err}
	}
	return out, nil
}

func (s *SQLite) InsertShapePoints(ctx context.Context, points []models.ShapePoint) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}
	return s.execEach(ctx, "insert shape points", `
		INSERT INTO shapes_seq (shape_id, seq, lat, lng, distance)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (shape_id, seq) DO NOTHING`,
		len(points), func(i int) []any {
			pt := points[i]
			var distance any
			if pt.Distance != nil {
				distance = *pt.Distance
			}
			return []any{pt.ShapeID, pt.Sequence, pt.Latitude, pt.Longitude, distance}
		})
}

// ReplaceRouteGeometry overwrites the line for one shape.
func (s *SQLite) ReplaceRouteGeometry(ctx context.Context, g models.RouteGeometry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return &StoreWriteError{Op: "replace route geometry", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bus_routes WHERE shape = ?`, g.ShapeID); err != nil {
		return &StoreWriteError{Op: "replace route geometry", Err: err}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO bus_routes (shape, path) VALUES (?, ?)`, g.ShapeID, g.WKB); err != nil {
		return &StoreWriteError{Op: "replace route geometry", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StoreWriteError{Op: "replace route geometry", Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	return nil
}

// RouteGeometry returns the stored WKB line for a shape.
func (s *SQLite) RouteGeometry(ctx context.Context, shapeID string) (*models.RouteGeometry, error) {
	g := &models.RouteGeometry{ShapeID: shapeID}
	err := s.conn.QueryRowContext(ctx, `SELECT path FROM bus_routes WHERE shape = ?`, shapeID).Scan(&g.WKB)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &StoreReadError{Op: "route geometry", Err: err}
	}
	return g, nil
}

func (s *SQLite) ShapePoints(ctx context.Context, shapeID string) ([]models.ShapePoint, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT shape_id, seq, lat, lng, distance
		FROM shapes_seq
		WHERE shape_id = ?
		ORDER BY seq`,
		shapeID)
	if err != nil {
		return nil, &StoreReadError{Op: "shape points", Err: err}
	}
	defer rows.Close()

	var out []models.ShapePoint
	for rows.Next() {
		var pt models.ShapePoint
		var distance sql.NullFloat64
		if err := rows.Scan(&pt.ShapeID, &pt.Sequence, &pt.Latitude, &pt.Longitude, &distance); err != nil {
			return nil, &StoreReadError{Op: "shape points", Err: err}
		}
		if distance.Valid {
			d := distance.Float64
			pt.Distance = &d
		}
		out = append(out, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreReadError{Op: "shape points", Err: err}
	}
	return out, nil
}

func (s *SQLite) InsertServiceInfo(ctx context.Context, trips []models.TripServiceInfo) (int64, error) {
	if len(trips) == 0 {
		return 0, nil
	}
	return s.execEach(ctx, "insert service info", `
		INSERT INTO service_info (route_id, service_id, trip_id, headsign, direction_id, shape_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (trip_id) DO NOTHING`,
		len(trips), func(i int) []any {
			t := trips[i]
			return []any{t.RouteID, t.ServiceID, t.TripID, t.Headsign, t.DirectionID, t.ShapeID}
		})
}

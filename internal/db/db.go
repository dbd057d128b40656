// Package db persists observations, shapes and trip metadata. Postgres
// with PostGIS is the production backend; SQLite serves local runs and
// tests with the same semantics.
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DMW2151/mta-buses/internal/config"
	"github.com/DMW2151/mta-buses/internal/models"
)

// Store is the full set of operations the pipeline performs against the
// database. Every write is a single transaction.
type Store interface {
	EnsureSchema(ctx context.Context) error

	// UpsertObservations inserts observations, leaving any row whose
	// (direction_id, trip_id, timestamp) already exists untouched. It
	// returns the number of rows actually inserted.
	UpsertObservations(ctx context.Context, observations []models.Observation) (int64, error)
	DailyTripSummaries(ctx context.Context, serviceDate time.Time) ([]models.DailyTripSummary, error)
	DeleteObservationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	TripObservations(ctx context.Context, tripID string, serviceDate time.Time) ([]models.Observation, error)

	InsertShapePoints(ctx context.Context, points []models.ShapePoint) (int64, error)
	ReplaceRouteGeometry(ctx context.Context, geometry models.RouteGeometry) error
	ShapePoints(ctx context.Context, shapeID string) ([]models.ShapePoint, error)
	RouteGeometry(ctx context.Context, shapeID string) (*models.RouteGeometry, error)

	InsertServiceInfo(ctx context.Context, trips []models.TripServiceInfo) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*SQLite)(nil)
)

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		p, err := ConnectPostgres(ctx, cfg.URL, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "sqlite":
		s, err := ConnectSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// StoreWriteError reports a failed write. The transaction was rolled
// back, so nothing from the call was applied.
type StoreWriteError struct {
	Op  string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write %s failed: %v", e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// StoreReadError reports a failed query.
type StoreReadError struct {
	Op  string
	Err error
}

func (e *StoreReadError) Error() string {
	return fmt.Sprintf("store read %s failed: %v", e.Op, e.Err)
}

func (e *StoreReadError) Unwrap() error { return e.Err }

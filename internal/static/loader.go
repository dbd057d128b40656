// Package static loads GTFS reference data (route shapes and trip
// metadata) into the store.
package static

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/DMW2151/mta-buses/internal/geo"
	"github.com/DMW2151/mta-buses/internal/models"
	"github.com/DMW2151/mta-buses/internal/static/gtfs"
)

// Store is the subset of the database the loader writes to.
type Store interface {
	InsertShapePoints(ctx context.Context, points []models.ShapePoint) (int64, error)
	ReplaceRouteGeometry(ctx context.Context, geometry models.RouteGeometry) error
	InsertServiceInfo(ctx context.Context, trips []models.TripServiceInfo) (int64, error)
}

// Result summarises a load.
type Result struct {
	Regions        int
	Shapes         int
	ShapesSkipped  int
	PointsInserted int64
	TripsInserted  int64
	RowsDropped    int
}

func (r *Result) add(o Result) {
	r.Regions += o.Regions
	r.Shapes += o.Shapes
	r.ShapesSkipped += o.ShapesSkipped
	r.PointsInserted += o.PointsInserted
	r.TripsInserted += o.TripsInserted
	r.RowsDropped += o.RowsDropped
}

// Loader persists shapes, their derived geometry and trip metadata.
type Loader struct {
	store  Store
	logger *slog.Logger
}

func NewLoader(store Store, logger *slog.Logger) *Loader {
	return &Loader{store: store, logger: logger}
}

// LoadDir loads every region under dataDir. A region is a sub-directory
// or a .zip file; regions are processed in lexical order.
func (l *Loader) LoadDir(ctx context.Context, dataDir string) (Result, error) {
	var total Result

	// os.ReadDir returns entries sorted by filename.
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return total, fmt.Errorf("failed to read data dir: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && !strings.HasSuffix(strings.ToLower(name), ".zip") {
			continue
		}

		res, err := l.LoadRegion(ctx, strings.TrimSuffix(name, filepath.Ext(name)), filepath.Join(dataDir, name))
		if err != nil {
			return total, err
		}
		total.add(res)
	}

	if total.Regions == 0 {
		l.logger.Warn("no regions found", "data_dir", dataDir)
	}
	return total, nil
}

// LoadRegion parses and persists one region's static files.
func (l *Loader) LoadRegion(ctx context.Context, region, path string) (Result, error) {
	logger := l.logger.With("region", region)

	src, err := gtfs.OpenSource(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open region %s: %w", region, err)
	}
	defer src.Close()

	data, err := gtfs.Parse(src, logger)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse region %s: %w", region, err)
	}

	res, err := l.Load(ctx, data, logger)
	if err != nil {
		return res, fmt.Errorf("failed to load region %s: %w", region, err)
	}
	res.Regions = 1

	logger.Info("region loaded",
		"shapes", res.Shapes,
		"shapes_skipped", res.ShapesSkipped,
		"points_inserted", res.PointsInserted,
		"trips_inserted", res.TripsInserted)
	return res, nil
}

// Load persists already parsed data. A shape that can't form a line is
// logged and skipped; store errors abort the load.
func (l *Loader) Load(ctx context.Context, data *gtfs.Data, logger *slog.Logger) (Result, error) {
	res := Result{RowsDropped: data.DroppedShapeRows}

	for _, group := range GroupShapes(data.ShapeRows) {
		points, geometry, err := buildShape(group)
		var geomErr *geo.InvalidGeometryError
		if errors.As(err, &geomErr) {
			logger.Warn("skipping shape", "shape_id", group.ShapeID, "error", err)
			res.ShapesSkipped++
			continue
		}
		if err != nil {
			return res, err
		}

		n, err := l.store.InsertShapePoints(ctx, points)
		if err != nil {
			return res, err
		}
		if err := l.store.ReplaceRouteGeometry(ctx, geometry); err != nil {
			return res, err
		}
		res.Shapes++
		res.PointsInserted += n
	}

	if len(data.Trips) > 0 {
		trips := make([]models.TripServiceInfo, len(data.Trips))
		for i, t := range data.Trips {
			trips[i] = models.TripServiceInfo{
				RouteID:     t.RouteID,
				ServiceID:   t.ServiceID,
				TripID:      t.TripID,
				Headsign:    t.TripHeadsign,
				DirectionID: t.DirectionID,
				ShapeID:     t.ShapeID,
			}
		}
		n, err := l.store.InsertServiceInfo(ctx, trips)
		if err != nil {
			return res, err
		}
		res.TripsInserted = n
	}

	return res, nil
}

func buildShape(group ShapeGroup) ([]models.ShapePoint, models.RouteGeometry, error) {
	coords := make([]geo.LatLng, len(group.Points))
	for i, p := range group.Points {
		coords[i] = geo.LatLng{Lat: p.Latitude, Lng: p.Longitude}
	}

	shape, err := geo.Build(group.ShapeID, coords)
	if err != nil {
		return nil, models.RouteGeometry{}, err
	}
	wkb, err := shape.WKB()
	if err != nil {
		return nil, models.RouteGeometry{}, err
	}

	points := make([]models.ShapePoint, len(group.Points))
	for i, p := range group.Points {
		p.Distance = shape.Distances[i]
		points[i] = p
	}
	return points, models.RouteGeometry{ShapeID: group.ShapeID, WKB: wkb}, nil
}

package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Source is a region's static files, either a directory or a zip archive.
type Source interface {
	fs.FS
	io.Closer
}

type dirSource struct{ fs.FS }

func (dirSource) Close() error { return nil }

// OpenSource opens path as a directory or, if it ends in .zip, as a zip
// archive.
func OpenSource(path string) (Source, error) {
	if strings.HasSuffix(strings.ToLower(path), ".zip") {
		r, err := zip.OpenReader(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open zip: %w", err)
		}
		return r, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is neither a directory nor a zip file", path)
	}
	return dirSource{os.DirFS(path)}, nil
}

// Parse reads shapes.txt and trips.txt from fsys. A missing file is
// logged and skipped; a file that exists but can't be read is an error.
func Parse(fsys fs.FS, logger *slog.Logger) (*Data, error) {
	data := &Data{}

	rows, dropped, err := parseShapes(fsys)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("shapes.txt not found, skipping shapes")
	case err != nil:
		return nil, fmt.Errorf("failed to parse shapes.txt: %w", err)
	default:
		data.ShapeRows = rows
		data.DroppedShapeRows = dropped
	}

	trips, err := parseTrips(fsys)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("trips.txt not found, skipping trips")
	case err != nil:
		return nil, fmt.Errorf("failed to parse trips.txt: %w", err)
	default:
		data.Trips = trips
	}

	logger.Info("GTFS parsed",
		"shape_rows", len(data.ShapeRows),
		"dropped_shape_rows", data.DroppedShapeRows,
		"trips", len(data.Trips))

	return data, nil
}

func openCSV(fsys fs.FS, name string, required ...string) (io.Closer, *csv.Reader, map[string]int, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, nil, nil, err
	}

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := makeIndex(header)
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			f.Close()
			return nil, nil, nil, fmt.Errorf("missing required column %q", col)
		}
	}
	return f, reader, idx, nil
}

func parseShapes(fsys fs.FS) ([]ShapeRow, int, error) {
	f, reader, idx, err := openCSV(fsys, "shapes.txt", "shape_id", "shape_pt_lat", "shape_pt_lon")
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var rows []ShapeRow
	dropped := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			dropped++
			continue
		}

		shapeID := getField(record, idx, "shape_id")
		lat, latErr := strconv.ParseFloat(getField(record, idx, "shape_pt_lat"), 64)
		lon, lonErr := strconv.ParseFloat(getField(record, idx, "shape_pt_lon"), 64)
		if shapeID == "" || latErr != nil || lonErr != nil {
			dropped++
			continue
		}

		row := ShapeRow{ShapeID: shapeID, ShapePtLat: lat, ShapePtLon: lon}
		if seq, err := strconv.Atoi(getField(record, idx, "shape_pt_sequence")); err == nil {
			row.ShapePtSequence = &seq
		}
		rows = append(rows, row)
	}

	return rows, dropped, nil
}

func parseTrips(fsys fs.FS) ([]Trip, error) {
	f, reader, idx, err := openCSV(fsys, "trips.txt", "trip_id")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var trips []Trip

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		tripID := getField(record, idx, "trip_id")
		if tripID == "" {
			continue
		}
		directionID, _ := strconv.Atoi(getField(record, idx, "direction_id"))

		trips = append(trips, Trip{
			RouteID:      getField(record, idx, "route_id"),
			ServiceID:    getField(record, idx, "service_id"),
			TripID:       tripID,
			TripHeadsign: getField(record, idx, "trip_headsign"),
			DirectionID:  directionID,
			ShapeID:      getField(record, idx, "shape_id"),
		})
	}

	return trips, nil
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		// Strip a UTF-8 BOM from the first column name.
		idx[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, field string) string {
	if i, ok := idx[field]; ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}

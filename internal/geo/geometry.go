// Package geo builds route geometries and computes great-circle distances.
package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// SRID is the spatial reference of every stored geometry (WGS84).
const SRID = 4326

// InvalidGeometryError is returned when a shape has too few points to form
// a line.
type InvalidGeometryError struct {
	ShapeID string
	Points  int
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("invalid geometry for shape %q: a line needs at least 2 points, got %d", e.ShapeID, e.Points)
}

// Shape is the output of Build for one shape_id.
type Shape struct {
	ShapeID string
	// Line holds the vertices in (longitude, latitude) axis order.
	Line orb.LineString
	// Distances[i] is the distance in km from vertex i-1 to vertex i.
	// Distances[0] is always nil.
	Distances []*float64
}

// Build turns an ordered coordinate list into a line geometry plus the
// per-vertex distance from the preceding vertex.
func Build(shapeID string, points []LatLng) (*Shape, error) {
	if len(points) < 2 {
		return nil, &InvalidGeometryError{ShapeID: shapeID, Points: len(points)}
	}

	line := make(orb.LineString, len(points))
	distances := make([]*float64, len(points))
	for i, p := range points {
		line[i] = orb.Point{p.Lng, p.Lat}
		if i == 0 {
			continue
		}
		d := Distance(points[i-1], p)
		distances[i] = &d
	}

	return &Shape{ShapeID: shapeID, Line: line, Distances: distances}, nil
}

// WKB encodes the line as well-known binary.
func (s *Shape) WKB() ([]byte, error) {
	b, err := wkb.Marshal(s.Line)
	if err != nil {
		return nil, fmt.Errorf("failed to encode shape %s as WKB: %w", s.ShapeID, err)
	}
	return b, nil
}

// Length returns the total length of the shape in km.
func (s *Shape) Length() float64 {
	var total float64
	for _, d := range s.Distances {
		if d != nil {
			total += *d
		}
	}
	return total
}

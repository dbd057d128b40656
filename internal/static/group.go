package static

import (
	"github.com/DMW2151/mta-buses/internal/geo"
	"github.com/DMW2151/mta-buses/internal/models"
	"github.com/DMW2151/mta-buses/internal/static/gtfs"
)

// ShapeGroup is one shape's points in route order.
type ShapeGroup struct {
	ShapeID string
	Points  []models.ShapePoint
}

// GroupShapes groups rows by shape_id. Groups appear in first-seen order
// and each keeps its rows in file order, which is the physical route
// order. A row without an explicit sequence gets its 0-based position
// within the shape.
func GroupShapes(rows []gtfs.ShapeRow) []ShapeGroup {
	var groups []ShapeGroup
	index := make(map[string]int)

	for _, r := range rows {
		i, ok := index[r.ShapeID]
		if !ok {
			i = len(groups)
			index[r.ShapeID] = i
			groups = append(groups, ShapeGroup{ShapeID: r.ShapeID})
		}

		seq := len(groups[i].Points)
		if r.ShapePtSequence != nil {
			seq = *r.ShapePtSequence
		}

		groups[i].Points = append(groups[i].Points, models.ShapePoint{
			ShapeID:   r.ShapeID,
			Sequence:  seq,
			Latitude:  geo.RoundCoordinate(r.ShapePtLat),
			Longitude: geo.RoundCoordinate(r.ShapePtLon),
		})
	}

	return groups
}

package gtfs

// Data holds the parsed contents of one region's static feed.
type Data struct {
	// ShapeRows are in file order; grouping is the loader's job.
	ShapeRows []ShapeRow
	Trips     []Trip

	// DroppedShapeRows counts rows with a missing shape_id or unparseable
	// coordinates.
	DroppedShapeRows int
}

// ShapeRow represents a point from shapes.txt
type ShapeRow struct {
	ShapeID    string
	ShapePtLat float64
	ShapePtLon float64
	// ShapePtSequence is nil when the column is absent or blank.
	ShapePtSequence *int
}

// Trip represents a trip from trips.txt
type Trip struct {
	RouteID      string
	ServiceID    string
	TripID       string
	TripHeadsign string
	DirectionID  int
	ShapeID      string
}

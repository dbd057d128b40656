// Package models holds the domain records shared by the feed, store, loader
// and batch packages.
package models

import "time"

// DateLayout is the canonical calendar date encoding used in the store and
// in archived summaries.
const DateLayout = "2006-01-02"

// Observation is one vehicle sighting decoded from the real-time feed.
// (DirectionID, TripID, Timestamp) is the natural key.
type Observation struct {
	DirectionID int
	TripID      string
	ServiceDate time.Time // calendar date, midnight UTC
	Timestamp   int64     // epoch seconds
	Latitude    float64
	Longitude   float64
}

// Key returns the natural key of the observation.
func (o Observation) Key() ObservationKey {
	return ObservationKey{DirectionID: o.DirectionID, TripID: o.TripID, Timestamp: o.Timestamp}
}

// ObservationKey identifies an observation in the store.
type ObservationKey struct {
	DirectionID int
	TripID      string
	Timestamp   int64
}

// ShapePoint is one vertex of a route shape as stored in shapes_seq.
// Distance is the great-circle distance in km from the previous vertex and
// is nil for the first vertex of a shape.
type ShapePoint struct {
	ShapeID   string
	Sequence  int
	Latitude  float64
	Longitude float64
	Distance  *float64
}

// RouteGeometry is the connected-line geometry of a shape, WKB encoded in
// (longitude, latitude) axis order.
type RouteGeometry struct {
	ShapeID string
	WKB     []byte
}

// TripServiceInfo is a static trip metadata row from trips.txt.
type TripServiceInfo struct {
	RouteID     string
	ServiceID   string
	TripID      string
	Headsign    string
	DirectionID int
	ShapeID     string
}

// DailyTripSummary is the per-trip rollup for one service date.
type DailyTripSummary struct {
	DirectionID int
	TripID      string
	ServiceDate time.Time
	StartTime   int64
	EndTime     int64
}

// Runtime is the observed run length, EndTime - StartTime.
func (s DailyTripSummary) Runtime() time.Duration {
	return time.Duration(s.EndTime-s.StartTime) * time.Second
}

// CivilDate truncates t to its calendar date in t's location and returns
// that date at midnight UTC, the form in which dates are stored.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

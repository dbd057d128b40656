// Package feed fetches and decodes the GTFS-RT vehicle positions feed and
// writes the resulting observations to the store.
package feed

import (
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/DMW2151/mta-buses/internal/geo"
	"github.com/DMW2151/mta-buses/internal/models"
)

// Decode parses a binary FeedMessage and flattens each vehicle entity into
// an Observation. Entities missing a trip assignment, a position or a
// timestamp are counted in Dropped and excluded.
func Decode(payload []byte) (*Batch, error) {
	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(payload, feed); err != nil {
		return nil, &DecodeError{Size: len(payload), Err: err}
	}

	batch := &Batch{
		Entities:     len(feed.GetEntity()),
		Observations: make([]models.Observation, 0, len(feed.GetEntity())),
	}
	if ts := feed.GetHeader().GetTimestamp(); ts != 0 {
		batch.FeedTimestamp = time.Unix(int64(ts), 0).UTC()
	}

	for _, entity := range feed.GetEntity() {
		obs, ok := project(extract(entity))
		if !ok {
			batch.Dropped++
			continue
		}
		batch.Observations = append(batch.Observations, obs)
	}

	return batch, nil
}

// extract copies the fields we care about out of the nested entity.
func extract(entity *gtfs.FeedEntity) vehicleRecord {
	rec := vehicleRecord{EntityID: entity.GetId()}

	vehicle := entity.GetVehicle()
	if vehicle == nil {
		return rec
	}

	if trip := vehicle.GetTrip(); trip != nil {
		rec.TripID = trip.TripId
		rec.DirectionID = trip.DirectionId
		rec.StartDate = trip.StartDate
	}
	if pos := vehicle.GetPosition(); pos != nil {
		lat := pos.GetLatitude()
		lng := pos.GetLongitude()
		rec.Latitude = &lat
		rec.Longitude = &lng
	}
	rec.Timestamp = vehicle.Timestamp

	return rec
}

// project validates a record and converts it to an Observation.
func project(rec vehicleRecord) (models.Observation, bool) {
	if rec.TripID == nil || *rec.TripID == "" || len(*rec.TripID) > 255 {
		return models.Observation{}, false
	}
	if rec.DirectionID == nil || rec.StartDate == nil || rec.Timestamp == nil {
		return models.Observation{}, false
	}
	if rec.Latitude == nil || rec.Longitude == nil {
		return models.Observation{}, false
	}

	serviceDate, err := time.Parse(startDateLayout, *rec.StartDate)
	if err != nil {
		return models.Observation{}, false
	}

	lat := geo.RoundCoordinate(float64(*rec.Latitude))
	lng := geo.RoundCoordinate(float64(*rec.Longitude))
	if !geo.ValidCoordinate(lat, lng) {
		return models.Observation{}, false
	}

	return models.Observation{
		DirectionID: int(*rec.DirectionID),
		TripID:      *rec.TripID,
		ServiceDate: serviceDate,
		Timestamp:   int64(*rec.Timestamp),
		Latitude:    lat,
		Longitude:   lng,
	}, true
}

package feed

import (
	"fmt"
	"time"

	"github.com/DMW2151/mta-buses/internal/models"
)

// startDateLayout is the GTFS-RT encoding of TripDescriptor.start_date.
const startDateLayout = "20060102"

// vehicleRecord is the typed projection of one FeedEntity before
// validation. Every field is optional in the wire schema.
type vehicleRecord struct {
	EntityID    string
	TripID      *string
	DirectionID *uint32
	StartDate   *string
	Latitude    *float32
	Longitude   *float32
	Timestamp   *uint64
}

// Batch is the result of decoding one feed payload.
type Batch struct {
	FeedTimestamp time.Time
	Entities      int
	Dropped       int
	Observations  []models.Observation
}

// DecodeError is returned when a payload is not a valid FeedMessage. It
// never carries partial results.
type DecodeError struct {
	Size int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode feed payload (%d bytes): %v", e.Size, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FetchError is returned when the upstream feed could not be retrieved.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch feed %s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch feed %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

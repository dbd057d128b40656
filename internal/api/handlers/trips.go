package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DMW2151/mta-buses/internal/models"
)

// TripRepository reads stored observations for a trip.
type TripRepository interface {
	TripObservations(ctx context.Context, tripID string, serviceDate time.Time) ([]models.Observation, error)
}

// TripHandler handles HTTP requests for trip positions
type TripHandler struct {
	repo TripRepository
}

func NewTripHandler(repo TripRepository) *TripHandler {
	return &TripHandler{repo: repo}
}

// Position is one observation in API form.
type Position struct {
	DirectionID int       `json:"directionId"`
	Timestamp   int64     `json:"timestamp"`
	ObservedAt  time.Time `json:"observedAt"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
}

// TripPositionsResponse is the JSON response for GET /api/trips/{tripId}/positions
type TripPositionsResponse struct {
	TripID      string     `json:"tripId"`
	ServiceDate string     `json:"serviceDate"`
	Positions   []Position `json:"positions"`
	Count       int        `json:"count"`
}

// GetTripPositions handles GET /api/trips/{tripId}/positions?date=YYYY-MM-DD
// Positions are ordered by timestamp.
func (h *TripHandler) GetTripPositions(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")
	dateParam := r.URL.Query().Get("date")

	serviceDate, ok := parseDate(dateParam)
	if !ok {
		writeError(w, http.StatusBadRequest, "date query parameter must be YYYY-MM-DD", map[string]interface{}{
			"date": dateParam,
		})
		return
	}

	observations, err := h.repo.TripObservations(r.Context(), tripID, serviceDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve trip positions", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	positions := make([]Position, len(observations))
	for i, o := range observations {
		positions[i] = Position{
			DirectionID: o.DirectionID,
			Timestamp:   o.Timestamp,
			ObservedAt:  time.Unix(o.Timestamp, 0).UTC(),
			Latitude:    o.Latitude,
			Longitude:   o.Longitude,
		}
	}

	w.Header().Set("Cache-Control", "public, max-age=30")
	writeJSON(w, http.StatusOK, TripPositionsResponse{
		TripID:      tripID,
		ServiceDate: serviceDate.Format(models.DateLayout),
		Positions:   positions,
		Count:       len(positions),
	})
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DMW2151/mta-buses/internal/batch"
	"github.com/DMW2151/mta-buses/internal/models"
)

// SummaryRepository computes daily trip summaries.
type SummaryRepository interface {
	DailyTripSummaries(ctx context.Context, serviceDate time.Time) ([]models.DailyTripSummary, error)
}

// SummaryHandler serves daily summaries computed on request.
type SummaryHandler struct {
	repo SummaryRepository
}

func NewSummaryHandler(repo SummaryRepository) *SummaryHandler {
	return &SummaryHandler{repo: repo}
}

// TripSummary is one row of a daily summary in API form.
type TripSummary struct {
	DirectionID    int    `json:"directionId"`
	TripID         string `json:"tripId"`
	StartTime      int64  `json:"startTime"`
	EndTime        int64  `json:"endTime"`
	RuntimeSeconds int64  `json:"runtimeSeconds"`
}

// SummariesResponse is the JSON response for GET /api/summaries/{date}
type SummariesResponse struct {
	ServiceDate string        `json:"serviceDate"`
	Trips       []TripSummary `json:"trips"`
	Count       int           `json:"count"`
}

// GetSummaries handles GET /api/summaries/{date}
// ?format=csv returns the same CSV the daily job archives.
func (h *SummaryHandler) GetSummaries(w http.ResponseWriter, r *http.Request) {
	dateParam := chi.URLParam(r, "date")
	serviceDate, ok := parseDate(dateParam)
	if !ok {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", map[string]interface{}{
			"date": dateParam,
		})
		return
	}

	summaries, err := h.repo.DailyTripSummaries(r.Context(), serviceDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute summaries", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		body, err := batch.EncodeSummaries(summaries)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to encode summaries", nil)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+batch.SummaryKey(serviceDate)+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write(body)
		return
	}

	trips := make([]TripSummary, len(summaries))
	for i, s := range summaries {
		trips[i] = TripSummary{
			DirectionID:    s.DirectionID,
			TripID:         s.TripID,
			StartTime:      s.StartTime,
			EndTime:        s.EndTime,
			RuntimeSeconds: int64(s.Runtime() / time.Second),
		}
	}

	writeJSON(w, http.StatusOK, SummariesResponse{
		ServiceDate: serviceDate.Format(models.DateLayout),
		Trips:       trips,
		Count:       len(trips),
	})
}

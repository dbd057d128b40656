package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"

	"github.com/DMW2151/mta-buses/internal/db"
	"github.com/DMW2151/mta-buses/internal/models"
)

// ShapeRepository reads static shape data.
type ShapeRepository interface {
	ShapePoints(ctx context.Context, shapeID string) ([]models.ShapePoint, error)
	RouteGeometry(ctx context.Context, shapeID string) (*models.RouteGeometry, error)
}

// ShapeHandler serves route shapes as GeoJSON.
type ShapeHandler struct {
	repo ShapeRepository
}

func NewShapeHandler(repo ShapeRepository) *ShapeHandler {
	return &ShapeHandler{repo: repo}
}

// GetShape handles GET /api/shapes/{shapeId}
// Returns a GeoJSON Feature whose geometry is the stored line and whose
// properties carry the per-vertex distances (km) and total length.
func (h *ShapeHandler) GetShape(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shapeID := chi.URLParam(r, "shapeId")

	g, err := h.repo.RouteGeometry(ctx, shapeID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Shape not found", map[string]interface{}{
			"shapeId": shapeID,
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve shape", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	geom, err := wkb.Unmarshal(g.WKB)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Stored shape geometry is invalid", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	points, err := h.repo.ShapePoints(ctx, shapeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve shape points", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	distances := make([]*float64, len(points))
	var length float64
	for i, p := range points {
		distances[i] = p.Distance
		if p.Distance != nil {
			length += *p.Distance
		}
	}

	feature := geojson.NewFeature(geom)
	feature.ID = shapeID
	feature.Properties["shapeId"] = shapeID
	feature.Properties["distancesKm"] = distances
	feature.Properties["lengthKm"] = length

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	b, err := feature.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode shape", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

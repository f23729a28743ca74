package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	apperrors "github.com/pharmacyonduty/backend/pkg/errors"
)

const maxRequestBytes = 1 << 10

// PharmacyPointsResolver answers a pharmacy points query
type PharmacyPointsResolver interface {
	ResolvePharmacyPoints(ctx context.Context, lat, lng float64, at time.Time) ([]entities.CandidatePoint, error)
}

// PharmacyHandler handles pharmacy point requests
type PharmacyHandler struct {
	resolver PharmacyPointsResolver
	now      func() time.Time
}

// NewPharmacyHandler creates a new pharmacy handler. now is the clock queries are answered at.
func NewPharmacyHandler(resolver PharmacyPointsResolver, now func() time.Time) *PharmacyHandler {
	if now == nil {
		now = time.Now
	}
	return &PharmacyHandler{resolver: resolver, now: now}
}

// coordinate accepts a JSON number or a numeric string
type coordinate struct {
	value float64
	set   bool
}

func (c *coordinate) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "null" || raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	c.value, c.set = v, true
	return nil
}

type pharmacyPointsRequest struct {
	Lat coordinate `json:"lat"`
	Lng coordinate `json:"lng"`
}

type pharmacyPointsResponse struct {
	Points []entities.CandidatePoint `json:"points"`
}

// GetPharmacyPoints handles POST /api/pharmacy-points
func (h *PharmacyHandler) GetPharmacyPoints(w http.ResponseWriter, r *http.Request) {
	var req pharmacyPointsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		respondWithAppError(w, r, apperrors.NewValidationError("request body must be a JSON object with numeric lat and lng"))
		return
	}
	if !req.Lat.set || !req.Lng.set {
		respondWithAppError(w, r, apperrors.NewValidationError("lat and lng are required"))
		return
	}

	points, err := h.resolver.ResolvePharmacyPoints(r.Context(), req.Lat.value, req.Lng.value, h.now())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if points == nil {
		points = []entities.CandidatePoint{}
	}

	respondWithJSON(w, http.StatusOK, pharmacyPointsResponse{Points: points})
}

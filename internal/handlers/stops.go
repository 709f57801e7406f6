package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"staff-transport/internal/catalog"
	"staff-transport/internal/models"
)

// DefaultNearbyRadiusKm is used when the nearby query has no radius
const DefaultNearbyRadiusKm = 1.0

// NearbyStopsResponse represents the nearby lookup response
type NearbyStopsResponse struct {
	Stops []catalog.NearbyStop `json:"stops"`
	Total int                  `json:"total"`
}

// HandleCreateStop handles POST /api/v1/stops
func (h *Handler) HandleCreateStop(w http.ResponseWriter, r *http.Request) {
	var form catalog.StopForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}

	form.Name = strings.TrimSpace(form.Name)
	if form.Name == "" {
		h.handleValidationError(w, "Name is required")
		return
	}
	coords := models.Coordinates{Lat: form.Lat, Lng: form.Lng}
	if !coords.IsZero() && !coords.IsValid() {
		h.handleValidationError(w, "Invalid coordinates")
		return
	}
	if form.AxisID <= 0 {
		h.handleValidationError(w, "axis_id is required")
		return
	}

	stop, err := h.Catalog.CreateStop(r.Context(), form)
	if err != nil {
		h.handleServiceError(w, err, "Axis not found")
		return
	}

	log.WithFields(logrus.Fields{"stop_id": stop.ID, "axis_id": stop.AxisID, "order": stop.Order}).Info("POST /api/v1/stops: created")
	h.writeJSON(w, http.StatusCreated, stop)
}

// HandleNearbyStops handles GET /api/v1/stops/nearby
func (h *Handler) HandleNearbyStops(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat", 0)
	if err != nil {
		h.handleValidationError(w, err.Error())
		return
	}
	lng, err := queryFloat(r, "lng", 0)
	if err != nil {
		h.handleValidationError(w, err.Error())
		return
	}
	radius, err := queryFloat(r, "radius_km", DefaultNearbyRadiusKm)
	if err != nil || radius <= 0 {
		h.handleValidationError(w, "radius_km must be a positive number")
		return
	}

	center := models.Coordinates{Lat: lat, Lng: lng}
	if !center.IsValid() {
		h.handleValidationError(w, "Valid lat and lng are required")
		return
	}

	found, err := h.Catalog.Nearby(r.Context(), center, radius)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, NearbyStopsResponse{Stops: found, Total: len(found)})
}

// HandleAxisStops handles GET /api/v1/axes/{id}/stops
func (h *Handler) HandleAxisStops(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r.URL.Path, "/api/v1/axes/", "/stops")
	if err != nil {
		h.handleValidationError(w, "Invalid axis ID")
		return
	}

	seq, err := h.Catalog.StopsInPickupSequence(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "Axis not found")
		return
	}
	h.writeJSON(w, http.StatusOK, seq)
}

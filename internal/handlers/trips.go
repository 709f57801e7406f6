package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-polyline"

	"staff-transport/internal/models"
	"staff-transport/internal/trips"
)

const tripsPrefix = "/api/v1/trips/"

// TripResponse is a trip with derived route fields for map clients
type TripResponse struct {
	models.Trip
	IsFallback  bool   `json:"is_fallback"`
	EncodedPath string `json:"encoded_path,omitempty"`
}

// TripListResponse represents the list response
type TripListResponse struct {
	Trips []TripResponse `json:"trips"`
	Total int            `json:"total"`
}

func newTripResponse(t models.Trip) TripResponse {
	resp := TripResponse{Trip: t}
	if t.NeedsRoute() {
		return resp
	}
	resp.IsFallback = t.IsFallback()

	// Points that collapse at polyline precision would encode zero-length segments
	coords := make([][]float64, 0, len(t.Path))
	for _, p := range t.Path {
		lat, lng := models.RoundCoordinate(p.Lat), models.RoundCoordinate(p.Lng)
		if n := len(coords); n > 0 && coords[n-1][0] == lat && coords[n-1][1] == lng {
			continue
		}
		coords = append(coords, []float64{lat, lng})
	}
	resp.EncodedPath = string(polyline.EncodeCoords(coords))
	return resp
}

// HandleListTrips handles GET /api/v1/trips
func (h *Handler) HandleListTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.TripFilter{Date: strings.TrimSpace(q.Get("date"))}

	if raw := strings.TrimSpace(q.Get("stop_id")); raw != "" {
		stopID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.handleValidationError(w, "Invalid stop_id")
			return
		}
		filter.StopID = &stopID
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		h.handleValidationError(w, err.Error())
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		h.handleValidationError(w, err.Error())
		return
	}

	list, err := h.Trips.ListTrips(r.Context(), filter)
	if err != nil {
		log.WithError(err).Error("Failed to list trips")
		h.handleInternalError(w, err)
		return
	}

	resp := TripListResponse{Trips: make([]TripResponse, 0, len(list)), Total: len(list)}
	for _, t := range list {
		resp.Trips = append(resp.Trips, newTripResponse(t))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleCreateTrip handles POST /api/v1/trips
func (h *Handler) HandleCreateTrip(w http.ResponseWriter, r *http.Request) {
	var form models.TripForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}

	id, err := h.Trips.CreateTrip(r.Context(), form)
	if err != nil {
		log.WithError(err).Warn("Failed to create trip")
		h.handleServiceError(w, err, "Referenced stop not found")
		return
	}

	trip, err := h.Trips.GetTrip(r.Context(), id)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	log.WithField("trip_id", id).Info("POST /api/v1/trips: created")
	h.writeJSON(w, http.StatusCreated, newTripResponse(*trip))
}

// HandleGetTrip handles GET /api/v1/trips/{id}
func (h *Handler) HandleGetTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r.URL.Path, tripsPrefix, "")
	if err != nil {
		h.handleValidationError(w, "Invalid trip ID")
		return
	}

	trip, err := h.Trips.GetTrip(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "Trip not found")
		return
	}
	h.writeJSON(w, http.StatusOK, newTripResponse(*trip))
}

// HandleRecomputeTrip handles POST /api/v1/trips/{id}/recompute
func (h *Handler) HandleRecomputeTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r.URL.Path, tripsPrefix, "/recompute")
	if err != nil {
		h.handleValidationError(w, "Invalid trip ID")
		return
	}

	trip, err := h.Trips.RecomputeTrip(r.Context(), id)
	if err != nil {
		log.WithFields(logrus.Fields{"trip_id": id}).WithError(err).Warn("Failed to recompute trip")
		h.handleServiceError(w, err, "Trip not found")
		return
	}
	h.writeJSON(w, http.StatusOK, newTripResponse(*trip))
}

// HandleMigrateTrips handles POST /api/v1/trips/migrate
func (h *Handler) HandleMigrateTrips(w http.ResponseWriter, r *http.Request) {
	includeFallback := false
	if raw := strings.TrimSpace(r.URL.Query().Get("include_fallback")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.handleValidationError(w, "Invalid include_fallback")
			return
		}
		includeFallback = parsed
	}

	report, err := h.Trips.MigrateAll(r.Context(), trips.MigrateOptions{IncludeFallback: includeFallback})
	if err != nil {
		h.handleInternalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

package handlers

import (
	"net/http"
	"strings"

	"staff-transport/internal/geocoding"
)

// minSearchLength is the shortest query forwarded to the geocoder
const minSearchLength = 4

// HandleAddressSearch handles GET /api/v1/address-search
func (h *Handler) HandleAddressSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	logger := log.WithField("query", query)
	logger.Debug("GET /api/v1/address-search")

	if len(query) < minSearchLength || h.Geocoder == nil {
		h.writeJSON(w, http.StatusOK, []geocoding.GeocodingResult{})
		return
	}

	results, err := h.Geocoder.Search(r.Context(), query, 5)
	if err != nil {
		logger.WithError(err).Warn("Failed to search addresses")
		h.writeJSON(w, http.StatusOK, []geocoding.GeocodingResult{})
		return
	}

	logger.WithField("results", len(results)).Debug("Address search finished")
	h.writeJSON(w, http.StatusOK, results)
}

package handlers

import (
	"errors"
	"nearby-guide/internal/logger"
	"nearby-guide/internal/services"
	"nearby-guide/internal/utils"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionHeader carries the client's search session id in both directions.
const SessionHeader = "X-Session-ID"

// NearbyHandler serves the matching endpoints
type NearbyHandler struct {
	service *services.NearbyService
	logr    *zap.Logger
}

func NewNearbyHandler(svc *services.NearbyService, logr *zap.Logger) *NearbyHandler {
	return &NearbyHandler{
		service: svc,
		logr:    logr,
	}
}

// ClinicNearby handles GET /clinics/{id}/nearby
func (h *NearbyHandler) ClinicNearby(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	query, err := parseNearbyQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.ForClinic(r.Context(), id, query)
	if err != nil {
		h.logr.Warn("nearby lookup failed", zap.String("clinic", id), zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    resp,
	})
}

// ClinicClosest handles GET /clinics/{id}/closest
func (h *NearbyHandler) ClinicClosest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	query, err := parseNearbyQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n := utils.ParseQueryInt(r.URL.Query(), "n", 0)

	view, err := h.service.Closest(r.Context(), id, n, query)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, view, len(view.Places))
}

// AddressNearby handles GET /nearby?address=
// Searches in one session supersede each other; a superseded search answers 409.
func (h *NearbyHandler) AddressNearby(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))

	query, err := parseNearbyQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, sessionID, err := h.service.ForAddress(r.Context(), r.Header.Get(SessionHeader), address, query)
	w.Header().Set(SessionHeader, sessionID)
	if err != nil {
		if errors.Is(err, services.ErrSuperseded) {
			h.logr.Debug("discarded superseded search", zap.String("session", sessionID))
		} else {
			h.logr.Info("address search failed", logger.Address("address", address), zap.Error(err))
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    resp,
	})
}

// LastSearch handles GET /nearby/last
func (h *NearbyHandler) LastSearch(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "X-Session-ID header is required")
		return
	}
	resp, query, ok := h.service.Last(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "No search yet in this session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"query":   query,
		"data":    resp,
	})
}

// Geocode handles GET /geocode?q=
func (h *NearbyHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	res, err := h.service.Geocode(r.Context(), q)
	if err != nil {
		writeGeocodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    res,
	})
}

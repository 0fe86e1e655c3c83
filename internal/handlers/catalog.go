package handlers

import (
	"nearby-guide/internal/category"
	"nearby-guide/internal/middleware"
	"nearby-guide/internal/services"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CatalogHandler serves the dataset and its admin operations
type CatalogHandler struct {
	service *services.CatalogService
	logr    *zap.Logger
}

func NewCatalogHandler(svc *services.CatalogService, logr *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: svc,
		logr:    logr,
	}
}

// ListClinics handles GET /clinics
func (h *CatalogHandler) ListClinics(w http.ResponseWriter, r *http.Request) {
	clinics := h.service.Clinics()
	writeData(w, clinics, len(clinics))
}

// GetClinic handles GET /clinics/{id}
func (h *CatalogHandler) GetClinic(w http.ResponseWriter, r *http.Request) {
	clinic, err := h.service.Clinic(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    clinic,
	})
}

// GetPlace handles GET /places/{id}
func (h *CatalogHandler) GetPlace(w http.ResponseWriter, r *http.Request) {
	place, err := h.service.Place(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    place,
	})
}

// ListPlaces handles GET /places?type=&category=&clinic=
func (h *CatalogHandler) ListPlaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.PlacesFilter{
		Type:     strings.TrimSpace(q.Get("type")),
		ClinicID: strings.TrimSpace(q.Get("clinic")),
	}
	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		c, ok := category.Parse(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown category "+raw)
			return
		}
		filter.Category = c
	}

	places, err := h.service.Places(filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, places, len(places))
}

// Status handles GET /status
func (h *CatalogHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    h.service.Status(r.Context()),
	})
}

// Reload handles POST /admin/reload
func (h *CatalogHandler) Reload(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Reload(r.Context())
	if err != nil {
		h.logr.Error("reload failed",
			zap.String("admin", middleware.Subject(r.Context())),
			zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"message": report.Banner,
			"data":    report,
		})
		return
	}

	h.logr.Info("dataset reloaded",
		zap.String("admin", middleware.Subject(r.Context())),
		zap.Int("places", report.Places),
		zap.Int("malformed", report.Stats.Malformed))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    report,
	})
}

// Diagnostics handles GET /admin/diagnostics
func (h *CatalogHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    h.service.Diagnostics(),
	})
}

package handlers

import (
	"nearby-guide/internal/routing"
	"nearby-guide/internal/services"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type RouteHandler struct {
	service *services.RouteService
	logr    *zap.Logger
}

func NewRouteHandler(svc *services.RouteService, logr *zap.Logger) *RouteHandler {
	return &RouteHandler{
		service: svc,
		logr:    logr,
	}
}

// GetRoute handles GET /route?clinic=&place=&profile=
func (h *RouteHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clinicID := strings.TrimSpace(q.Get("clinic"))
	placeID := strings.TrimSpace(q.Get("place"))
	if clinicID == "" || placeID == "" {
		writeError(w, http.StatusBadRequest, "clinic and place parameters are required")
		return
	}
	profile, ok := routing.ParseProfile(q.Get("profile"))
	if !ok {
		writeError(w, http.StatusBadRequest, "profile must be walking or driving")
		return
	}

	res, err := h.service.Route(r.Context(), clinicID, placeID, profile)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    res,
	})
}

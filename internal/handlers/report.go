package handlers

import (
	"encoding/json"
	"nearby-guide/internal/middleware"
	"nearby-guide/internal/services"
	"nearby-guide/internal/utils"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ReportHandler takes user reports about wrong or closed places
type ReportHandler struct {
	service *services.ReportService
	logr    *zap.Logger
}

func NewReportHandler(svc *services.ReportService, logr *zap.Logger) *ReportHandler {
	return &ReportHandler{
		service: svc,
		logr:    logr,
	}
}

// CreateReport handles POST /places/{id}/reports
func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req services.CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logr.Warn("failed to decode report body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	report, err := h.service.Create(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Thanks, we'll take a look",
		"data":    report,
	})
}

// ListReports handles GET /admin/reports?status=&limit=&offset=
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := utils.ParseQueryInt(q, "limit", 50)
	offset := utils.ParseQueryInt(q, "offset", 0)

	reports, err := h.service.List(r.Context(), q.Get("status"), limit, offset)
	if err != nil {
		h.logr.Error("failed to list reports", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    reports,
		"count":   len(reports),
		"limit":   limit,
		"offset":  offset,
	})
}

// UpdateReportStatus handles PATCH /admin/reports/{id}/status
func (h *ReportHandler) UpdateReportStatus(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid report ID")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.UpdateStatus(r.Context(), id, req.Status); err != nil {
		writeServiceError(w, err)
		return
	}

	h.logr.Info("report status updated",
		zap.Int64("id", id),
		zap.String("status", req.Status),
		zap.String("admin", middleware.Subject(r.Context())))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Status updated",
	})
}

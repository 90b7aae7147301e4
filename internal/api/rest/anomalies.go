package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/qawatch/qawatch-backend/internal/models"
	"github.com/qawatch/qawatch-backend/internal/repository"
	"github.com/qawatch/qawatch-backend/internal/service"
)

// parseTimeParam accepts RFC3339 timestamps or bare dates (2006-01-02).
func parseTimeParam(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidQuery):
		respondErrorWithRequestID(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		respondErrorWithRequestID(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		respondErrorWithRequestID(w, r, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
	}
}

// ListAnomalies handles GET /anomalies?start=...&end=...&type=...&severity=...&page=...&page_size=...
func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	startParam, endParam := q.Get("start"), q.Get("end")
	if startParam == "" || endParam == "" {
		respondErrorWithRequestID(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "start and end query parameters are required")
		return
	}
	start, err := parseTimeParam(startParam)
	if err != nil {
		respondErrorWithRequestID(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid start timestamp")
		return
	}
	end, err := parseTimeParam(endParam)
	if err != nil {
		respondErrorWithRequestID(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid end timestamp")
		return
	}

	filter := models.AnomalyFilter{
		Start:    start,
		End:      end,
		Type:     models.AnomalyType(q.Get("type")),
		Severity: models.AnomalySeverity(q.Get("severity")),
	}
	if v := q.Get("page"); v != "" {
		filter.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("page_size"); v != "" {
		filter.PageSize, _ = strconv.Atoi(v)
	}

	page, err := h.anomalyService.ListAnomalies(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GetAnomaly handles GET /anomalies/{id}
func (h *Handler) GetAnomaly(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	anomaly, err := h.anomalyService.GetAnomaly(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, anomaly)
}

// GetTrends handles GET /anomalies/trends?start=...&end=...
func (h *Handler) GetTrends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseTimeParam(q.Get("start"))
	if err != nil {
		respondErrorWithRequestID(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid start timestamp")
		return
	}
	end, err := parseTimeParam(q.Get("end"))
	if err != nil {
		respondErrorWithRequestID(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid end timestamp")
		return
	}

	trends, err := h.anomalyService.GetTrends(r.Context(), start, end)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, trends)
}

// GetBaseline handles GET /baselines/{templateId}
func (h *Handler) GetBaseline(w http.ResponseWriter, r *http.Request) {
	templateID := mux.Vars(r)["templateId"]

	snap, err := h.anomalyService.GetBaseline(templateID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// ListNotifications handles GET /notifications?limit=...
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	list, err := h.anomalyService.ListNotifications(r.Context(), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

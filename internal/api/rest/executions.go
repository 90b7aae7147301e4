package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/qawatch/qawatch-backend/internal/models"
	"github.com/qawatch/qawatch-backend/internal/pipeline"
)

// executionBody is the JSON body for POST /executions and POST /anomalies/check.
// A check request may carry only execution_id to re-run detection for an
// already-recorded execution.
type executionBody struct {
	ExecutionID     string    `json:"execution_id"`
	TemplateID      string    `json:"template_id"`
	DurationSeconds float64   `json:"duration_seconds"`
	Succeeded       bool      `json:"succeeded"`
	CompletedAt     time.Time `json:"completed_at"`
}

func (b *executionBody) toModel() *models.Execution {
	return &models.Execution{
		ID:              b.ExecutionID,
		TemplateID:      b.TemplateID,
		DurationSeconds: b.DurationSeconds,
		Succeeded:       b.Succeeded,
		CompletedAt:     b.CompletedAt,
	}
}

// ReportExecution handles POST /executions. The execution is recorded and
// queued for detection; the response never waits for the pipeline.
func (h *Handler) ReportExecution(w http.ResponseWriter, r *http.Request) {
	var body executionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondErrorWithRequestID(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	exec := body.toModel()
	queued, err := h.executionService.ReportExecution(r.Context(), exec)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"execution_id": exec.ID,
		"queued":       queued,
	})
}

// CheckExecution handles POST /anomalies/check - synchronous detection for
// callers that want the verdict in the response.
func (h *Handler) CheckExecution(w http.ResponseWriter, r *http.Request) {
	var body executionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondErrorWithRequestID(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	var res *pipeline.Result
	var err error
	if body.ExecutionID != "" && body.TemplateID == "" {
		res, err = h.executionService.CheckExecutionByID(r.Context(), body.ExecutionID)
	} else {
		res, err = h.executionService.CheckExecution(r.Context(), body.toModel())
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	anomalies := res.Anomalies
	if anomalies == nil {
		anomalies = []*models.Anomaly{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"state":     res.State,
		"anomalies": anomalies,
	})
}

// GetExecution handles GET /executions/{id}
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	exec, err := h.executionService.GetExecution(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, exec)
}

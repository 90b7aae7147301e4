package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/qawatch/qawatch-backend/internal/service"
)

// Handler manages HTTP request handlers
type Handler struct {
	anomalyService   service.AnomalyService
	executionService service.ExecutionService
}

// NewHandler creates a new HTTP handler
func NewHandler(as service.AnomalyService, es service.ExecutionService) *Handler {
	return &Handler{
		anomalyService:   as,
		executionService: es,
	}
}

// SetupRoutes configures API routes
func SetupRoutes(router *mux.Router, h *Handler) {
	// Execution ingest
	router.HandleFunc("/executions", h.ReportExecution).Methods("POST")
	router.HandleFunc("/executions/{id}", h.GetExecution).Methods("GET")

	// Anomaly routes. /anomalies/trends before /anomalies/{id} so mux does
	// not treat "trends" as an ID.
	router.HandleFunc("/anomalies/check", h.CheckExecution).Methods("POST")
	router.HandleFunc("/anomalies/trends", h.GetTrends).Methods("GET")
	router.HandleFunc("/anomalies", h.ListAnomalies).Methods("GET")
	router.HandleFunc("/anomalies/{id}", h.GetAnomaly).Methods("GET")

	// Baseline inspection
	router.HandleFunc("/baselines/{templateId}", h.GetBaseline).Methods("GET")

	// In-app notifications
	router.HandleFunc("/notifications", h.ListNotifications).Methods("GET")
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

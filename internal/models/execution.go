package models

import "time"

// Execution is a completed workflow run as reported by the execution
// subsystem. It is read-only input to detection; this service records it for
// history replay but never mutates it.
type Execution struct {
	ID              string    `json:"id" db:"id"`
	TemplateID      string    `json:"template_id" db:"template_id"`
	DurationSeconds float64   `json:"duration_seconds" db:"duration_seconds"`
	Succeeded       bool      `json:"succeeded" db:"succeeded"`
	CompletedAt     time.Time `json:"completed_at" db:"completed_at"`
}

// FailureRate is the failure contribution of this single execution
// (0 or 100), the unit fed into the failure-rate baseline.
func (e *Execution) FailureRate() float64 {
	if e.Succeeded {
		return 0
	}
	return 100
}

// SuccessRate is the success contribution of this single execution (0 or 100).
func (e *Execution) SuccessRate() float64 {
	if e.Succeeded {
		return 100
	}
	return 0
}

// Notification is one in-app alert row created by the dispatcher's required
// channel. Read by the dashboard notification tray.
type Notification struct {
	ID        string          `json:"id" db:"id"`
	AnomalyID string          `json:"anomaly_id" db:"anomaly_id"`
	Severity  AnomalySeverity `json:"severity" db:"severity"`
	Title     string          `json:"title" db:"title"`
	Body      string          `json:"body" db:"body"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Package repository provides persistence for anomalies, execution history,
// and in-app notifications over sqlx (SQLite by default, PostgreSQL
// optionally). The anomalies table is append-only: no update or delete path
// exists, preserving an audit trail of every detection ever made.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/qawatch/qawatch-backend/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// AnomalyStore is the append-only anomaly persistence surface.
type AnomalyStore interface {
	SaveAnomaly(ctx context.Context, anomaly *models.Anomaly) error
	GetAnomaly(ctx context.Context, id string) (*models.Anomaly, error)
	ListAnomalies(ctx context.Context, filter models.AnomalyFilter) (*models.AnomalyPage, error)
	CountByDate(ctx context.Context, start, end time.Time) ([]models.AnomalyCountByDate, error)
	SeverityDistribution(ctx context.Context, start, end time.Time) ([]models.SeverityCount, error)
}

// ExecutionStore records completed executions and serves the history queries
// used for baseline replay and batch-context detection.
type ExecutionStore interface {
	RecordExecution(ctx context.Context, exec *models.Execution) error
	GetExecution(ctx context.Context, id string) (*models.Execution, error)
	GetRecentExecutions(ctx context.Context, templateID string, limit int) ([]*models.Execution, error)
	// ListActiveTemplates returns template IDs with at least one execution
	// completed since the cutoff; the batch scheduler iterates these.
	ListActiveTemplates(ctx context.Context, since time.Time) ([]string, error)
}

// NotificationStore persists in-app notifications created by the dispatcher.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, limit int) ([]*models.Notification, error)
}

// Package baseline maintains per-template statistical baselines for workflow
// executions. Baselines are a derived cache: they are rebuilt on demand by
// replaying recent execution history and are never persisted, which keeps the
// detector restart-safe and free of drift from stale stored aggregates.
package baseline

import (
	"context"

	"github.com/qawatch/qawatch-backend/internal/models"
	"github.com/qawatch/qawatch-backend/internal/stats"
)

// DefaultMinSamples is the minimum number of observed executions before
// statistical rules apply. Below this, detection is skipped for the template
// to avoid spurious first-run anomalies.
const DefaultMinSamples = 5

// Metrics aggregates the three moving statistics tracked per template.
type Metrics struct {
	FailureRate   *stats.MovingStatistic
	ExecutionTime *stats.MovingStatistic
	SuccessRate   *stats.MovingStatistic
}

// NewMetrics creates an empty baseline with the given window size.
func NewMetrics(windowSize int) *Metrics {
	return &Metrics{
		FailureRate:   stats.NewMovingStatistic(windowSize),
		ExecutionTime: stats.NewMovingStatistic(windowSize),
		SuccessRate:   stats.NewMovingStatistic(windowSize),
	}
}

// Update feeds one completed execution into all three statistics.
func (m *Metrics) Update(exec *models.Execution) {
	m.FailureRate.Observe(exec.FailureRate())
	m.ExecutionTime.Observe(exec.DurationSeconds)
	m.SuccessRate.Observe(exec.SuccessRate())
}

// SampleCount returns how many executions the baseline has absorbed
// (bounded by the window size).
func (m *Metrics) SampleCount() int {
	return m.ExecutionTime.Count()
}

// Snapshot is a read-only view of a baseline served by the API.
type Snapshot struct {
	TemplateID        string  `json:"template_id"`
	SampleCount       int     `json:"sample_count"`
	WindowSize        int     `json:"window_size"`
	ExecutionTimeMean float64 `json:"execution_time_mean"`
	ExecutionTimeStd  float64 `json:"execution_time_std_dev"`
	FailureRateMean   float64 `json:"failure_rate_mean"`
	SuccessRateMean   float64 `json:"success_rate_mean"`
}

// HistorySource fetches recent execution history for cold-start replay.
// Implemented by the execution repository; the interface keeps the tracker
// testable without a database.
type HistorySource interface {
	GetRecentExecutions(ctx context.Context, templateID string, limit int) ([]*models.Execution, error)
}

// Source is the capability through which detection obtains baselines. The
// default implementation is the in-memory Tracker; a distributed cache can be
// swapped in without touching detection logic.
type Source interface {
	// Load returns the baseline for a template, replaying history on first
	// use. History-fetch failures degrade to a cold baseline, never an error.
	Load(ctx context.Context, templateID string) *Metrics
	// Update feeds the latest execution into the baseline after detection.
	Update(templateID string, exec *models.Execution)
	// LockTemplate serialises load+update sequences for one template.
	// The returned function releases the lock.
	LockTemplate(templateID string) func()
}

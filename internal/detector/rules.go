package detector

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/qawatch/qawatch-backend/internal/baseline"
	"github.com/qawatch/qawatch-backend/internal/models"
)

// Thresholds shared across rules: 2σ flags an anomaly, 3σ escalates it.
const (
	zScoreFlagThreshold     = 2.0
	zScoreCriticalThreshold = 3.0

	// consecutiveFailureFloor forces at least Warning severity regardless of
	// z-score; consecutiveFailureCritical escalates.
	consecutiveFailureFloor    = 3
	consecutiveFailureCritical = 5
)

// DefaultRules returns the standard per-execution registry in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		PerformanceDegradationRule{},
		UnusualExecutionTimeRule{},
	}
}

// DefaultBatchRules returns the standard batch-context registry.
func DefaultBatchRules() []BatchRule {
	return []BatchRule{
		SpikeInFailuresRule{},
		ConsecutiveFailuresRule{},
	}
}

// confidence maps |z| onto [0,1], monotonically non-decreasing and capped.
func confidence(z float64) float64 {
	return math.Min(math.Abs(z)/zScoreCriticalThreshold, 1.0)
}

func newAnomaly(t models.AnomalyType, sev models.AnomalySeverity, desc string, m models.AnomalyMetrics, entities, steps []string) *models.Anomaly {
	now := time.Now().UTC()
	return &models.Anomaly{
		ID:                 uuid.New().String(),
		DetectedAt:         now,
		Type:               t,
		Severity:           sev,
		Description:        desc,
		Metrics:            m,
		AffectedEntities:   entities,
		InvestigationSteps: steps,
		CreatedAt:          now,
	}
}

// PerformanceDegradationRule fires when an execution runs strictly longer
// than baseline mean + 2σ. One-sided: fast runs never fire here.
type PerformanceDegradationRule struct{}

func (PerformanceDegradationRule) Name() string { return "performance_degradation" }

func (PerformanceDegradationRule) Check(exec *models.Execution, b *baseline.Metrics) *models.Anomaly {
	mean := b.ExecutionTime.Mean()
	stdDev := b.ExecutionTime.StdDev()
	duration := exec.DurationSeconds

	if mean <= 0 || duration <= mean+zScoreFlagThreshold*stdDev {
		return nil
	}
	z, ok := b.ExecutionTime.ZScore(duration)
	if !ok {
		return nil
	}

	severity := models.SeverityWarning
	if z > zScoreCriticalThreshold {
		severity = models.SeverityCritical
	}

	return newAnomaly(
		models.AnomalyPerformanceDegradation,
		severity,
		fmt.Sprintf("Workflow execution time (%.1fs) is significantly above baseline (%.1fs ± %.1fs)",
			duration, mean, stdDev),
		models.AnomalyMetrics{
			CurrentValue:  duration,
			BaselineValue: mean,
			Deviation:     duration - mean,
			ZScore:        z,
			Confidence:    confidence(z),
		},
		[]string{exec.ID, exec.TemplateID},
		[]string{
			"Review workflow step completion times",
			"Check for external API delays",
			"Investigate system resource usage",
		},
	)
}

// UnusualExecutionTimeRule fires on |z| > 2 in either direction. Abnormally
// fast runs can indicate skipped or short-circuited execution, so this rule
// is two-sided and may co-fire with PerformanceDegradationRule.
type UnusualExecutionTimeRule struct{}

func (UnusualExecutionTimeRule) Name() string { return "unusual_execution_time" }

func (UnusualExecutionTimeRule) Check(exec *models.Execution, b *baseline.Metrics) *models.Anomaly {
	duration := exec.DurationSeconds
	z, ok := b.ExecutionTime.ZScore(duration)
	if !ok || math.Abs(z) <= zScoreFlagThreshold {
		return nil
	}

	severity := models.SeverityWarning
	if math.Abs(z) > zScoreCriticalThreshold {
		severity = models.SeverityCritical
	}

	return newAnomaly(
		models.AnomalyUnusualExecutionTime,
		severity,
		fmt.Sprintf("Unusual execution time detected: %.1fs (z-score: %.2f)", duration, z),
		models.AnomalyMetrics{
			CurrentValue:  duration,
			BaselineValue: b.ExecutionTime.Mean(),
			Deviation:     duration - b.ExecutionTime.Mean(),
			ZScore:        z,
			Confidence:    confidence(z),
		},
		[]string{exec.ID, exec.TemplateID},
		[]string{
			"Verify execution was completed correctly",
			"Check for data anomalies",
			"Review workflow notes for unusual circumstances",
		},
	)
}

// SpikeInFailuresRule fires when the failure rate over the recent outcome
// window sits more than 2σ above the failure-rate baseline.
type SpikeInFailuresRule struct{}

func (SpikeInFailuresRule) Name() string { return "spike_in_failures" }

func (SpikeInFailuresRule) Check(templateID string, window []*models.Execution, b *baseline.Metrics) *models.Anomaly {
	if b == nil || len(window) == 0 {
		return nil
	}

	failures := 0
	for _, exec := range window {
		if !exec.Succeeded {
			failures++
		}
	}
	rate := float64(failures) / float64(len(window)) * 100

	z, ok := b.FailureRate.ZScore(rate)
	if !ok || z <= zScoreFlagThreshold {
		return nil
	}

	severity := models.SeverityWarning
	if z > zScoreCriticalThreshold {
		severity = models.SeverityCritical
	}

	entities := make([]string, 0, len(window)+1)
	entities = append(entities, templateID)
	for _, exec := range window {
		if !exec.Succeeded {
			entities = append(entities, exec.ID)
		}
	}

	return newAnomaly(
		models.AnomalySpikeInFailures,
		severity,
		fmt.Sprintf("Failure rate spike: %.1f%% of the last %d executions failed (baseline %.1f%%)",
			rate, len(window), b.FailureRate.Mean()),
		models.AnomalyMetrics{
			CurrentValue:  rate,
			BaselineValue: b.FailureRate.Mean(),
			Deviation:     rate - b.FailureRate.Mean(),
			ZScore:        z,
			Confidence:    confidence(z),
		},
		entities,
		[]string{
			"Compare failing executions for a common error",
			"Check recent changes to the workflow template",
			"Review upstream dependency status",
		},
	)
}

// ConsecutiveFailuresRule fires when the trailing run of failures reaches
// the floor. Severity is forced to at least Warning irrespective of z-score.
type ConsecutiveFailuresRule struct{}

func (ConsecutiveFailuresRule) Name() string { return "consecutive_failures" }

func (ConsecutiveFailuresRule) Check(templateID string, window []*models.Execution, b *baseline.Metrics) *models.Anomaly {
	// Window is most recent first; count the unbroken run of failures.
	run := 0
	for _, exec := range window {
		if exec.Succeeded {
			break
		}
		run++
	}
	if run < consecutiveFailureFloor {
		return nil
	}

	severity := models.SeverityWarning
	if run >= consecutiveFailureCritical {
		severity = models.SeverityCritical
	}

	entities := make([]string, 0, run+1)
	entities = append(entities, templateID)
	for _, exec := range window[:run] {
		entities = append(entities, exec.ID)
	}

	baselineRate := 0.0
	if b != nil {
		baselineRate = b.FailureRate.Mean()
	}

	return newAnomaly(
		models.AnomalyConsecutiveFailures,
		severity,
		fmt.Sprintf("%d consecutive failures for workflow template %s", run, templateID),
		models.AnomalyMetrics{
			CurrentValue:  float64(run),
			BaselineValue: baselineRate,
			Deviation:     float64(run),
			ZScore:        0,
			Confidence:    math.Min(float64(run)/float64(consecutiveFailureCritical), 1.0),
		},
		entities,
		[]string{
			"Inspect the most recent failure output",
			"Check whether the failures share a root cause",
			"Consider pausing the workflow until resolved",
		},
	)
}

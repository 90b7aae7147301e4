// Package detector evaluates workflow executions against statistical
// baselines. Detection is a pure function of its inputs: an ordered registry
// of independent, stateless rules each examines one execution (or, for batch
// rules, a recent outcome window) and optionally emits an anomaly. Multiple
// rules may fire for the same execution; every firing is kept because each
// anomaly type has distinct investigative value.
package detector

import (
	"github.com/qawatch/qawatch-backend/internal/baseline"
	"github.com/qawatch/qawatch-backend/internal/models"
)

// Rule is a stateless per-execution predicate. Check returns nil when the
// rule does not fire.
type Rule interface {
	Name() string
	Check(exec *models.Execution, b *baseline.Metrics) *models.Anomaly
}

// BatchRule evaluates a recent window of outcomes for one template. These
// rules need aggregation across executions (failure spikes, consecutive
// failures) and are invoked by the scheduled batch job, not per execution.
// The window is ordered most recent first.
type BatchRule interface {
	Name() string
	Check(templateID string, window []*models.Execution, b *baseline.Metrics) *models.Anomaly
}

// Detector runs the per-execution rule registry.
type Detector struct {
	rules      []Rule
	minSamples int
}

// New creates a detector. minSamples is the cold-start floor: templates with
// fewer observed executions skip all statistical rules. Values < 1 fall back
// to baseline.DefaultMinSamples.
func New(minSamples int, rules ...Rule) *Detector {
	if minSamples < 1 {
		minSamples = baseline.DefaultMinSamples
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Detector{rules: rules, minSamples: minSamples}
}

// Check evaluates one execution against its baseline and returns every
// anomaly the registry produced, in rule order.
func (d *Detector) Check(exec *models.Execution, b *baseline.Metrics) []*models.Anomaly {
	if b == nil || b.SampleCount() < d.minSamples {
		return nil
	}

	var anomalies []*models.Anomaly
	for _, rule := range d.rules {
		if a := rule.Check(exec, b); a != nil {
			anomalies = append(anomalies, a)
		}
	}
	return anomalies
}

// MinSamples returns the configured cold-start floor.
func (d *Detector) MinSamples() int { return d.minSamples }

// BatchDetector runs the batch-context rule registry over outcome windows.
type BatchDetector struct {
	rules      []BatchRule
	minSamples int
}

// NewBatch creates a batch detector with the given rules, defaulting to
// DefaultBatchRules.
func NewBatch(minSamples int, rules ...BatchRule) *BatchDetector {
	if minSamples < 1 {
		minSamples = baseline.DefaultMinSamples
	}
	if len(rules) == 0 {
		rules = DefaultBatchRules()
	}
	return &BatchDetector{rules: rules, minSamples: minSamples}
}

// Check evaluates a template's recent outcome window.
func (d *BatchDetector) Check(templateID string, window []*models.Execution, b *baseline.Metrics) []*models.Anomaly {
	if len(window) < d.minSamples {
		return nil
	}

	var anomalies []*models.Anomaly
	for _, rule := range d.rules {
		if a := rule.Check(templateID, window, b); a != nil {
			anomalies = append(anomalies, a)
		}
	}
	return anomalies
}

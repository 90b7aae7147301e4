package detector

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qawatch/qawatch-backend/internal/baseline"
	"github.com/qawatch/qawatch-backend/internal/models"
)

// seededBaseline returns a baseline whose execution-time statistic has the
// requested mean and standard deviation, built from two real samples.
func seededBaseline(t *testing.T, mean, stdDev float64, samples int) *baseline.Metrics {
	t.Helper()
	b := baseline.NewMetrics(stats30(samples))
	// Alternate mean±stdDev: the window then has exactly that mean and stddev.
	for i := 0; i < samples; i++ {
		d := mean - stdDev
		if i%2 == 1 {
			d = mean + stdDev
		}
		b.Update(&models.Execution{
			ID:              fmt.Sprintf("seed-%d", i),
			TemplateID:      "tpl-1",
			DurationSeconds: d,
			Succeeded:       true,
			CompletedAt:     time.Now(),
		})
	}
	return b
}

func stats30(samples int) int {
	if samples > 30 {
		return samples
	}
	return 30
}

func execution(duration float64) *models.Execution {
	return &models.Execution{
		ID:              "exec-1",
		TemplateID:      "tpl-1",
		DurationSeconds: duration,
		Succeeded:       true,
		CompletedAt:     time.Now(),
	}
}

func TestCheckSkipsBelowMinimumSamples(t *testing.T) {
	d := New(5)
	b := baseline.NewMetrics(30)
	b.Update(execution(100))
	b.Update(execution(200))

	assert.Empty(t, d.Check(execution(10000), b), "fewer than min samples must yield no anomalies")
	assert.Empty(t, d.Check(execution(10000), nil), "nil baseline must yield no anomalies")
}

func TestPerformanceDegradationAndUnusualTimeCoFire(t *testing.T) {
	// Baseline mean 100, stddev 10, 30 samples; duration 135 → z = 3.5.
	b := seededBaseline(t, 100, 10, 30)
	d := New(5)

	anomalies := d.Check(execution(135), b)
	require.Len(t, anomalies, 2)

	perf := anomalies[0]
	assert.Equal(t, models.AnomalyPerformanceDegradation, perf.Type)
	assert.Equal(t, models.SeverityCritical, perf.Severity)
	assert.InDelta(t, 3.5, perf.Metrics.ZScore, 0.01)
	assert.Equal(t, 1.0, perf.Metrics.Confidence)
	assert.Contains(t, perf.AffectedEntities, "exec-1")
	assert.Contains(t, perf.AffectedEntities, "tpl-1")
	assert.NotEmpty(t, perf.InvestigationSteps)

	unusual := anomalies[1]
	assert.Equal(t, models.AnomalyUnusualExecutionTime, unusual.Type)
	assert.Equal(t, models.SeverityCritical, unusual.Severity)
}

func TestPerformanceDegradationBoundaryIsExclusive(t *testing.T) {
	b := seededBaseline(t, 100, 10, 30)
	d := New(5)

	// Exactly mean + 2σ must not fire.
	for _, a := range d.Check(execution(120), b) {
		assert.NotEqual(t, models.AnomalyPerformanceDegradation, a.Type,
			"duration exactly at mean+2σ must not trigger degradation")
	}

	// Just above the boundary must fire with Warning (z ≤ 3).
	anomalies := d.Check(execution(120.5), b)
	require.NotEmpty(t, anomalies)
	assert.Equal(t, models.AnomalyPerformanceDegradation, anomalies[0].Type)
	assert.Equal(t, models.SeverityWarning, anomalies[0].Severity)
}

func TestUnusualExecutionTimeFiresOnFastRuns(t *testing.T) {
	b := seededBaseline(t, 100, 10, 30)
	d := New(5)

	anomalies := d.Check(execution(65), b) // z = -3.5
	require.Len(t, anomalies, 1, "only the two-sided rule fires on fast runs")
	assert.Equal(t, models.AnomalyUnusualExecutionTime, anomalies[0].Type)
	assert.Less(t, anomalies[0].Metrics.ZScore, 0.0)
	assert.Equal(t, models.SeverityCritical, anomalies[0].Severity)
}

func TestCheckIsIdempotent(t *testing.T) {
	b := seededBaseline(t, 100, 10, 30)
	d := New(5)
	exec := execution(135)

	first := d.Check(exec, b)
	second := d.Check(exec, b)
	require.Equal(t, len(first), len(second))

	for i := range first {
		// Identical modulo generated ID and timestamps.
		assert.Equal(t, first[i].Type, second[i].Type)
		assert.Equal(t, first[i].Severity, second[i].Severity)
		assert.Equal(t, first[i].Description, second[i].Description)
		assert.Equal(t, first[i].Metrics, second[i].Metrics)
		assert.Equal(t, first[i].AffectedEntities, second[i].AffectedEntities)
		assert.Equal(t, first[i].InvestigationSteps, second[i].InvestigationSteps)
	}
}

func TestCheckSkipsRulesWhenZScoreUndefined(t *testing.T) {
	// Identical samples: stddev 0, so any off-mean duration has no z-score
	// and the degradation rule must skip rather than fabricate one.
	b := baseline.NewMetrics(30)
	for i := 0; i < 10; i++ {
		b.Update(execution(100))
	}
	d := New(5)

	assert.Empty(t, d.Check(execution(500), b))
}

func TestNormalExecutionProducesNoAnomalies(t *testing.T) {
	b := seededBaseline(t, 100, 10, 30)
	d := New(5)

	assert.Empty(t, d.Check(execution(105), b))
}

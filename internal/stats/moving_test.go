package stats

import (
	"math"
	"testing"
)

func TestObserveComputesMeanAndStdDev(t *testing.T) {
	m := NewMovingStatistic(5)

	// Values: [10, 20, 30, 40, 50] → mean 30, stddev sqrt(200) ≈ 14.14
	for _, v := range []float64{10, 20, 30, 40, 50} {
		m.Observe(v)
	}

	if math.Abs(m.Mean()-30.0) > 0.001 {
		t.Errorf("Expected mean 30, got %f", m.Mean())
	}
	if math.Abs(m.StdDev()-math.Sqrt(200)) > 0.001 {
		t.Errorf("Expected stddev %f, got %f", math.Sqrt(200), m.StdDev())
	}
}

func TestWindowBoundHoldsForManyInserts(t *testing.T) {
	m := NewMovingStatistic(5)

	for i := 0; i < 1000; i++ {
		m.Observe(float64(i))
		if m.Count() > 5 {
			t.Fatalf("Window exceeded capacity: %d samples after %d inserts", m.Count(), i+1)
		}
	}

	// Last 5 values are 995..999 → mean 997
	if math.Abs(m.Mean()-997.0) > 0.001 {
		t.Errorf("Expected mean 997 after eviction, got %f", m.Mean())
	}
}

func TestZScoreForOutlierAfterIdenticalWindow(t *testing.T) {
	m := NewMovingStatistic(30)

	// window_size identical values, then a spike well above the mean.
	for i := 0; i < 30; i++ {
		m.Observe(100)
	}
	// Identical values: stddev is 0 until the spike lands.
	m.Observe(100 + 5*10)

	z, ok := m.ZScore(150)
	if !ok {
		t.Fatal("Expected defined z-score after spike introduced spread")
	}
	if z <= 3.0 {
		t.Errorf("Expected z-score > 3 for the outlier, got %f", z)
	}
}

func TestZScoreUndefinedWithoutSpread(t *testing.T) {
	m := NewMovingStatistic(10)
	m.Observe(42)

	if z, ok := m.ZScore(42); !ok || z != 0 {
		t.Errorf("Expected z=0 at the mean with zero stddev, got z=%f ok=%v", z, ok)
	}
	if _, ok := m.ZScore(43); ok {
		t.Error("Expected undefined z-score off the mean with zero stddev")
	}
}

func TestObserveReturnsUpdatedStatistics(t *testing.T) {
	m := NewMovingStatistic(3)

	mean, stdDev := m.Observe(10)
	if mean != 10 || stdDev != 0 {
		t.Errorf("Expected (10, 0) after first sample, got (%f, %f)", mean, stdDev)
	}

	mean, _ = m.Observe(20)
	if mean != 15 {
		t.Errorf("Expected mean 15, got %f", mean)
	}
}

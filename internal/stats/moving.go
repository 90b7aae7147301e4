// Package stats implements the bounded running statistics that back workflow
// baselines: a fixed-size FIFO window of raw samples with mean, standard
// deviation, and z-score derived from the window contents.
package stats

import "math"

// DefaultWindowSize is the number of samples a MovingStatistic retains.
const DefaultWindowSize = 30

// MovingStatistic maintains mean and standard deviation over a bounded FIFO
// window of samples. Inserting beyond capacity evicts the oldest sample
// before the statistics are recomputed, so len(history) never exceeds the
// window size.
type MovingStatistic struct {
	mean       float64
	stdDev     float64
	windowSize int
	values     []float64
}

// NewMovingStatistic creates a statistic with the given window size.
// Sizes < 1 fall back to DefaultWindowSize.
func NewMovingStatistic(windowSize int) *MovingStatistic {
	if windowSize < 1 {
		windowSize = DefaultWindowSize
	}
	return &MovingStatistic{
		windowSize: windowSize,
		values:     make([]float64, 0, windowSize),
	}
}

// Observe inserts a sample, evicting the oldest if the window is full, and
// returns the recomputed mean and standard deviation.
func (m *MovingStatistic) Observe(value float64) (mean, stdDev float64) {
	if len(m.values) >= m.windowSize {
		copy(m.values, m.values[1:])
		m.values[len(m.values)-1] = value
	} else {
		m.values = append(m.values, value)
	}

	var sum float64
	for _, v := range m.values {
		sum += v
	}
	m.mean = sum / float64(len(m.values))

	var sumSquaredDiff float64
	for _, v := range m.values {
		diff := v - m.mean
		sumSquaredDiff += diff * diff
	}
	m.stdDev = math.Sqrt(sumSquaredDiff / float64(len(m.values)))

	return m.mean, m.stdDev
}

// ZScore returns how many standard deviations value lies from the mean.
// When the window has no spread (stdDev == 0) the score is 0 for a value
// equal to the mean and undefined otherwise; ok is false for the undefined
// case so callers skip the rule instead of fabricating a score.
func (m *MovingStatistic) ZScore(value float64) (z float64, ok bool) {
	if m.stdDev == 0 {
		if value == m.mean {
			return 0, true
		}
		return 0, false
	}
	return (value - m.mean) / m.stdDev, true
}

// Mean returns the current window mean.
func (m *MovingStatistic) Mean() float64 { return m.mean }

// StdDev returns the current window standard deviation.
func (m *MovingStatistic) StdDev() float64 { return m.stdDev }

// Count returns the number of samples currently in the window.
func (m *MovingStatistic) Count() int { return len(m.values) }

// WindowSize returns the configured window capacity.
func (m *MovingStatistic) WindowSize() int { return m.windowSize }

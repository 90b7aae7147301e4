package models

import "time"

// AnomalyType identifies which detection rule produced an anomaly.
type AnomalyType string

const (
	AnomalySpikeInFailures        AnomalyType = "spike_in_failures"
	AnomalyPerformanceDegradation AnomalyType = "performance_degradation"
	AnomalyUnusualExecutionTime   AnomalyType = "unusual_execution_time"
	AnomalyPatternDeviation       AnomalyType = "pattern_deviation"
	AnomalyResourceExhaustion     AnomalyType = "resource_exhaustion"
	AnomalyConsecutiveFailures    AnomalyType = "consecutive_failures"
)

// ValidAnomalyType reports whether t is a recognised anomaly type.
func ValidAnomalyType(t AnomalyType) bool {
	switch t {
	case AnomalySpikeInFailures, AnomalyPerformanceDegradation, AnomalyUnusualExecutionTime,
		AnomalyPatternDeviation, AnomalyResourceExhaustion, AnomalyConsecutiveFailures:
		return true
	}
	return false
}

// AnomalySeverity is the ordinal urgency classification of an anomaly.
type AnomalySeverity string

const (
	SeverityInfo     AnomalySeverity = "info"
	SeverityWarning  AnomalySeverity = "warning"
	SeverityCritical AnomalySeverity = "critical"
)

// severityRank orders severities so gates can compare them.
var severityRank = map[AnomalySeverity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// Rank returns the ordinal position of the severity (info < warning < critical).
// Unknown severities rank below info.
func (s AnomalySeverity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether s is at or above the given threshold severity.
func (s AnomalySeverity) AtLeast(threshold AnomalySeverity) bool {
	return s.Rank() >= threshold.Rank()
}

// ValidAnomalySeverity reports whether s is a recognised severity.
func ValidAnomalySeverity(s AnomalySeverity) bool {
	_, ok := severityRank[s]
	return ok
}

// AnomalyMetrics captures the statistical evidence behind a detection.
// Confidence grows with |z_score| and is capped at 1.0.
type AnomalyMetrics struct {
	CurrentValue  float64 `json:"current_value"`
	BaselineValue float64 `json:"baseline_value"`
	Deviation     float64 `json:"deviation"`
	ZScore        float64 `json:"z_score"`
	Confidence    float64 `json:"confidence"`
}

// Anomaly is a single detection record. Anomalies are immutable once created:
// the store is append-only and supersession happens through new detections,
// never edits, so the table doubles as an audit trail.
type Anomaly struct {
	ID                 string          `json:"id" db:"id"`
	DetectedAt         time.Time       `json:"detected_at" db:"detected_at"`
	Type               AnomalyType     `json:"type" db:"anomaly_type"`
	Severity           AnomalySeverity `json:"severity" db:"severity"`
	Description        string          `json:"description" db:"description"`
	Metrics            AnomalyMetrics  `json:"metrics" db:"-"`
	AffectedEntities   []string        `json:"affected_entities" db:"-"`
	InvestigationSteps []string        `json:"investigation_steps" db:"-"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// AnomalyFilter bounds and narrows a list query. Start/End are required;
// Type and Severity are optional and combinable.
type AnomalyFilter struct {
	Start    time.Time
	End      time.Time
	Type     AnomalyType
	Severity AnomalySeverity
	Page     int
	PageSize int
}

// AnomalyPage is one page of a bounded anomaly listing.
type AnomalyPage struct {
	Anomalies []*Anomaly `json:"anomalies"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
	Total     int        `json:"total"`
}

// AnomalyCountByDate is one point of the counts-by-date trend series.
type AnomalyCountByDate struct {
	Date  string `json:"date" db:"date"`
	Count int64  `json:"count" db:"count"`
}

// SeverityCount is one slice of the severity distribution.
type SeverityCount struct {
	Severity AnomalySeverity `json:"severity" db:"severity"`
	Count    int64           `json:"count" db:"count"`
}

// AnomalyTrends bundles the two chart series served by the trends endpoint.
type AnomalyTrends struct {
	CountsByDate         []AnomalyCountByDate `json:"counts_by_date"`
	SeverityDistribution []SeverityCount      `json:"severity_distribution"`
}

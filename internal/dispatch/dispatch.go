// Package dispatch decides whether a persisted anomaly becomes an alert and
// delivers it over the configured channels. Suppression never blocks
// persistence: the anomaly record already exists by the time the dispatcher
// sees it, so suppressed alerts remain queryable.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/qawatch/qawatch-backend/internal/models"
	"github.com/qawatch/qawatch-backend/internal/pkg/metrics"
)

const (
	// DefaultRateLimit is the per-key dispatch budget inside one window.
	DefaultRateLimit = 10
	// DefaultRateWindow is the sliding window for the dispatch budget.
	DefaultRateWindow = 5 * time.Minute
)

// Outcome records what the dispatcher did with one anomaly.
type Outcome string

const (
	OutcomeDispatched          Outcome = "dispatched"
	OutcomeSuppressedSeverity  Outcome = "suppressed_severity"
	OutcomeSuppressedRateLimit Outcome = "suppressed_rate_limit"
)

// Dispatcher applies the severity gate and the per-(template, anomaly type)
// rate limit, then fans the alert out to every channel. Channel failures are
// logged and counted but never propagate: alerting is best-effort by
// contract, and the anomaly is already persisted.
type Dispatcher struct {
	channels    []Channel
	minSeverity models.AnomalySeverity
	limiter     *keyLimiter
	now         func() time.Time
	log         *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMinSeverity sets the lowest severity that is dispatched.
func WithMinSeverity(s models.AnomalySeverity) Option {
	return func(d *Dispatcher) { d.minSeverity = s }
}

// WithRateLimit sets the per-key dispatch budget and window.
func WithRateLimit(limit int, window time.Duration) Option {
	return func(d *Dispatcher) { d.limiter = newKeyLimiter(limit, window) }
}

// WithClock injects the time source used by the rate limiter.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(log *slog.Logger, channels []Channel, opts ...Option) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		channels:    channels,
		minSeverity: models.SeverityWarning,
		limiter:     newKeyLimiter(DefaultRateLimit, DefaultRateWindow),
		now:         time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs the severity gate and rate limit for the anomaly, keyed by
// (templateID, anomaly type), and delivers to all channels if both pass.
func (d *Dispatcher) Dispatch(ctx context.Context, templateID string, anomaly *models.Anomaly) Outcome {
	if !anomaly.Severity.AtLeast(d.minSeverity) {
		metrics.DispatchSuppressedTotal.WithLabelValues("severity").Inc()
		d.log.Debug("alert suppressed below severity threshold",
			"anomaly_id", anomaly.ID,
			"severity", anomaly.Severity,
			"threshold", d.minSeverity,
		)
		return OutcomeSuppressedSeverity
	}

	key := templateID + "|" + string(anomaly.Type)
	if !d.limiter.Allow(key, d.now()) {
		metrics.DispatchSuppressedTotal.WithLabelValues("rate_limit").Inc()
		d.log.Info("alert suppressed by rate limit",
			"anomaly_id", anomaly.ID,
			"template_id", templateID,
			"anomaly_type", anomaly.Type,
		)
		return OutcomeSuppressedRateLimit
	}

	for _, ch := range d.channels {
		if err := ch.Send(ctx, anomaly); err != nil {
			metrics.DispatchChannelFailuresTotal.WithLabelValues(ch.Name()).Inc()
			d.log.Warn("alert delivery failed",
				"channel", ch.Name(),
				"anomaly_id", anomaly.ID,
				"err", err,
			)
		}
	}
	return OutcomeDispatched
}

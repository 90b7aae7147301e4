package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/qawatch/qawatch-backend/internal/baseline"
	"github.com/qawatch/qawatch-backend/internal/detector"
	"github.com/qawatch/qawatch-backend/internal/dispatch"
	"github.com/qawatch/qawatch-backend/internal/models"
	"github.com/qawatch/qawatch-backend/internal/pkg/metrics"
)

// ExecutionScanner is the subset of the execution store the batch job reads.
type ExecutionScanner interface {
	ListActiveTemplates(ctx context.Context, since time.Time) ([]string, error)
	GetRecentExecutions(ctx context.Context, templateID string, limit int) ([]*models.Execution, error)
}

const (
	// DefaultBatchInterval is how often the batch job scans active templates.
	DefaultBatchInterval = 5 * time.Minute
	// DefaultBatchLookback bounds which templates count as active.
	DefaultBatchLookback = 24 * time.Hour
)

// BatchScheduler periodically runs the batch-context rules (failure spikes,
// consecutive failures) over each active template's recent outcome window.
// These rules aggregate across executions, so they cannot run in the
// per-execution pipeline.
type BatchScheduler struct {
	execs      ExecutionScanner
	store      AnomalySink
	baselines  baseline.Source
	detector   *detector.BatchDetector
	dispatcher *dispatch.Dispatcher
	log        *slog.Logger

	interval     time.Duration
	lookback     time.Duration
	windowSize   int
	retryBackoff time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// SchedulerOption configures a BatchScheduler.
type SchedulerOption func(*BatchScheduler)

// WithInterval sets the scan cadence.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *BatchScheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLookback sets the activity cutoff for template discovery.
func WithLookback(d time.Duration) SchedulerOption {
	return func(s *BatchScheduler) {
		if d > 0 {
			s.lookback = d
		}
	}
}

func NewBatchScheduler(
	log *slog.Logger,
	execs ExecutionScanner,
	store AnomalySink,
	baselines baseline.Source,
	det *detector.BatchDetector,
	dispatcher *dispatch.Dispatcher,
	windowSize int,
	opts ...SchedulerOption,
) *BatchScheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &BatchScheduler{
		execs:        execs,
		store:        store,
		baselines:    baselines,
		detector:     det,
		dispatcher:   dispatcher,
		log:          log,
		interval:     DefaultBatchInterval,
		lookback:     DefaultBatchLookback,
		windowSize:   windowSize,
		retryBackoff: defaultRetryBackoff,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the periodic scan loop.
func (s *BatchScheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.log.Info("batch detection scheduler started", "interval", s.interval)
		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.RunOnce(ctx); err != nil {
					s.log.Error("batch detection scan failed", "err", err)
				}
			}
		}
	}()
}

// Stop signals the loop and waits for a scan in progress to finish.
func (s *BatchScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// RunOnce scans every recently active template once. Per-template errors are
// logged and the scan continues; only template discovery failure aborts.
func (s *BatchScheduler) RunOnce(ctx context.Context) error {
	since := time.Now().UTC().Add(-s.lookback)
	templates, err := s.execs.ListActiveTemplates(ctx, since)
	if err != nil {
		return err
	}

	for _, templateID := range templates {
		if err := s.scanTemplate(ctx, templateID); err != nil {
			s.log.Error("batch detection failed for template",
				"template_id", templateID,
				"err", err,
			)
		}
	}
	return nil
}

func (s *BatchScheduler) scanTemplate(ctx context.Context, templateID string) error {
	window, err := s.execs.GetRecentExecutions(ctx, templateID, s.windowSize)
	if err != nil {
		return err
	}

	unlock := s.baselines.LockTemplate(templateID)
	b := s.baselines.Load(ctx, templateID)
	anomalies := s.detector.Check(templateID, window, b)
	unlock()

	for _, a := range anomalies {
		if err := PersistWithRetry(ctx, s.store, a, s.retryBackoff); err != nil {
			return err
		}
		metrics.AnomaliesDetectedTotal.WithLabelValues(string(a.Type), string(a.Severity)).Inc()

		outcome := s.dispatcher.Dispatch(ctx, templateID, a)
		s.log.Info("batch anomaly processed",
			"template_id", templateID,
			"anomaly_id", a.ID,
			"anomaly_type", a.Type,
			"severity", a.Severity,
			"dispatch", outcome,
		)
	}
	return nil
}

// Package pipeline orchestrates detection for completed workflow executions:
// baseline load, rule evaluation, persistence, and alert dispatch. Ingestion
// is fire-and-forget: callers enqueue and move on, a worker drains the queue,
// and a full queue drops work rather than applying backpressure to the
// reporting side.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/qawatch/qawatch-backend/internal/baseline"
	"github.com/qawatch/qawatch-backend/internal/detector"
	"github.com/qawatch/qawatch-backend/internal/dispatch"
	"github.com/qawatch/qawatch-backend/internal/models"
	"github.com/qawatch/qawatch-backend/internal/pkg/metrics"
)

// AnomalySink is the subset of the anomaly store the pipeline writes to.
type AnomalySink interface {
	SaveAnomaly(ctx context.Context, anomaly *models.Anomaly) error
}

// State names one step of a pipeline run. Every run ends in StateDone,
// StateSkipped, or StateFailed.
type State string

const (
	StateReceived       State = "received"
	StateBaselineLoaded State = "baseline_loaded"
	StateDetected       State = "detected"
	StatePersisted      State = "persisted"
	StateDispatched     State = "dispatched"
	StateDone           State = "done"
	StateSkipped        State = "skipped"
	StateFailed         State = "failed"
)

const (
	defaultQueueSize    = 256
	defaultRetryBackoff = 200 * time.Millisecond
)

// Result is the outcome of one pipeline run.
type Result struct {
	State     State
	Anomalies []*models.Anomaly
}

// Pipeline wires the detection stages together and owns the ingest queue.
type Pipeline struct {
	baselines  baseline.Source
	detector   *detector.Detector
	store      AnomalySink
	dispatcher *dispatch.Dispatcher
	log        *slog.Logger

	queue        chan *models.Execution
	retryBackoff time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithQueueSize sets the ingest queue capacity.
func WithQueueSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.queue = make(chan *models.Execution, n)
		}
	}
}

// WithRetryBackoff sets the delay before the single persistence retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(p *Pipeline) { p.retryBackoff = d }
}

func New(
	log *slog.Logger,
	baselines baseline.Source,
	det *detector.Detector,
	store AnomalySink,
	dispatcher *dispatch.Dispatcher,
	opts ...Option,
) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{
		baselines:    baselines,
		detector:     det,
		store:        store,
		dispatcher:   dispatcher,
		log:          log,
		queue:        make(chan *models.Execution, defaultQueueSize),
		retryBackoff: defaultRetryBackoff,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the queue worker.
func (p *Pipeline) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.worker(ctx)
	p.log.Info("detection pipeline started", "queue_size", cap(p.queue))
}

// Stop signals the worker and waits for in-flight work to finish.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

// Enqueue hands an execution to the pipeline without blocking. It returns
// false when the queue is full; the execution is dropped and counted, never
// queued with backpressure.
func (p *Pipeline) Enqueue(exec *models.Execution) bool {
	select {
	case p.queue <- exec:
		return true
	default:
		metrics.PipelineQueueDroppedTotal.Inc()
		p.log.Warn("detection queue full, dropping execution",
			"execution_id", exec.ID,
			"template_id", exec.TemplateID,
		)
		return false
	}
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case exec := <-p.queue:
			if _, err := p.Run(ctx, exec); err != nil {
				p.log.Error("pipeline run failed",
					"execution_id", exec.ID,
					"template_id", exec.TemplateID,
					"err", err,
				)
			}
		}
	}
}

// Run processes one execution synchronously through every stage. The
// per-template lock is held across load, detect, and update so concurrent
// executions of the same template observe a consistent baseline.
func (p *Pipeline) Run(ctx context.Context, exec *models.Execution) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	state := StateReceived
	p.logState(exec, state)

	// The lock only guards the load/detect/update window; it is released
	// before persistence and dispatch so a slow alert channel cannot
	// serialize detection for the same template.
	unlock := p.baselines.LockTemplate(exec.TemplateID)

	b := p.baselines.Load(ctx, exec.TemplateID)
	state = StateBaselineLoaded
	p.logState(exec, state)

	if b.SampleCount() < p.detector.MinSamples() {
		// Cold start: too little history to judge this execution. The
		// execution still feeds the baseline so the template warms up.
		samples := b.SampleCount()
		p.baselines.Update(exec.TemplateID, exec)
		unlock()
		metrics.PipelineRunsTotal.WithLabelValues(string(StateSkipped)).Inc()
		p.log.Debug("detection skipped, baseline warming",
			"execution_id", exec.ID,
			"template_id", exec.TemplateID,
			"samples", samples,
		)
		return &Result{State: StateSkipped}, nil
	}

	anomalies := p.detector.Check(exec, b)
	p.baselines.Update(exec.TemplateID, exec)
	unlock()
	state = StateDetected
	p.logState(exec, state)

	if len(anomalies) == 0 {
		metrics.PipelineRunsTotal.WithLabelValues(string(StateDone)).Inc()
		return &Result{State: StateDone}, nil
	}

	for _, a := range anomalies {
		if err := PersistWithRetry(ctx, p.store, a, p.retryBackoff); err != nil {
			metrics.PipelineRunsTotal.WithLabelValues(string(StateFailed)).Inc()
			return &Result{State: StateFailed, Anomalies: anomalies},
				fmt.Errorf("persist anomaly %s: %w", a.Type, err)
		}
		metrics.AnomaliesDetectedTotal.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
	}
	state = StatePersisted
	p.logState(exec, state)

	for _, a := range anomalies {
		outcome := p.dispatcher.Dispatch(ctx, exec.TemplateID, a)
		p.log.Info("anomaly processed",
			"execution_id", exec.ID,
			"template_id", exec.TemplateID,
			"anomaly_id", a.ID,
			"anomaly_type", a.Type,
			"severity", a.Severity,
			"dispatch", outcome,
		)
	}
	state = StateDispatched
	p.logState(exec, state)

	metrics.PipelineRunsTotal.WithLabelValues(string(StateDone)).Inc()
	return &Result{State: StateDone, Anomalies: anomalies}, nil
}

func (p *Pipeline) logState(exec *models.Execution, s State) {
	p.log.Debug("pipeline state",
		"execution_id", exec.ID,
		"template_id", exec.TemplateID,
		"state", s,
	)
}

// PersistWithRetry saves an anomaly, retrying exactly once after a short
// backoff. Persistence must precede dispatch, so a double failure fails the
// run.
func PersistWithRetry(ctx context.Context, store AnomalySink, a *models.Anomaly, backoff time.Duration) error {
	err := store.SaveAnomaly(ctx, a)
	if err == nil {
		return nil
	}

	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return ctx.Err()
	}
	return store.SaveAnomaly(ctx, a)
}

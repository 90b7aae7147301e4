package baseline

import (
	"context"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/qawatch/qawatch-backend/internal/models"
)

const defaultCacheSize = 1024

// Tracker is the in-memory Source implementation. Baselines are held in a
// bounded LRU so a long tail of dormant templates cannot grow memory without
// limit; an evicted baseline is simply replayed from history on next use.
type Tracker struct {
	history    HistorySource
	windowSize int
	log        *slog.Logger

	mu      sync.Mutex
	entries *lru.Cache[string, *templateEntry]
	replays singleflight.Group
}

// templateEntry guards one template's baseline. Statistics are fully
// partitioned by template_id, so no cross-template coordination exists.
type templateEntry struct {
	mu       sync.Mutex
	hydrated bool
	metrics  *Metrics
}

// NewTracker creates a tracker that replays history from the given source.
func NewTracker(history HistorySource, windowSize int, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	entries, _ := lru.New[string, *templateEntry](defaultCacheSize)
	return &Tracker{
		history:    history,
		windowSize: windowSize,
		log:        log,
		entries:    entries,
	}
}

func (t *Tracker) entry(templateID string) *templateEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries.Get(templateID); ok {
		return e
	}
	e := &templateEntry{metrics: NewMetrics(t.windowSize)}
	t.entries.Add(templateID, e)
	return e
}

// LockTemplate acquires the per-template lock used to make load+update a
// guarded read-modify-write unit.
func (t *Tracker) LockTemplate(templateID string) func() {
	e := t.entry(templateID)
	e.mu.Lock()
	return e.mu.Unlock
}

// Load returns the template's baseline, rehydrating it from the most recent
// window of execution history the first time it is needed. If the history
// fetch fails the cold baseline is returned as-is: downstream detection then
// degrades to a skip instead of blocking the pipeline.
func (t *Tracker) Load(ctx context.Context, templateID string) *Metrics {
	e := t.entry(templateID)
	if e.hydrated {
		return e.metrics
	}

	// Collapse concurrent cold-start replays for the same template.
	_, _, _ = t.replays.Do(templateID, func() (interface{}, error) {
		if e.hydrated {
			return nil, nil
		}
		execs, err := t.history.GetRecentExecutions(ctx, templateID, t.windowSize)
		if err != nil {
			t.log.Warn("baseline history fetch failed, using cold baseline",
				"template_id", templateID, "error", err)
			return nil, nil
		}
		// Replay oldest first so the window holds the most recent samples.
		for i := len(execs) - 1; i >= 0; i-- {
			e.metrics.Update(execs[i])
		}
		e.hydrated = true
		return nil, nil
	})

	return e.metrics
}

// Update feeds the latest execution into the template's baseline. Called
// after detection completes so the triggering execution does not dilute the
// baseline it is judged against.
func (t *Tracker) Update(templateID string, exec *models.Execution) {
	e := t.entry(templateID)
	e.metrics.Update(exec)
}

// Snapshot returns a read-only view of the template's current baseline and
// whether one is resident in the cache.
func (t *Tracker) Snapshot(templateID string) (*Snapshot, bool) {
	t.mu.Lock()
	e, ok := t.entries.Get(templateID)
	t.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return &Snapshot{
		TemplateID:        templateID,
		SampleCount:       e.metrics.SampleCount(),
		WindowSize:        e.metrics.ExecutionTime.WindowSize(),
		ExecutionTimeMean: e.metrics.ExecutionTime.Mean(),
		ExecutionTimeStd:  e.metrics.ExecutionTime.StdDev(),
		FailureRateMean:   e.metrics.FailureRate.Mean(),
		SuccessRateMean:   e.metrics.SuccessRate.Mean(),
	}, true
}

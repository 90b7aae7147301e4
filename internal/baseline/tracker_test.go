package baseline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/qawatch/qawatch-backend/internal/models"
)

type fakeHistory struct {
	mu     sync.Mutex
	execs  []*models.Execution
	err    error
	calls  int
	lastID string
}

func (f *fakeHistory) GetRecentExecutions(_ context.Context, templateID string, limit int) ([]*models.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastID = templateID
	if f.err != nil {
		return nil, f.err
	}
	if len(f.execs) > limit {
		return f.execs[:limit], nil
	}
	return f.execs, nil
}

func executionsWithDurations(durations ...float64) []*models.Execution {
	// Most recent first, matching the repository's DESC ordering.
	execs := make([]*models.Execution, 0, len(durations))
	for i, d := range durations {
		execs = append(execs, &models.Execution{
			ID:              "exec-" + string(rune('a'+i)),
			TemplateID:      "tpl-1",
			DurationSeconds: d,
			Succeeded:       true,
			CompletedAt:     time.Now().Add(-time.Duration(i) * time.Minute),
		})
	}
	return execs
}

func TestLoadReplaysHistoryOnce(t *testing.T) {
	history := &fakeHistory{execs: executionsWithDurations(110, 100, 90)}
	tracker := NewTracker(history, 30, nil)

	b := tracker.Load(context.Background(), "tpl-1")
	if b.SampleCount() != 3 {
		t.Fatalf("Expected 3 replayed samples, got %d", b.SampleCount())
	}
	if b.ExecutionTime.Mean() != 100 {
		t.Errorf("Expected mean 100, got %f", b.ExecutionTime.Mean())
	}

	tracker.Load(context.Background(), "tpl-1")
	if history.calls != 1 {
		t.Errorf("Expected a single history fetch, got %d", history.calls)
	}
}

func TestLoadDegradesToColdBaselineOnHistoryFailure(t *testing.T) {
	history := &fakeHistory{err: errors.New("db unavailable")}
	tracker := NewTracker(history, 30, nil)

	b := tracker.Load(context.Background(), "tpl-1")
	if b == nil {
		t.Fatal("Expected a cold baseline, got nil")
	}
	if b.SampleCount() != 0 {
		t.Errorf("Expected empty baseline, got %d samples", b.SampleCount())
	}
}

func TestUpdateFeedsAllThreeStatistics(t *testing.T) {
	tracker := NewTracker(&fakeHistory{}, 30, nil)
	tracker.Load(context.Background(), "tpl-1")

	tracker.Update("tpl-1", &models.Execution{TemplateID: "tpl-1", DurationSeconds: 120, Succeeded: false})

	snap, ok := tracker.Snapshot("tpl-1")
	if !ok {
		t.Fatal("Expected baseline snapshot after update")
	}
	if snap.SampleCount != 1 {
		t.Errorf("Expected 1 sample, got %d", snap.SampleCount)
	}
	if snap.FailureRateMean != 100 {
		t.Errorf("Expected failure rate mean 100 after a failure, got %f", snap.FailureRateMean)
	}
	if snap.ExecutionTimeMean != 120 {
		t.Errorf("Expected execution time mean 120, got %f", snap.ExecutionTimeMean)
	}
}

func TestLockTemplateSerialisesSameTemplate(t *testing.T) {
	tracker := NewTracker(&fakeHistory{}, 30, nil)

	unlock := tracker.LockTemplate("tpl-1")
	acquired := make(chan struct{})
	go func() {
		u := tracker.LockTemplate("tpl-1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("Second lock acquired while first still held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Second lock never acquired after release")
	}
}

func TestSnapshotMissingTemplate(t *testing.T) {
	tracker := NewTracker(&fakeHistory{}, 30, nil)
	if _, ok := tracker.Snapshot("unknown"); ok {
		t.Error("Expected no snapshot for unseen template")
	}
}

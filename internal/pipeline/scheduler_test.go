package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qawatch/qawatch-backend/internal/baseline"
	"github.com/qawatch/qawatch-backend/internal/detector"
	"github.com/qawatch/qawatch-backend/internal/dispatch"
	"github.com/qawatch/qawatch-backend/internal/models"
)

type fakeScanner struct {
	templates []string
	windows   map[string][]*models.Execution
}

func (s *fakeScanner) ListActiveTemplates(_ context.Context, _ time.Time) ([]string, error) {
	return s.templates, nil
}

func (s *fakeScanner) GetRecentExecutions(_ context.Context, templateID string, limit int) ([]*models.Execution, error) {
	execs := s.windows[templateID]
	if len(execs) > limit {
		execs = execs[:limit]
	}
	return execs, nil
}

// outcomes builds a newest-first window from oldest-first outcome flags.
func outcomes(templateID string, succeeded ...bool) []*models.Execution {
	execs := make([]*models.Execution, len(succeeded))
	for i, ok := range succeeded {
		execs[len(succeeded)-1-i] = &models.Execution{
			ID:          "exec",
			TemplateID:  templateID,
			Succeeded:   ok,
			CompletedAt: time.Now().UTC(),
		}
	}
	return execs
}

// failureHistory builds replay history with the given number of failures out
// of n, giving the failure-rate baseline a known mean and spread.
func failureHistory(templateID string, n, failed int) *fakeHistory {
	execs := make([]*models.Execution, n)
	for i := range execs {
		execs[i] = &models.Execution{
			ID:              "hist",
			TemplateID:      templateID,
			DurationSeconds: 100,
			Succeeded:       i >= failed,
			CompletedAt:     time.Now().UTC(),
		}
	}
	return &fakeHistory{executions: map[string][]*models.Execution{templateID: execs}}
}

func newTestScheduler(history *fakeHistory, scanner *fakeScanner, store *fakeStore) *BatchScheduler {
	tracker := baseline.NewTracker(history, 30, nil)
	det := detector.NewBatch(5)
	disp := dispatch.NewDispatcher(nil, nil)
	return NewBatchScheduler(nil, scanner, store, tracker, det, disp, 30)
}

func TestRunOnceDetectsFailureCluster(t *testing.T) {
	// Baseline: 10% failure rate. Window: six straight failures after two
	// successes, a 75% failure rate and a long consecutive run.
	history := failureHistory("tpl-1", 30, 3)
	scanner := &fakeScanner{
		templates: []string{"tpl-1"},
		windows: map[string][]*models.Execution{
			"tpl-1": outcomes("tpl-1", true, true, false, false, false, false, false, false),
		},
	}
	store := &fakeStore{}
	s := newTestScheduler(history, scanner, store)

	require.NoError(t, s.RunOnce(context.Background()))

	require.Equal(t, 2, store.count())
	types := map[models.AnomalyType]bool{}
	for _, a := range store.saved {
		types[a.Type] = true
	}
	assert.True(t, types[models.AnomalySpikeInFailures])
	assert.True(t, types[models.AnomalyConsecutiveFailures])
}

func TestRunOnceQuietTemplate(t *testing.T) {
	history := failureHistory("tpl-1", 30, 3)
	scanner := &fakeScanner{
		templates: []string{"tpl-1"},
		windows: map[string][]*models.Execution{
			"tpl-1": outcomes("tpl-1", true, true, true, false, true, true, true, true),
		},
	}
	store := &fakeStore{}
	s := newTestScheduler(history, scanner, store)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, store.count())
}

func TestRunOnceShortWindowSkipped(t *testing.T) {
	history := failureHistory("tpl-1", 30, 3)
	scanner := &fakeScanner{
		templates: []string{"tpl-1"},
		windows: map[string][]*models.Execution{
			"tpl-1": outcomes("tpl-1", false, false, false),
		},
	}
	store := &fakeStore{}
	s := newTestScheduler(history, scanner, store)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, store.count())
}

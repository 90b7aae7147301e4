package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qawatch/qawatch-backend/internal/baseline"
	"github.com/qawatch/qawatch-backend/internal/models"
	"github.com/qawatch/qawatch-backend/internal/repository"
)

type fakeAnomalyStore struct {
	lastFilter models.AnomalyFilter
}

func (s *fakeAnomalyStore) SaveAnomaly(context.Context, *models.Anomaly) error { return nil }

func (s *fakeAnomalyStore) GetAnomaly(context.Context, string) (*models.Anomaly, error) {
	return &models.Anomaly{}, nil
}

func (s *fakeAnomalyStore) ListAnomalies(_ context.Context, filter models.AnomalyFilter) (*models.AnomalyPage, error) {
	s.lastFilter = filter
	return &models.AnomalyPage{Anomalies: []*models.Anomaly{}, Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (s *fakeAnomalyStore) CountByDate(context.Context, time.Time, time.Time) ([]models.AnomalyCountByDate, error) {
	return nil, nil
}

func (s *fakeAnomalyStore) SeverityDistribution(context.Context, time.Time, time.Time) ([]models.SeverityCount, error) {
	return nil, nil
}

type fakeNotifications struct{}

func (fakeNotifications) CreateNotification(context.Context, *models.Notification) error { return nil }

func (fakeNotifications) ListNotifications(context.Context, int) ([]*models.Notification, error) {
	return nil, nil
}

type fakeBaselines struct {
	snapshots map[string]*baseline.Snapshot
}

func (f *fakeBaselines) Snapshot(templateID string) (*baseline.Snapshot, bool) {
	snap, ok := f.snapshots[templateID]
	return snap, ok
}

func newTestAnomalyService(store *fakeAnomalyStore) AnomalyService {
	return NewAnomalyService(store, fakeNotifications{}, &fakeBaselines{})
}

func dayRange() (time.Time, time.Time) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

func TestListAnomaliesValidatesFilter(t *testing.T) {
	store := &fakeAnomalyStore{}
	svc := newTestAnomalyService(store)
	start, end := dayRange()

	_, err := svc.ListAnomalies(context.Background(), models.AnomalyFilter{End: end})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = svc.ListAnomalies(context.Background(), models.AnomalyFilter{Start: end, End: start})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = svc.ListAnomalies(context.Background(), models.AnomalyFilter{
		Start: start, End: end, Type: models.AnomalyType("bogus"),
	})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = svc.ListAnomalies(context.Background(), models.AnomalyFilter{
		Start: start, End: end, Severity: models.AnomalySeverity("fatal"),
	})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = svc.ListAnomalies(context.Background(), models.AnomalyFilter{
		Start: start, End: end, Page: -1,
	})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestListAnomaliesAcceptsKnownTypeAndSeverity(t *testing.T) {
	store := &fakeAnomalyStore{}
	svc := newTestAnomalyService(store)
	start, end := dayRange()

	page, err := svc.ListAnomalies(context.Background(), models.AnomalyFilter{
		Start:    start,
		End:      end,
		Type:     models.AnomalyPerformanceDegradation,
		Severity: models.SeverityCritical,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AnomalyPerformanceDegradation, store.lastFilter.Type)
	assert.Equal(t, models.SeverityCritical, store.lastFilter.Severity)

	// Pagination defaults applied before the store sees the filter.
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.PageSize)
}

func TestGetBaselineUnknownTemplate(t *testing.T) {
	svc := NewAnomalyService(&fakeAnomalyStore{}, fakeNotifications{}, &fakeBaselines{})

	_, err := svc.GetBaseline("never-seen")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

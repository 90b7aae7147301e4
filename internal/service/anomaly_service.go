package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qawatch/qawatch-backend/internal/baseline"
	"github.com/qawatch/qawatch-backend/internal/models"
	"github.com/qawatch/qawatch-backend/internal/pkg/validate"
	"github.com/qawatch/qawatch-backend/internal/repository"
)

// ErrInvalidQuery marks a request the caller got wrong; handlers map it to
// HTTP 400.
var ErrInvalidQuery = errors.New("invalid query")

// maxPageSize caps a single anomaly listing page.
const maxPageSize = 200

// BaselineReader exposes read-only baseline snapshots for the query surface.
type BaselineReader interface {
	Snapshot(templateID string) (*baseline.Snapshot, bool)
}

// AnomalyService is the read side of the anomaly engine: listing, lookup,
// trends, baselines, and notifications.
type AnomalyService interface {
	ListAnomalies(ctx context.Context, filter models.AnomalyFilter) (*models.AnomalyPage, error)
	GetAnomaly(ctx context.Context, id string) (*models.Anomaly, error)
	GetTrends(ctx context.Context, start, end time.Time) (*models.AnomalyTrends, error)
	GetBaseline(templateID string) (*baseline.Snapshot, error)
	ListNotifications(ctx context.Context, limit int) ([]*models.Notification, error)
}

type anomalyService struct {
	anomalies     repository.AnomalyStore
	notifications repository.NotificationStore
	baselines     BaselineReader
}

// NewAnomalyService creates the anomaly query service.
func NewAnomalyService(
	anomalies repository.AnomalyStore,
	notifications repository.NotificationStore,
	baselines BaselineReader,
) AnomalyService {
	return &anomalyService{
		anomalies:     anomalies,
		notifications: notifications,
		baselines:     baselines,
	}
}

func validateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidQuery)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end precedes start", ErrInvalidQuery)
	}
	return nil
}

func (s *anomalyService) ListAnomalies(ctx context.Context, filter models.AnomalyFilter) (*models.AnomalyPage, error) {
	if err := validateRange(filter.Start, filter.End); err != nil {
		return nil, err
	}
	if filter.Type != "" && !models.ValidAnomalyType(filter.Type) {
		return nil, fmt.Errorf("%w: unknown anomaly type %q", ErrInvalidQuery, filter.Type)
	}
	if filter.Severity != "" && !models.ValidAnomalySeverity(filter.Severity) {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidQuery, filter.Severity)
	}
	if filter.Page < 0 || filter.PageSize < 0 {
		return nil, fmt.Errorf("%w: page and page_size must be positive", ErrInvalidQuery)
	}
	filter.Page, filter.PageSize = validate.Pagination(filter.Page, filter.PageSize, 50, maxPageSize)
	return s.anomalies.ListAnomalies(ctx, filter)
}

func (s *anomalyService) GetAnomaly(ctx context.Context, id string) (*models.Anomaly, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidQuery)
	}
	return s.anomalies.GetAnomaly(ctx, id)
}

func (s *anomalyService) GetTrends(ctx context.Context, start, end time.Time) (*models.AnomalyTrends, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	counts, err := s.anomalies.CountByDate(ctx, start, end)
	if err != nil {
		return nil, err
	}
	dist, err := s.anomalies.SeverityDistribution(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return &models.AnomalyTrends{
		CountsByDate:         counts,
		SeverityDistribution: dist,
	}, nil
}

func (s *anomalyService) GetBaseline(templateID string) (*baseline.Snapshot, error) {
	if templateID == "" {
		return nil, fmt.Errorf("%w: template id is required", ErrInvalidQuery)
	}
	snap, ok := s.baselines.Snapshot(templateID)
	if !ok {
		return nil, fmt.Errorf("baseline for template %s: %w", templateID, repository.ErrNotFound)
	}
	return snap, nil
}

func (s *anomalyService) ListNotifications(ctx context.Context, limit int) ([]*models.Notification, error) {
	if limit < 1 || limit > maxPageSize {
		limit = 50
	}
	return s.notifications.ListNotifications(ctx, limit)
}

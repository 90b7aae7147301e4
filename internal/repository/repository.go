package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/qawatch/qawatch-backend/internal/models"
)

// Repository implements AnomalyStore, ExecutionStore, and NotificationStore
// over a single sqlx connection. Queries are written with `?` placeholders
// and rebound per driver, so SQLite and PostgreSQL share one implementation.
type Repository struct {
	db *sqlx.DB
}

// NewSQLiteRepository opens (or creates) a SQLite database at dbPath.
// Use ":memory:" for tests.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return &Repository{db: db}, nil
}

// NewPostgresRepository connects to PostgreSQL with the given DSN.
func NewPostgresRepository(connectionString string) (*Repository, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &Repository{db: db}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks database connectivity, used by the readiness probe.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RunMigrations executes migration SQL against the database.
func (r *Repository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

// anomalyRow is the storage shape of an anomaly; the JSON columns hold
// metrics and the ordered entity/step lists.
type anomalyRow struct {
	ID                 string    `db:"id"`
	DetectedAt         time.Time `db:"detected_at"`
	AnomalyType        string    `db:"anomaly_type"`
	Severity           string    `db:"severity"`
	Description        string    `db:"description"`
	Metrics            string    `db:"metrics"`
	AffectedEntities   string    `db:"affected_entities"`
	InvestigationSteps string    `db:"investigation_steps"`
	CreatedAt          time.Time `db:"created_at"`
}

func (row *anomalyRow) toModel() (*models.Anomaly, error) {
	a := &models.Anomaly{
		ID:          row.ID,
		DetectedAt:  row.DetectedAt,
		Type:        models.AnomalyType(row.AnomalyType),
		Severity:    models.AnomalySeverity(row.Severity),
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
	}
	if err := json.Unmarshal([]byte(row.Metrics), &a.Metrics); err != nil {
		return nil, fmt.Errorf("failed to decode anomaly metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(row.AffectedEntities), &a.AffectedEntities); err != nil {
		return nil, fmt.Errorf("failed to decode affected entities: %w", err)
	}
	if err := json.Unmarshal([]byte(row.InvestigationSteps), &a.InvestigationSteps); err != nil {
		return nil, fmt.Errorf("failed to decode investigation steps: %w", err)
	}
	return a, nil
}

// SaveAnomaly appends one detection record. Anomalies are never updated or
// deleted afterwards.
func (r *Repository) SaveAnomaly(ctx context.Context, anomaly *models.Anomaly) error {
	if anomaly.ID == "" {
		anomaly.ID = uuid.New().String()
	}
	if anomaly.CreatedAt.IsZero() {
		anomaly.CreatedAt = time.Now().UTC()
	}

	metrics, err := json.Marshal(anomaly.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode anomaly metrics: %w", err)
	}
	entities, err := json.Marshal(anomaly.AffectedEntities)
	if err != nil {
		return fmt.Errorf("failed to encode affected entities: %w", err)
	}
	steps, err := json.Marshal(anomaly.InvestigationSteps)
	if err != nil {
		return fmt.Errorf("failed to encode investigation steps: %w", err)
	}

	query := r.db.Rebind(`
		INSERT INTO anomalies (id, detected_at, anomaly_type, severity, description, metrics, affected_entities, investigation_steps, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query,
		anomaly.ID,
		anomaly.DetectedAt,
		string(anomaly.Type),
		string(anomaly.Severity),
		anomaly.Description,
		string(metrics),
		string(entities),
		string(steps),
		anomaly.CreatedAt,
	)
	return err
}

// GetAnomaly returns one anomaly by ID, or ErrNotFound.
func (r *Repository) GetAnomaly(ctx context.Context, id string) (*models.Anomaly, error) {
	var row anomalyRow
	query := r.db.Rebind(`SELECT * FROM anomalies WHERE id = ?`)
	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("anomaly %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

// ListAnomalies returns a date-bounded, optionally filtered page of
// anomalies ordered most recent first.
func (r *Repository) ListAnomalies(ctx context.Context, filter models.AnomalyFilter) (*models.AnomalyPage, error) {
	where := ` WHERE detected_at >= ? AND detected_at <= ?`
	args := []interface{}{filter.Start, filter.End}

	if filter.Type != "" {
		where += ` AND anomaly_type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.Severity != "" {
		where += ` AND severity = ?`
		args = append(args, string(filter.Severity))
	}

	var total int
	countQuery := r.db.Rebind(`SELECT COUNT(*) FROM anomalies` + where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	listQuery := r.db.Rebind(`SELECT * FROM anomalies` + where + ` ORDER BY detected_at DESC LIMIT ? OFFSET ?`)
	listArgs := append(args, pageSize, (page-1)*pageSize)

	var rows []anomalyRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, listArgs...); err != nil {
		return nil, err
	}

	anomalies := make([]*models.Anomaly, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		anomalies = append(anomalies, a)
	}

	return &models.AnomalyPage{
		Anomalies: anomalies,
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
	}, nil
}

// CountByDate returns per-day anomaly counts within the range, for trend charts.
func (r *Repository) CountByDate(ctx context.Context, start, end time.Time) ([]models.AnomalyCountByDate, error) {
	query := r.db.Rebind(`
		SELECT DATE(detected_at) AS date, COUNT(*) AS count
		FROM anomalies
		WHERE detected_at >= ? AND detected_at <= ?
		GROUP BY DATE(detected_at)
		ORDER BY date ASC
	`)
	var counts []models.AnomalyCountByDate
	err := r.db.SelectContext(ctx, &counts, query, start, end)
	return counts, err
}

// SeverityDistribution returns anomaly counts grouped by severity within the range.
func (r *Repository) SeverityDistribution(ctx context.Context, start, end time.Time) ([]models.SeverityCount, error) {
	query := r.db.Rebind(`
		SELECT severity, COUNT(*) AS count
		FROM anomalies
		WHERE detected_at >= ? AND detected_at <= ?
		GROUP BY severity
	`)
	var dist []models.SeverityCount
	err := r.db.SelectContext(ctx, &dist, query, start, end)
	return dist, err
}

// RecordExecution stores one completed execution for history replay.
func (r *Repository) RecordExecution(ctx context.Context, exec *models.Execution) error {
	if exec.ID == "" {
		exec.ID = uuid.New().String()
	}
	query := r.db.Rebind(`
		INSERT INTO executions (id, template_id, duration_seconds, succeeded, completed_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		exec.ID,
		exec.TemplateID,
		exec.DurationSeconds,
		exec.Succeeded,
		exec.CompletedAt,
	)
	return err
}

// GetExecution returns one execution by ID, or ErrNotFound.
func (r *Repository) GetExecution(ctx context.Context, id string) (*models.Execution, error) {
	var exec models.Execution
	query := r.db.Rebind(`SELECT * FROM executions WHERE id = ?`)
	err := r.db.GetContext(ctx, &exec, query, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	return &exec, err
}

// GetRecentExecutions returns the template's most recent executions,
// newest first, up to limit.
func (r *Repository) GetRecentExecutions(ctx context.Context, templateID string, limit int) ([]*models.Execution, error) {
	query := r.db.Rebind(`
		SELECT * FROM executions
		WHERE template_id = ?
		ORDER BY completed_at DESC
		LIMIT ?
	`)
	var execs []*models.Execution
	err := r.db.SelectContext(ctx, &execs, query, templateID, limit)
	return execs, err
}

// ListActiveTemplates returns template IDs with executions since the cutoff.
func (r *Repository) ListActiveTemplates(ctx context.Context, since time.Time) ([]string, error) {
	query := r.db.Rebind(`
		SELECT DISTINCT template_id FROM executions
		WHERE completed_at >= ?
		ORDER BY template_id
	`)
	var templates []string
	err := r.db.SelectContext(ctx, &templates, query, since)
	return templates, err
}

// CreateNotification stores one in-app notification.
func (r *Repository) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`
		INSERT INTO notifications (id, anomaly_id, severity, title, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query, n.ID, n.AnomalyID, string(n.Severity), n.Title, n.Body, n.CreatedAt)
	return err
}

// ListNotifications returns the most recent in-app notifications.
func (r *Repository) ListNotifications(ctx context.Context, limit int) ([]*models.Notification, error) {
	query := r.db.Rebind(`
		SELECT * FROM notifications
		ORDER BY created_at DESC
		LIMIT ?
	`)
	var list []*models.Notification
	err := r.db.SelectContext(ctx, &list, query, limit)
	return list, err
}

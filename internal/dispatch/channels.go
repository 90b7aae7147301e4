package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/qawatch/qawatch-backend/internal/models"
	"github.com/qawatch/qawatch-backend/internal/repository"
)

// Channel delivers one alert. Implementations must be safe for concurrent use.
type Channel interface {
	Name() string
	Send(ctx context.Context, anomaly *models.Anomaly) error
}

// Broadcaster pushes anomalies to connected WebSocket clients.
type Broadcaster interface {
	BroadcastAnomaly(anomaly *models.Anomaly) error
}

// InAppChannel records a notification row and pushes the anomaly to the
// WebSocket feed. This is the always-on channel; webhook and Slack are
// configured additions.
type InAppChannel struct {
	store repository.NotificationStore
	hub   Broadcaster
	log   *slog.Logger
}

func NewInAppChannel(store repository.NotificationStore, hub Broadcaster, log *slog.Logger) *InAppChannel {
	if log == nil {
		log = slog.Default()
	}
	return &InAppChannel{store: store, hub: hub, log: log}
}

func (c *InAppChannel) Name() string { return "in_app" }

func (c *InAppChannel) Send(ctx context.Context, anomaly *models.Anomaly) error {
	n := &models.Notification{
		AnomalyID: anomaly.ID,
		Severity:  anomaly.Severity,
		Title:     notificationTitle(anomaly),
		Body:      anomaly.Description,
	}
	if err := c.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	if c.hub != nil {
		if err := c.hub.BroadcastAnomaly(anomaly); err != nil {
			c.log.Warn("websocket broadcast failed", "anomaly_id", anomaly.ID, "err", err)
		}
	}
	return nil
}

func notificationTitle(a *models.Anomaly) string {
	label := strings.ReplaceAll(string(a.Type), "_", " ")
	return fmt.Sprintf("%s %s detected", strings.ToUpper(string(a.Severity)), label)
}

// WebhookChannel posts the full anomaly JSON to a configured endpoint.
type WebhookChannel struct {
	url    string
	client *http.Client
}

func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, anomaly *models.Anomaly) error {
	return postJSON(ctx, c.client, c.url, anomaly)
}

// SlackChannel posts a Slack-formatted text message to an incoming webhook.
type SlackChannel struct {
	url    string
	client *http.Client
}

func NewSlackChannel(url string) *SlackChannel {
	return &SlackChannel{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Send(ctx context.Context, anomaly *models.Anomaly) error {
	// Slack expects {"text": "..."} with optional markdown.
	text := fmt.Sprintf("*[qawatch/%s]* `%s`\n> %s", anomaly.Severity, anomaly.Type, anomaly.Description)
	return postJSON(ctx, c.client, c.url, map[string]string{"text": text})
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "QAWatch-Dispatcher/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from webhook", resp.StatusCode)
	}
	return nil
}

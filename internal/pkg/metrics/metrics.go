// Package metrics provides Prometheus metrics for the qawatch backend
// (RED + detection pipeline + dispatch + WebSocket). Scrapeable at /metrics;
// runbooks and dashboards can rely on these names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "qawatch"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// PipelineRunsTotal counts detection pipeline runs by terminal state
	// (done, skipped, failed).
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total number of detection pipeline runs by terminal state.",
		},
		[]string{"state"},
	)

	// PipelineQueueDroppedTotal counts executions dropped because the
	// detection queue was full.
	PipelineQueueDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_queue_dropped_total",
			Help:      "Total number of executions dropped due to a full detection queue.",
		},
	)

	// PipelineDurationSeconds is end-to-end pipeline latency per run.
	PipelineDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Detection pipeline duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10),
		},
	)

	// AnomaliesDetectedTotal counts detected anomalies by type and severity.
	AnomaliesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_detected_total",
			Help:      "Total number of anomalies detected by type and severity.",
		},
		[]string{"type", "severity"},
	)

	// DispatchSuppressedTotal counts alerts suppressed by the dispatcher,
	// by reason (severity, rate_limit).
	DispatchSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_suppressed_total",
			Help:      "Total number of alerts suppressed by the dispatcher, by reason.",
		},
		[]string{"reason"},
	)

	// DispatchChannelFailuresTotal counts delivery failures per channel.
	DispatchChannelFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_channel_failures_total",
			Help:      "Total number of alert delivery failures by channel.",
		},
		[]string{"channel"},
	)

	// WebSocketConnectionsActive is current number of WebSocket clients.
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active WebSocket connections.",
		},
	)
)

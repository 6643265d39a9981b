// Package metrics declares the Prometheus collectors shared by the portal services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"service", "method", "route", "status_code"},
	)

	// ProgressSyncs counts sync writes by outcome:
	// applied, conflict_ignored, invalid, store_error.
	ProgressSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_sync_total",
			Help: "Progress sync writes by result",
		},
		[]string{"result", "transport"},
	)

	ProgressCompletions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "progress_completions_total",
			Help: "Content items transitioned to completed",
		},
	)

	HeartbeatSamples = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "progress_heartbeat_samples_total",
			Help: "Heartbeat samples appended",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "portal_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioning_webhook_events_total",
			Help: "CRM webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// AnalyticsEvents counts analytics envelopes consumed by the analytics service.
	AnalyticsEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_total",
			Help: "Analytics events consumed by event name",
		},
		[]string{"event"},
	)

	LessonViews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_lesson_views_total",
			Help: "Signed playback requests by content kind",
		},
		[]string{"kind"},
	)
)

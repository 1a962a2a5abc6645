package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequestsTotal counts Stripe webhook requests by event type and HTTP status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "embed",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "embed",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook verification and enqueue duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// SyncJobsTotal counts finished sync job attempts by kind and outcome (done/retry/failed).
	SyncJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "embed",
		Subsystem: "billing",
		Name:      "sync_jobs_total",
		Help:      "Sync job attempts by kind and outcome.",
	}, []string{"kind", "outcome"})

	ReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "embed",
		Subsystem: "billing",
		Name:      "reconcile_total",
		Help:      "Subscription reconciliations by outcome.",
	}, []string{"outcome"})

	// EmbedDecisionsTotal counts rendered embed views by state.
	EmbedDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "embed",
		Subsystem: "gate",
		Name:      "decisions_total",
		Help:      "Embed gate decisions by rendered state.",
	}, []string{"state"})
)

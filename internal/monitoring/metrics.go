// Package monitoring exposes Prometheus metrics for classification, the
// remote-model breaker, embeddings and scoring, plus a background checker
// that mirrors persisted breaker state into gauges.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClassificationsTotal counts labels produced, by space and source tier.
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_audit_classifications_total",
			Help: "Labels produced by the classifier, by label space and source tier.",
		},
		[]string{"space", "tier"},
	)

	// ClassificationCacheTotal counts classification cache lookups.
	ClassificationCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_audit_classification_cache_total",
			Help: "Classification cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)

	// ClassifyDuration tracks end-to-end classification latency.
	ClassifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "site_audit_classify_duration_seconds",
			Help:    "Duration of classification requests.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	// EmbeddingCallsTotal counts embedding provider calls.
	EmbeddingCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_audit_embedding_calls_total",
			Help: "Embedding provider calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	// RemoteCallsTotal counts remote-model blend attempts.
	RemoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_audit_remote_calls_total",
			Help: "Remote-model second opinions by outcome.",
		},
		[]string{"outcome"},
	)

	// BreakerState is 0 closed, 1 half open, 2 open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "site_audit_breaker_state",
			Help: "Remote-model circuit breaker state (0 closed, 1 half open, 2 open).",
		},
		[]string{"key"},
	)

	// BreakerErrorRate is the error rate in the current window.
	BreakerErrorRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "site_audit_breaker_error_rate",
			Help: "Remote-model error rate in the current breaker window.",
		},
		[]string{"key"},
	)

	// ScoringPassesTotal counts scoring passes.
	ScoringPassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "site_audit_scoring_passes_total",
			Help: "Pillar scoring passes completed.",
		},
	)

	// PillarScore records pillar percentages.
	PillarScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "site_audit_pillar_score",
			Help:    "Pillar percentages produced by scoring passes.",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"pillar"},
	)

	// GatesTriggeredTotal counts triggered gates.
	GatesTriggeredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_audit_gates_triggered_total",
			Help: "Scoring gates triggered, by gate.",
		},
		[]string{"gate"},
	)

	// HTTPRequestsTotal counts API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_audit_http_requests_total",
			Help: "API requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks API latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "site_audit_http_request_duration_seconds",
			Help:    "Duration of API requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AlertsTotal counts raised alerts by type and delivery outcome.
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_audit_alerts_total",
			Help: "Health alerts by type and outcome (sent, failed, logged, suppressed).",
		},
		[]string{"type", "outcome"},
	)
)

// ObserveClassify records one classification's latency.
func ObserveClassify(start time.Time) {
	ClassifyDuration.Observe(time.Since(start).Seconds())
}

// BreakerStateValue maps a breaker state name to its gauge value.
func BreakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half_open":
		return 1
	default:
		return 0
	}
}

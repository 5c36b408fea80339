// Package observability holds the Prometheus metrics for the ledger and the
// reward engines. Metrics are registered on the default registry via promauto
// and exposed by the API server at /metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "arcana"

// ─── Reading Metrics ────────────────────────────────────────────────────────

// ReadingsCreated counts committed readings by spread and payment source.
var ReadingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "readings",
	Name:      "created_total",
	Help:      "Total committed readings by spread and payment source (free|credits).",
}, []string{"spread", "source"})

// ReadingsRejected counts readings refused before any mutation.
var ReadingsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "readings",
	Name:      "rejected_total",
	Help:      "Total reading requests rejected by reason.",
}, []string{"reason"})

// ReadingDuration tracks end-to-end createReading latency.
var ReadingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "readings",
	Name:      "duration_seconds",
	Help:      "createReading latency including interpretation and reward cascades.",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
})

// InterpretationFallbacks counts readings that used the deterministic fallback.
var InterpretationFallbacks = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "interpretation",
	Name:      "fallbacks_total",
	Help:      "Total readings whose interpretation generator failed and fell back.",
})

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// CreditsMoved sums credit amounts by ledger entry kind.
var CreditsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "credits_total",
	Help:      "Absolute credits moved through the ledger by entry kind.",
}, []string{"kind"})

// ─── Reward Metrics ─────────────────────────────────────────────────────────

// RewardsGranted counts one-time rewards by engine.
var RewardsGranted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "rewards",
	Name:      "granted_total",
	Help:      "Total rewards granted by engine (streak|achievement|challenge|golden).",
}, []string{"engine"})

// RewardCredits sums bonus credits paid by engine.
var RewardCredits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "rewards",
	Name:      "credits_total",
	Help:      "Total bonus credits paid by engine.",
}, []string{"engine"})

// CascadeFailures counts reward engines that failed after a committed reading.
var CascadeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "rewards",
	Name:      "cascade_failures_total",
	Help:      "Total swallowed reward cascade failures by engine.",
}, []string{"engine"})

// ─── Billing Metrics ────────────────────────────────────────────────────────

// WebhookEvents counts provider events by type and result (applied|duplicate|ignored|error).
var WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "billing",
	Name:      "webhook_events_total",
	Help:      "Total payment provider events by type and result.",
}, []string{"type", "result"})

// ─── Helpers ────────────────────────────────────────────────────────────────

// ObserveReading records a reading's latency since start.
func ObserveReading(start time.Time) {
	ReadingDuration.Observe(time.Since(start).Seconds())
}

// RecordReward counts a granted reward and its credits.
func RecordReward(engine string, credits int64) {
	RewardsGranted.WithLabelValues(engine).Inc()
	if credits > 0 {
		RewardCredits.WithLabelValues(engine).Add(float64(credits))
		CreditsMoved.WithLabelValues("BONUS").Add(float64(credits))
	}
}

// Package metrics exposes the Prometheus instrumentation for the
// aggregation worker and the batch reconciler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SnapshotsProcessed counts handled snapshot envelopes by entity and action.
	SnapshotsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reporting",
		Name:      "snapshots_processed_total",
		Help:      "Snapshot envelopes processed, by entity kind and action.",
	}, []string{"entity", "action"})

	// SnapshotsFailed counts envelopes whose handler returned an error.
	SnapshotsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reporting",
		Name:      "snapshots_failed_total",
		Help:      "Snapshot envelopes that failed processing, by entity kind and action.",
	}, []string{"entity", "action"})

	// DedupSkips counts growth events skipped because the timeframe already
	// counted the employee for that event kind.
	DedupSkips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reporting",
		Name:      "growth_dedup_skips_total",
		Help:      "Staff-growth increments skipped by the deduplication guard.",
	})

	// ReconcileRuns counts batch reconciler runs by outcome.
	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reporting",
		Name:      "reconcile_runs_total",
		Help:      "Batch reconciler runs, by outcome.",
	}, []string{"outcome"})

	// ReconcileDuration observes how long a full reconciler run takes.
	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reporting",
		Name:      "reconcile_duration_seconds",
		Help:      "Duration of batch reconciler runs.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

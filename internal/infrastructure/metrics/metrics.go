package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ledger engine.
type Metrics struct {
	// Recorder metrics
	EntriesRecorded *prometheus.CounterVec
	RecordErrors    *prometheus.CounterVec

	// Recompute metrics
	RecomputeRuns     prometheus.Counter
	RecomputeDuration prometheus.Histogram
	BalanceRewrites   prometheus.Counter

	// Snapshot metrics
	SnapshotUpserts   prometheus.Counter
	SnapshotCacheHits prometheus.Counter

	// Reconciliation metrics
	UnmatchedTransfers  prometheus.Gauge
	ConsistencyFailures prometheus.Counter
}

// New creates and registers all metrics against the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EntriesRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashtrail_ledger_entries_recorded_total",
				Help: "Total number of ledger entries recorded by source type",
			},
			[]string{"source_type"},
		),
		RecordErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashtrail_ledger_record_errors_total",
				Help: "Total number of failed record operations by reason",
			},
			[]string{"reason"},
		),
		RecomputeRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashtrail_balance_recompute_runs_total",
			Help: "Total number of running balance recompute passes",
		}),
		RecomputeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cashtrail_balance_recompute_duration_seconds",
			Help:    "Duration of running balance recompute passes",
			Buckets: prometheus.DefBuckets,
		}),
		BalanceRewrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashtrail_balance_rewrites_total",
			Help: "Total number of balance_after values rewritten",
		}),
		SnapshotUpserts: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashtrail_daily_snapshot_upserts_total",
			Help: "Total number of daily snapshot rows upserted",
		}),
		SnapshotCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashtrail_daily_snapshot_cache_hits_total",
			Help: "Total number of daily snapshot reads served from cache",
		}),
		UnmatchedTransfers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cashtrail_unmatched_transfer_legs",
			Help: "One-sided transfer legs found by the last reconciliation run",
		}),
		ConsistencyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashtrail_ledger_consistency_failures_total",
			Help: "Total number of running-sum consistency violations detected",
		}),
	}
}

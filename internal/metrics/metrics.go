// Package metrics exposes prometheus instrumentation for the import
// pipelines. Collectors are registered once on the default registry and
// served on /metrics by the HTTP router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRuns counts executions by pipeline and outcome.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dogspots",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Pipeline executions by pipeline id and outcome.",
	}, []string{"pipeline", "outcome"})

	// RunDuration observes wall-clock execution time per pipeline.
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dogspots",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Pipeline execution duration.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"pipeline"})

	// RecordsPersisted counts records written to Firestore per pipeline.
	RecordsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dogspots",
		Subsystem: "pipeline",
		Name:      "records_persisted_total",
		Help:      "Records upserted into Firestore.",
	}, []string{"pipeline"})

	// SourceFailures counts acquisition failures per provider.
	SourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dogspots",
		Subsystem: "source",
		Name:      "failures_total",
		Help:      "Source acquisition failures by provider.",
	}, []string{"provider"})

	// QuotaUsage tracks the current daily quota usage fraction per provider.
	QuotaUsage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dogspots",
		Subsystem: "source",
		Name:      "quota_usage_ratio",
		Help:      "Fraction of the daily quota consumed, per provider.",
	}, []string{"provider"})

	// ReliabilityScore tracks the blended per-source health score.
	ReliabilityScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dogspots",
		Subsystem: "source",
		Name:      "reliability_score",
		Help:      "Blended source reliability score (0-100).",
	}, []string{"provider"})
)

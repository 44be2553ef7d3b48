// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	RecordsValidated  prometheus.Counter
	RecordsRejected   prometheus.Counter
	SourcesDegraded   prometheus.Counter
	ConflictsCreated  prometheus.Counter
	ConflictsUpdated  prometheus.Counter
	LaunchesUpserted  prometheus.Counter
	LeaseAcquisitions *prometheus.CounterVec
}

// New creates the pipeline collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webspace",
			Name:      "runs_total",
			Help:      "Pipeline runs by final state.",
		}, []string{"state"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "webspace",
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		RecordsValidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webspace",
			Name:      "records_validated_total",
			Help:      "Raw records that passed validation.",
		}),
		RecordsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webspace",
			Name:      "records_rejected_total",
			Help:      "Raw records rejected by validation.",
		}),
		SourcesDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webspace",
			Name:      "sources_degraded_total",
			Help:      "Sources excluded from a run after exhausting retries.",
		}),
		ConflictsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webspace",
			Name:      "conflicts_created_total",
			Help:      "New field conflicts recorded.",
		}),
		ConflictsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webspace",
			Name:      "conflicts_updated_total",
			Help:      "Open field conflicts refreshed with new values.",
		}),
		LaunchesUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webspace",
			Name:      "launches_upserted_total",
			Help:      "Canonical launch records created or updated.",
		}),
		LeaseAcquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webspace",
			Name:      "lease_acquisitions_total",
			Help:      "Run lease acquisition attempts by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.RunsTotal, m.RunDuration,
		m.RecordsValidated, m.RecordsRejected,
		m.SourcesDegraded,
		m.ConflictsCreated, m.ConflictsUpdated,
		m.LaunchesUpserted, m.LeaseAcquisitions,
	)
	return m
}

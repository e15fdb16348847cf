// Package metrics collects the process-wide Prometheus counters and
// histograms the daemon exposes at /metrics: ingest throughput,
// guardrail tick duration, and retention rows purged.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector this package registers, kept separate
// from prometheus.DefaultRegisterer so tests can build their own
// throwaway registry without touching global state.
var Registry = prometheus.NewRegistry()

var (
	IngestEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentlens",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Total number of events accepted by the ingest gateway.",
		},
		[]string{"event_type"},
	)

	IngestBatchRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentlens",
			Subsystem: "ingest",
			Name:      "batches_rejected_total",
			Help:      "Total number of rejected ingest batches, by reason.",
		},
		[]string{"reason"},
	)

	GuardrailTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "agentlens",
			Subsystem: "guardrail",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one guardrail engine evaluation tick across every tenant.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
	)

	GuardrailTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentlens",
			Subsystem: "guardrail",
			Name:      "triggers_total",
			Help:      "Total number of guardrail rule triggers, by action type.",
		},
		[]string{"action_type"},
	)

	RetentionRowsPurged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentlens",
			Subsystem: "retention",
			Name:      "rows_purged_total",
			Help:      "Total number of event rows deleted by the retention purger.",
		},
		[]string{"tenant_id"},
	)
)

func init() {
	Registry.MustRegister(IngestEventsTotal, IngestBatchRejected, GuardrailTickDuration, GuardrailTriggersTotal, RetentionRowsPurged)
}

// Handler exposes Registry for mounting at /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adslot_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adslot_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// slot evaluations labelled by outcome reason
	SlotDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adslot_decisions_total",
			Help: "Total ad slot evaluations by reason",
		},
		[]string{"reason"},
	)

	// GPT script tags inserted into rendered pages
	ScriptInsertions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "adslot_gpt_script_insertions_total",
			Help: "Total GPT script tags inserted into pages",
		},
	)

	// eligible slots per rendered page
	SlotsPerPage = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adslot_eligible_slots_per_page",
			Help:    "Histogram of eligible ad slots per rendered page",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		},
	)

	// failures persisting decisions, labelled by sink (redis, clickhouse)
	DecisionPersistErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adslot_decision_persist_errors_total",
			Help: "Total errors persisting slot decisions",
		},
		[]string{"sink"},
	)

	// placement presets currently loaded
	PlacementsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "adslot_placements_loaded",
			Help: "Number of placement presets in memory",
		},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		SlotDecisions,
		ScriptInsertions,
		SlotsPerPage,
		DecisionPersistErrors,
		PlacementsLoaded,
	)
}

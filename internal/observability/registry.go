package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// so handlers and the renderer never touch the Prometheus globals directly.
type MetricsRegistry interface {
	// HTTP Request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Slot metrics
	IncrementSlotDecisions(reason string)
	IncrementScriptInsertions()
	RecordEligibleSlots(count int)

	// Persistence metrics
	IncrementDecisionPersistErrors(sink string)
	SetPlacementsLoaded(count int)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

// HTTP Request metrics
func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// Slot metrics
func (r *PrometheusRegistry) IncrementSlotDecisions(reason string) {
	SlotDecisions.WithLabelValues(reason).Inc()
}

func (r *PrometheusRegistry) IncrementScriptInsertions() {
	ScriptInsertions.Inc()
}

func (r *PrometheusRegistry) RecordEligibleSlots(count int) {
	SlotsPerPage.Observe(float64(count))
}

// Persistence metrics
func (r *PrometheusRegistry) IncrementDecisionPersistErrors(sink string) {
	DecisionPersistErrors.WithLabelValues(sink).Inc()
}

func (r *PrometheusRegistry) SetPlacementsLoaded(count int) {
	PlacementsLoaded.Set(float64(count))
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementSlotDecisions(reason string)                                 {}
func (r *NoOpRegistry) IncrementScriptInsertions()                                           {}
func (r *NoOpRegistry) RecordEligibleSlots(count int)                                        {}
func (r *NoOpRegistry) IncrementDecisionPersistErrors(sink string)                           {}
func (r *NoOpRegistry) SetPlacementsLoaded(count int)                                        {}

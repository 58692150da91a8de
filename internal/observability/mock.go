package observability

import (
	"sync"
	"time"
)

// MockMetricsRegistry is a MetricsRegistry for tests that remembers what was
// recorded.
type MockMetricsRegistry struct {
	mu               sync.Mutex
	Requests         map[string]int // "endpoint method status" -> count
	Decisions        map[string]int // reason -> count
	ScriptInserts    int
	EligiblePerPage  []int
	PersistErrors    map[string]int // sink -> count
	PlacementsLoaded int
}

// NewMockMetricsRegistry creates an empty MockMetricsRegistry.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{
		Requests:      make(map[string]int),
		Decisions:     make(map[string]int),
		PersistErrors: make(map[string]int),
	}
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests[endpoint+" "+method+" "+status]++
}

func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}

func (m *MockMetricsRegistry) IncrementSlotDecisions(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Decisions[reason]++
}

func (m *MockMetricsRegistry) IncrementScriptInsertions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScriptInserts++
}

func (m *MockMetricsRegistry) RecordEligibleSlots(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EligiblePerPage = append(m.EligiblePerPage, count)
}

func (m *MockMetricsRegistry) IncrementDecisionPersistErrors(sink string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersistErrors[sink]++
}

func (m *MockMetricsRegistry) SetPlacementsLoaded(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlacementsLoaded = count
}

// DecisionCount returns how many decisions were recorded for reason.
func (m *MockMetricsRegistry) DecisionCount(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Decisions[reason]
}

// PersistErrorCount returns how many persist failures were recorded for sink.
func (m *MockMetricsRegistry) PersistErrorCount(sink string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PersistErrors[sink]
}

// Loaded returns the last placement gauge value.
func (m *MockMetricsRegistry) Loaded() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PlacementsLoaded
}

// RequestCount returns the count for one endpoint, method and status.
func (m *MockMetricsRegistry) RequestCount(endpoint, method, status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Requests[endpoint+" "+method+" "+status]
}

package analytics

import (
	"context"
	"sync"
)

var _ DecisionLog = (*MockAnalytics)(nil)

// MockAnalytics keeps recorded pages in memory for tests.
type MockAnalytics struct {
	mu      sync.Mutex
	Records []PageRecord
	// Err, when set, is returned from every call.
	Err error
}

// NewMockAnalytics creates a new mock analytics instance
func NewMockAnalytics() *MockAnalytics {
	return &MockAnalytics{}
}

// RecordDecisions stores rec unless Err is set.
func (m *MockAnalytics) RecordDecisions(_ context.Context, rec PageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Records = append(m.Records, rec)
	return nil
}

// GetDecisionsByRequestID flattens the recorded pages with request id id.
func (m *MockAnalytics) GetDecisionsByRequestID(_ context.Context, id string) ([]DecisionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []DecisionRecord
	for _, rec := range m.Records {
		if rec.RequestID != id {
			continue
		}
		for _, d := range rec.Decisions {
			out = append(out, DecisionRecord{
				Timestamp:      rec.Time,
				RequestID:      rec.RequestID,
				SlotID:         d.SlotID,
				AdType:         d.AdType,
				Placement:      d.Placement,
				Eligible:       d.Eligible,
				Reason:         string(d.Reason),
				Sizes:          d.Sizes.String(),
				ViewportWidth:  int32(rec.Environment.ViewportWidth),
				ViewportHeight: int32(rec.Environment.ViewportHeight),
				Device:         rec.Device,
				Country:        rec.Country,
			})
		}
	}
	return out, nil
}

// Pages returns a copy of the recorded pages.
func (m *MockAnalytics) Pages() []PageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PageRecord(nil), m.Records...)
}

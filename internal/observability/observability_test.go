package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		env, level string
		want       string
	}{
		{"", "", "info"},
		{"dev", "", "debug"},
		{"production", "warn", "warn"},
		{"dev", "ERROR", "error"},
		{"", "verbose", "info"},
	}
	for _, tt := range tests {
		t.Setenv("ENV", tt.env)
		t.Setenv("LOG_LEVEL", tt.level)
		assert.Equal(t, tt.want, getLogLevel().String(), "ENV=%q LOG_LEVEL=%q", tt.env, tt.level)
	}
}

func TestShouldSample(t *testing.T) {
	assert.True(t, ShouldSample(1))
	assert.True(t, ShouldSample(2))
	assert.False(t, ShouldSample(0))
	assert.False(t, ShouldSample(-1))
}

func TestGetSamplingRate(t *testing.T) {
	t.Setenv("ENV", "dev")
	assert.Equal(t, 1.0, GetSamplingRate())
	t.Setenv("ENV", "staging")
	assert.Equal(t, 0.5, GetSamplingRate())
	t.Setenv("ENV", "")
	assert.Equal(t, 0.1, GetSamplingRate())
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), samplerFor(0.25).Description())
}

func TestInitLoggerWithLevel(t *testing.T) {
	logger, err := InitLoggerWithLevel(zap.WarnLevel, "adslotgate-test", []string{"stderr"})
	assert.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
}

func TestMockMetricsRegistry(t *testing.T) {
	m := NewMockMetricsRegistry()
	m.IncrementSlotDecisions("eligible")
	m.IncrementSlotDecisions("eligible")
	m.IncrementDecisionPersistErrors("redis")
	m.SetPlacementsLoaded(3)
	m.IncrementRequests("/render", "POST", "200")

	assert.Equal(t, 2, m.DecisionCount("eligible"))
	assert.Equal(t, 0, m.DecisionCount("opt_out"))
	assert.Equal(t, 1, m.PersistErrorCount("redis"))
	assert.Equal(t, 3, m.Loaded())
	assert.Equal(t, 1, m.RequestCount("/render", "POST", "200"))
}

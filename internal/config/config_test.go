package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "ELEMENT_NAMES", "AD_TYPE", "POSTGRES_DSN", "STATS_TTL", "MAX_BODY_BYTES"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "8790", cfg.Port)
	assert.Equal(t, []string{"as24-ad-slot"}, cfg.ElementNames)
	assert.Equal(t, "doubleclick", cfg.AdType)
	assert.Equal(t, "ads-off", cfg.OptOutFragment)
	assert.Equal(t, "User", cfg.UserCookie)
	assert.Equal(t, "D", cfg.ExcludedUserType)
	assert.Equal(t, "", cfg.PostgresDSN)
	assert.Equal(t, 48*time.Hour, cfg.StatsTTL)
	assert.Equal(t, int64(2<<20), cfg.MaxBodyBytes)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ELEMENT_NAMES", " as24-ad-slot, gam-ad-slot ,,")
	t.Setenv("READ_TIMEOUT", "7")
	t.Setenv("WRITE_TIMEOUT", "250ms")
	t.Setenv("REQUEST_TARGETING_ENABLED", "false")
	t.Setenv("TRACING_SAMPLE_RATE", "0.25")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"as24-ad-slot", "gam-ad-slot"}, cfg.ElementNames)
	assert.Equal(t, 7*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.WriteTimeout)
	assert.False(t, cfg.RequestTargetingEnabled)
	assert.Equal(t, 0.25, cfg.TracingSampleRate)
	assert.Equal(t, 10, cfg.DBMaxOpenConns)
}

func TestEnvList(t *testing.T) {
	t.Setenv("LIST", " , ")
	assert.Equal(t, []string{"x"}, envList("LIST", []string{"x"}))
}

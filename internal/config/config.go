package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
	ServiceName  string
	DebugTrace   bool

	// Slot gating
	ElementNames     []string
	AdType           string
	GPTScriptURL     string
	OptOutFragment   string
	UserCookie       string
	ExcludedUserType string

	// Request-derived targeting (device, country)
	RequestTargetingEnabled bool
	GeoIPDB                 string

	// Backends; an empty address or DSN disables the backend
	RedisAddr      string
	StatsTTL       time.Duration
	PostgresDSN    string
	ClickHouseDSN  string
	ReloadInterval time.Duration

	// Database connection pooling configuration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	CHMaxOpenConns    int

	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8790")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 10*time.Second)
	cfg.MaxBodyBytes = int64(envInt("MAX_BODY_BYTES", 2<<20))
	cfg.ServiceName = getenv("SERVICE_NAME", "adslotgate")
	cfg.DebugTrace = envBool("DEBUG_TRACE", false)

	cfg.ElementNames = envList("ELEMENT_NAMES", []string{"as24-ad-slot"})
	cfg.AdType = getenv("AD_TYPE", "doubleclick")
	cfg.GPTScriptURL = getenv("GPT_SCRIPT_URL", "https://www.googletagservices.com/tag/js/gpt.js")
	cfg.OptOutFragment = getenv("OPT_OUT_FRAGMENT", "ads-off")
	cfg.UserCookie = getenv("USER_COOKIE", "User")
	cfg.ExcludedUserType = getenv("EXCLUDED_CUSTOMER_TYPE", "D")

	cfg.RequestTargetingEnabled = envBool("REQUEST_TARGETING_ENABLED", true)
	cfg.GeoIPDB = getenv("GEOIP_DB", "")

	cfg.RedisAddr = getenv("REDIS_ADDR", "")
	cfg.StatsTTL = envDuration("STATS_TTL", 48*time.Hour)
	cfg.PostgresDSN = getenv("POSTGRES_DSN", "")
	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "")
	// default to 30 seconds between placement reloads
	cfg.ReloadInterval = envDuration("RELOAD_INTERVAL", 30*time.Second)

	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.DBConnMaxIdleTime = envDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute)
	// ClickHouse sees one insert batch per rendered page
	cfg.CHMaxOpenConns = envInt("CH_MAX_OPEN_CONNS", 25)

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	return cfg
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envList parses a comma separated list. Empty entries are dropped; an
// unset or empty variable yields def.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse lists the state of every configured backend.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds ok when every configured backend answers a ping.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "health"
	const method = "GET"

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: map[string]string{}}
	check := func(name string, p pinger) {
		if err := p.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			return
		}
		resp.Checks[name] = "ok"
	}
	if s.Stats != nil {
		check("redis", s.Stats)
	}
	if p, ok := s.PG.(pinger); ok && s.PG != nil {
		check("postgres", p)
	}
	if p, ok := s.Analytics.(pinger); ok && s.Analytics != nil {
		check("clickhouse", p)
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	s.observe(endpoint, method, status, start)
	writeJSON(w, status, resp)
}

package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/adslotgate/internal/middleware"
)

// ReloadHandler reloads placements from Postgres.
func (s *Server) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "reload"
	const method = "POST"

	if err := s.Reload(r.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNoPlacementSource) {
			status = http.StatusServiceUnavailable
		}
		middleware.LoggerFromRequest(r, s.Logger).Error("reload failed", zap.Error(err))
		s.observe(endpoint, method, status, start)
		writeError(w, status, "reload failed")
		return
	}

	s.observe(endpoint, method, http.StatusNoContent, start)
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/adslotgate/internal/analytics"
	"github.com/patrickwarner/adslotgate/internal/middleware"
)

// SlotStatsResponse is the body of GET /stats/slots.
type SlotStatsResponse struct {
	SlotID string           `json:"slot_id"`
	Date   string           `json:"date"`
	Counts map[string]int64 `json:"counts"`
}

// SlotStatsHandler handles GET /stats/slots?slot_id=&date=YYYY-MM-DD.
// date defaults to today (UTC).
func (s *Server) SlotStatsHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)
	start := time.Now()
	const endpoint = "slot_stats"
	const method = "GET"

	if s.Stats == nil {
		s.observe(endpoint, method, http.StatusServiceUnavailable, start)
		writeError(w, http.StatusServiceUnavailable, "stats unavailable")
		return
	}

	q := r.URL.Query()
	slotID := q.Get("slot_id")
	if slotID == "" {
		s.observe(endpoint, method, http.StatusBadRequest, start)
		writeError(w, http.StatusBadRequest, "slot_id required")
		return
	}
	day := time.Now().UTC()
	if v := q.Get("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			s.observe(endpoint, method, http.StatusBadRequest, start)
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = d
	}

	counts, err := s.Stats.SlotStats(r.Context(), slotID, day)
	if err != nil {
		logger.Error("read slot stats", zap.Error(err), zap.String("slot_id", slotID))
		s.observe(endpoint, method, http.StatusInternalServerError, start)
		writeError(w, http.StatusInternalServerError, "stats lookup failed")
		return
	}

	s.observe(endpoint, method, http.StatusOK, start)
	writeJSON(w, http.StatusOK, SlotStatsResponse{SlotID: slotID, Date: day.Format("2006-01-02"), Counts: counts})
}

// DecisionsResponse is the body of GET /api/decisions/{request_id}.
type DecisionsResponse struct {
	RequestID string                     `json:"request_id"`
	Decisions []analytics.DecisionRecord `json:"decisions"`
}

// DecisionsHandler returns the logged decisions of one rendered page.
func (s *Server) DecisionsHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)
	start := time.Now()
	const endpoint = "decisions"
	const method = "GET"

	id := mux.Vars(r)["request_id"]
	if s.Analytics == nil {
		s.observe(endpoint, method, http.StatusServiceUnavailable, start)
		writeError(w, http.StatusServiceUnavailable, "analytics unavailable")
		return
	}

	rows, err := s.Analytics.GetDecisionsByRequestID(r.Context(), id)
	if err != nil {
		if errors.Is(err, analytics.ErrUnavailable) {
			s.observe(endpoint, method, http.StatusServiceUnavailable, start)
			writeError(w, http.StatusServiceUnavailable, "analytics unavailable")
			return
		}
		logger.Error("query decisions", zap.Error(err), zap.String("request_id", id))
		s.observe(endpoint, method, http.StatusInternalServerError, start)
		writeError(w, http.StatusInternalServerError, "decision lookup failed")
		return
	}
	if len(rows) == 0 {
		s.observe(endpoint, method, http.StatusNotFound, start)
		writeError(w, http.StatusNotFound, "no decisions for request")
		return
	}

	s.observe(endpoint, method, http.StatusOK, start)
	writeJSON(w, http.StatusOK, DecisionsResponse{RequestID: id, Decisions: rows})
}

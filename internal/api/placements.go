package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/adslotgate/internal/middleware"
	"github.com/patrickwarner/adslotgate/internal/models"
)

func (s *Server) ListPlacements(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	pls := s.Placements.GetAllPlacements()
	if pls == nil {
		pls = []models.Placement{}
	}
	s.observe("placements", "GET", http.StatusOK, start)
	writeJSON(w, http.StatusOK, pls)
}

func (s *Server) GetPlacement(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	p := s.Placements.GetPlacement(mux.Vars(r)["id"])
	if p == nil {
		s.observe("placements", "GET", http.StatusNotFound, start)
		writeError(w, http.StatusNotFound, "placement not found")
		return
	}
	s.observe("placements", "GET", http.StatusOK, start)
	writeJSON(w, http.StatusOK, p)
}

// CreatePlacement handles POST /api/placements. An existing id is replaced.
func (s *Server) CreatePlacement(w http.ResponseWriter, r *http.Request) {
	s.savePlacement(w, r, "", http.StatusCreated)
}

// UpdatePlacement handles PUT /api/placements/{id}; the path id wins over
// the body.
func (s *Server) UpdatePlacement(w http.ResponseWriter, r *http.Request) {
	s.savePlacement(w, r, mux.Vars(r)["id"], http.StatusOK)
}

func (s *Server) savePlacement(w http.ResponseWriter, r *http.Request, id string, status int) {
	logger := middleware.LoggerFromRequest(r, s.Logger)
	start := time.Now()
	const endpoint = "placements"
	method := r.Method

	body, err := readBody(w, r, s.Config.MaxBodyBytes)
	if err != nil {
		code := bodyErrorStatus(err)
		s.observe(endpoint, method, code, start)
		writeError(w, code, err.Error())
		return
	}
	var p models.Placement
	if err := json.Unmarshal(body, &p); err != nil {
		s.observe(endpoint, method, http.StatusBadRequest, start)
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if id != "" {
		p.ID = id
	}
	if err := p.Validate(); err != nil {
		s.observe(endpoint, method, http.StatusBadRequest, start)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Postgres first so the stored row, with its timestamp, is what we serve.
	if s.PG != nil {
		stored, err := s.PG.UpsertPlacement(r.Context(), p)
		if err != nil {
			logger.Error("upsert placement to postgres", zap.Error(err), zap.String("placement", p.ID))
			s.observe(endpoint, method, http.StatusInternalServerError, start)
			writeError(w, http.StatusInternalServerError, "failed to persist placement")
			return
		}
		p = stored
	} else {
		p.UpdatedAt = time.Now().UTC()
	}

	if err := s.Placements.UpsertPlacement(p); err != nil {
		logger.Error("upsert placement to store", zap.Error(err))
		s.observe(endpoint, method, http.StatusInternalServerError, start)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.Metrics.SetPlacementsLoaded(len(s.Placements.GetAllPlacements()))
	s.notifyUpdate(r.Context(), "upsert", p.ID)

	s.observe(endpoint, method, status, start)
	writeJSON(w, status, p)
}

func (s *Server) DeletePlacement(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)
	start := time.Now()
	const endpoint = "placements"
	const method = "DELETE"
	id := mux.Vars(r)["id"]

	found := false
	if s.PG != nil {
		err := s.PG.DeletePlacement(r.Context(), id)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, models.ErrPlacementNotFound):
			logger.Error("delete placement from postgres", zap.Error(err), zap.String("placement", id))
			s.observe(endpoint, method, http.StatusInternalServerError, start)
			writeError(w, http.StatusInternalServerError, "failed to delete placement")
			return
		}
	}
	if err := s.Placements.DeletePlacement(id); err == nil {
		found = true
	} else if !errors.Is(err, models.ErrPlacementNotFound) {
		logger.Error("delete placement from store", zap.Error(err))
		s.observe(endpoint, method, http.StatusInternalServerError, start)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !found {
		s.observe(endpoint, method, http.StatusNotFound, start)
		writeError(w, http.StatusNotFound, "placement not found")
		return
	}
	s.Metrics.SetPlacementsLoaded(len(s.Placements.GetAllPlacements()))
	s.notifyUpdate(r.Context(), "delete", id)

	s.observe(endpoint, method, http.StatusNoContent, start)
	w.WriteHeader(http.StatusNoContent)
}

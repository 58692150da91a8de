package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/adslotgate/internal/middleware"
	"github.com/patrickwarner/adslotgate/internal/slot"
)

// EvaluateRequest is the body of POST /evaluate. Attributes are the raw
// element attributes; an absent key means the attribute is absent.
type EvaluateRequest struct {
	Attributes  map[string]string `json:"attributes"`
	Environment slot.Environment  `json:"environment"`
}

// Evaluate runs the gate for one declaration, resolving its placement
// preset first.
func (s *Server) Evaluate(req EvaluateRequest) slot.Result {
	d := slot.DeclarationFromMap(req.Attributes)
	if d.Placement != "" && s.Placements != nil {
		if p := s.Placements.GetPlacement(d.Placement); p != nil {
			d = p.Fill(d)
		}
	}
	return s.Gate.Evaluate(d, req.Environment)
}

// EvaluateHandler handles POST /evaluate.
func (s *Server) EvaluateHandler(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "EvaluateHandler",
		trace.WithAttributes(
			attribute.String("http.method", "POST"),
			attribute.String("http.route", "/evaluate"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)
	start := time.Now()
	const endpoint = "evaluate"
	const method = "POST"

	body, err := readBody(w, r, s.Config.MaxBodyBytes)
	if err != nil {
		status := bodyErrorStatus(err)
		s.observe(endpoint, method, status, start)
		writeError(w, status, err.Error())
		return
	}

	var req EvaluateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logger.Debug("decode evaluate request", zap.Error(err))
		s.observe(endpoint, method, http.StatusBadRequest, start)
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	res := s.Evaluate(req)
	s.Metrics.IncrementSlotDecisions(string(res.Reason))
	span.SetAttributes(
		attribute.Bool("adslot.eligible", res.Eligible),
		attribute.String("adslot.reason", string(res.Reason)),
	)

	s.observe(endpoint, method, http.StatusOK, start)
	writeJSON(w, http.StatusOK, res)
}

var errBodyTooLarge = errors.New("request body too large")

// readBody reads the whole request body, bounded by limit when positive.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	defer func() {
		_ = r.Body.Close()
	}()
	src := r.Body
	if limit > 0 {
		src = http.MaxBytesReader(w, r.Body, limit)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, errBodyTooLarge
		}
		return nil, err
	}
	return body, nil
}

func bodyErrorStatus(err error) int {
	if errors.Is(err, errBodyTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

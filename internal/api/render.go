package api

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/adslotgate/internal/analytics"
	"github.com/patrickwarner/adslotgate/internal/middleware"
	"github.com/patrickwarner/adslotgate/internal/slot"
	"github.com/patrickwarner/adslotgate/internal/targeting"
)

// EligibleHeader reports how many slots of the rendered page are eligible.
const EligibleHeader = "X-Adslot-Eligible"

// RenderHandler handles POST /render: the body is a publisher HTML page,
// the viewport, fragment and user cookie come from the request itself.
func (s *Server) RenderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "RenderHandler",
		trace.WithAttributes(
			attribute.String("http.method", "POST"),
			attribute.String("http.route", "/render"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)
	start := time.Now()
	const endpoint = "render"
	const method = "POST"

	requestID := middleware.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(middleware.RequestIDHeader, requestID)

	body, err := readBody(w, r, s.Config.MaxBodyBytes)
	if err != nil {
		status := bodyErrorStatus(err)
		s.observe(endpoint, method, status, start)
		writeError(w, status, err.Error())
		return
	}

	env := slot.EnvironmentFromRequest(r, s.Config.UserCookie)
	var base targeting.KeyValues
	if s.Config.RequestTargetingEnabled {
		base = targeting.FromRequest(s.GeoIP, r)
	}

	res, err := s.Renderer.Render(ctx, bytes.NewReader(body), env, base)
	if err != nil {
		logger.Error("render page", zap.Error(err))
		s.observe(endpoint, method, http.StatusBadRequest, start)
		writeError(w, http.StatusBadRequest, "invalid html")
		return
	}

	s.recordDecisions(ctx, logger, analytics.PageRecord{
		RequestID:   requestID,
		Time:        time.Now(),
		Environment: env,
		Device:      base.First(targeting.KeyDevice),
		Country:     base.First(targeting.KeyCountry),
		Decisions:   res.Decisions,
	})

	span.SetAttributes(
		attribute.String("request_id", requestID),
		attribute.Int("viewport_width", env.ViewportWidth),
		attribute.Int("adslot.eligible", res.Eligible()),
	)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(EligibleHeader, strconv.Itoa(res.Eligible()))
	w.WriteHeader(http.StatusOK)
	if err := res.Write(w); err != nil {
		logger.Error("write rendered page", zap.Error(err))
	}
	s.observe(endpoint, method, http.StatusOK, start)
}

// recordDecisions persists the page's decisions to the configured sinks.
// Failures are counted and logged; they never fail the render.
func (s *Server) recordDecisions(ctx context.Context, logger *zap.Logger, rec analytics.PageRecord) {
	if len(rec.Decisions) == 0 {
		return
	}
	if s.Stats != nil {
		if err := s.Stats.RecordDecisions(ctx, rec.Time, rec.Decisions); err != nil {
			s.Metrics.IncrementDecisionPersistErrors("redis")
			logger.Warn("record decision stats", zap.Error(err))
		}
	}
	if s.Analytics != nil {
		if err := s.Analytics.RecordDecisions(ctx, rec); err != nil {
			s.Metrics.IncrementDecisionPersistErrors("clickhouse")
			logger.Warn("record decision log", zap.Error(err))
		}
	}
}

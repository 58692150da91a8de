package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/patrickwarner/adslotgate/internal/analytics"
	"github.com/patrickwarner/adslotgate/internal/config"
	"github.com/patrickwarner/adslotgate/internal/db"
	"github.com/patrickwarner/adslotgate/internal/geoip"
	"github.com/patrickwarner/adslotgate/internal/models"
	"github.com/patrickwarner/adslotgate/internal/observability"
	"github.com/patrickwarner/adslotgate/internal/page"
	"github.com/patrickwarner/adslotgate/internal/slot"
)

var tracer = otel.Tracer("adslotgate")

// PlacementUpdateChannel is the Redis channel other instances listen on to
// pick up placement changes without waiting for the next reload tick.
const PlacementUpdateChannel = "adslot:placement-updates"

// ErrNoPlacementSource is returned by Reload when Postgres is not configured.
var ErrNoPlacementSource = errors.New("postgres unavailable")

// PlacementRepository is the persistent side of the placement presets.
type PlacementRepository interface {
	LoadPlacements(ctx context.Context) ([]models.Placement, error)
	UpsertPlacement(ctx context.Context, p models.Placement) (models.Placement, error)
	DeletePlacement(ctx context.Context, id string) error
}

// Server groups dependencies for HTTP handlers. PG, Stats, Analytics and
// GeoIP are optional; the handlers that need a missing backend answer 503.
type Server struct {
	Logger     *zap.Logger
	Gate       *slot.Gate
	Registry   *page.Registry
	Renderer   *page.Renderer
	Placements models.PlacementStore
	PG         PlacementRepository
	Stats      *db.RedisStore
	Analytics  analytics.DecisionLog
	GeoIP      *geoip.GeoIP
	Metrics    observability.MetricsRegistry
	Config     config.Config
	reloadMu   sync.Mutex
}

// NewServer constructs a Server. registry must already hold the element
// definitions; a nil metrics registry records nothing.
func NewServer(logger *zap.Logger, cfg config.Config, registry *page.Registry, placements models.PlacementStore, pg PlacementRepository, stats *db.RedisStore, decisions analytics.DecisionLog, geo *geoip.GeoIP, metrics observability.MetricsRegistry) *Server {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if placements == nil {
		placements = models.NewInMemoryPlacementStore()
	}
	return &Server{
		Logger:     logger,
		Gate:       NewGate(cfg),
		Registry:   registry,
		Placements: placements,
		Renderer: page.NewRenderer(registry, page.Options{
			ScriptURL:     cfg.GPTScriptURL,
			Placements:    placements,
			Logger:        logger,
			Metrics:       metrics,
			LogSampleRate: observability.GetSamplingRate(),
		}),
		PG:        pg,
		Stats:     stats,
		Analytics: decisions,
		GeoIP:     geo,
		Metrics:   metrics,
		Config:    cfg,
	}
}

// NewGate builds the slot gate described by cfg.
func NewGate(cfg config.Config) *slot.Gate {
	return slot.NewGate(slot.Config{
		AdType:           cfg.AdType,
		OptOutFragment:   cfg.OptOutFragment,
		ExcludedUserType: cfg.ExcludedUserType,
	})
}

// DefineElements registers every configured element name with gate. Names
// that are already defined are skipped so repeated setup is harmless.
func DefineElements(registry *page.Registry, names []string, gate *slot.Gate) error {
	for _, name := range names {
		err := registry.Define(name, page.Definition{Gate: gate})
		if err != nil && !errors.Is(err, page.ErrAlreadyDefined) {
			return fmt.Errorf("define %s: %w", name, err)
		}
	}
	return nil
}

// Reload refreshes placements from Postgres.
func (s *Server) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.PG == nil {
		return ErrNoPlacementSource
	}
	n, err := db.LoadPlacements(ctx, s.PG, s.Placements, s.Logger)
	if err != nil {
		return err
	}
	s.Metrics.SetPlacementsLoaded(n)
	return nil
}

// UpdateMessage is published on PlacementUpdateChannel after a write.
type UpdateMessage struct {
	Op string `json:"op"` // "upsert" or "delete"
	ID string `json:"id"`
}

func (s *Server) notifyUpdate(ctx context.Context, op, id string) {
	if s.Stats == nil || s.Stats.Client == nil {
		return
	}
	payload, err := json.Marshal(UpdateMessage{Op: op, ID: id})
	if err != nil {
		s.Logger.Error("failed to marshal update message", zap.Error(err))
		return
	}
	if err := s.Stats.Client.Publish(ctx, PlacementUpdateChannel, payload).Err(); err != nil {
		s.Logger.Error("failed to publish update message", zap.Error(err))
	}
}

// WatchUpdates reloads placements whenever another instance announces a
// change. It blocks until ctx is done.
func (s *Server) WatchUpdates(ctx context.Context) {
	if s.Stats == nil || s.Stats.Client == nil || s.PG == nil {
		return
	}
	sub := s.Stats.Client.Subscribe(ctx, PlacementUpdateChannel)
	defer func() {
		_ = sub.Close()
	}()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var upd UpdateMessage
			if err := json.Unmarshal([]byte(msg.Payload), &upd); err != nil {
				s.Logger.Warn("ignoring malformed update message", zap.Error(err))
				continue
			}
			if err := s.Reload(ctx); err != nil {
				s.Logger.Error("reload after update", zap.Error(err), zap.String("op", upd.Op), zap.String("placement", upd.ID))
			}
		}
	}
}

// observe records request count and latency for one handler invocation.
func (s *Server) observe(endpoint, method string, status int, start time.Time) {
	s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON error envelope of every endpoint.
type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

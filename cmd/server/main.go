package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/adslotgate/internal/analytics"
	"github.com/patrickwarner/adslotgate/internal/api"
	"github.com/patrickwarner/adslotgate/internal/config"
	"github.com/patrickwarner/adslotgate/internal/db"
	"github.com/patrickwarner/adslotgate/internal/geoip"
	"github.com/patrickwarner/adslotgate/internal/models"
	"github.com/patrickwarner/adslotgate/internal/observability"
	"github.com/patrickwarner/adslotgate/internal/page"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	metricsRegistry := observability.NewPrometheusRegistry()
	placements := models.NewInMemoryPlacementStore()

	// Every backend is optional: the gate and renderer work without any.
	var repo api.PlacementRepository
	if cfg.PostgresDSN != "" {
		pg, err := db.InitPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		if err != nil {
			return fmt.Errorf("failed to connect postgres: %w", err)
		}
		defer pg.Close()
		repo = pg
	}

	var stats *db.RedisStore
	if cfg.RedisAddr != "" {
		store, err := db.InitRedis(ctx, cfg.RedisAddr, cfg.StatsTTL)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer store.Close()
		stats = store
	}

	var decisions analytics.DecisionLog
	if cfg.ClickHouseDSN != "" {
		ch, err := analytics.InitClickHouse(ctx, cfg.ClickHouseDSN, cfg.CHMaxOpenConns)
		if err != nil {
			return fmt.Errorf("failed to connect clickhouse: %w", err)
		}
		defer ch.Close()
		decisions = ch
	}

	var geoSvc *geoip.GeoIP
	if cfg.GeoIPDB != "" {
		g, err := geoip.Init(cfg.GeoIPDB)
		if err != nil {
			return fmt.Errorf("failed to load geoip db: %w", err)
		}
		defer func() { _ = g.Close() }()
		geoSvc = g
	}

	registry := page.NewRegistry()
	if err := api.DefineElements(registry, cfg.ElementNames, api.NewGate(cfg)); err != nil {
		return err
	}

	srvDeps := api.NewServer(logger, cfg, registry, placements, repo, stats, decisions, geoSvc, metricsRegistry)
	if repo != nil {
		if err := srvDeps.Reload(ctx); err != nil {
			return fmt.Errorf("initial placement load: %w", err)
		}
		go srvDeps.WatchUpdates(ctx)
	}

	r := srvDeps.Router()
	r.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, cfg.ServiceName),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Ad slot gate running",
		zap.String("addr", addr),
		zap.Strings("elements", registry.Names()),
		zap.Bool("postgres", repo != nil),
		zap.Bool("redis", stats != nil),
		zap.Bool("clickhouse", decisions != nil))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	if repo != nil && cfg.ReloadInterval > 0 {
		ticker := time.NewTicker(cfg.ReloadInterval)
		go func() {
			for {
				select {
				case <-ticker.C:
					if err := srvDeps.Reload(ctx); err != nil {
						logger.Error("auto reload", zap.Error(err))
					}
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}

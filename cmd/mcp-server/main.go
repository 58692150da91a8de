package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/adslotgate/internal/api"
	"github.com/patrickwarner/adslotgate/internal/config"
	"github.com/patrickwarner/adslotgate/internal/db"
	"github.com/patrickwarner/adslotgate/internal/models"
	"github.com/patrickwarner/adslotgate/internal/observability"
	"github.com/patrickwarner/adslotgate/internal/page"
)

func main() {
	cfg := config.Load()

	// stdout carries the protocol, so logs go to stderr
	logger, err := observability.InitStderrLogger(cfg.ServiceName + "-mcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger, cfg); err != nil {
		logger.Error("mcp server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := newGateServer(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "adslotgate",
		Version: "1.0.0",
	}, nil)
	tools := &GateTools{srv: srv, logger: logger}
	tools.Register(server)

	logger.Info("Starting ad slot gate MCP server", zap.Int("placements", len(srv.Placements.GetAllPlacements())))
	return server.Run(ctx, &mcp.StdioTransport{})
}

// newGateServer builds the gate with placements from Postgres when a DSN is
// configured. Decisions made over MCP are not persisted.
func newGateServer(ctx context.Context, logger *zap.Logger, cfg config.Config) (*api.Server, func(), error) {
	cleanup := func() {}
	registry := page.NewRegistry()
	if err := api.DefineElements(registry, cfg.ElementNames, api.NewGate(cfg)); err != nil {
		return nil, cleanup, err
	}

	var repo api.PlacementRepository
	if cfg.PostgresDSN != "" {
		pg, err := db.InitPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to connect postgres: %w", err)
		}
		cleanup = pg.Close
		repo = pg
	}

	srv := api.NewServer(logger, cfg, registry, models.NewInMemoryPlacementStore(), repo, nil, nil, nil, observability.NewNoOpRegistry())
	if repo != nil {
		if err := srv.Reload(ctx); err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("load placements: %w", err)
		}
	}
	return srv, cleanup, nil
}

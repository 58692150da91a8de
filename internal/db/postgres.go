package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/adslotgate/internal/models"
)

// Postgres wraps a postgres DB connection.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the placements table if it doesn't exist. Empty
// settings are stored as NULL.
const schemaSQL = `CREATE TABLE IF NOT EXISTS placements (
    id TEXT PRIMARY KEY,
    ad_type TEXT,
    slot_id TEXT,
    sizes TEXT,
    size_mapping TEXT,
    min_x_resolution TEXT,
    max_x_resolution TEXT,
    min_y_resolution TEXT,
    max_y_resolution TEXT,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const placementColumns = `id, ad_type, slot_id, sizes, size_mapping, min_x_resolution, max_x_resolution, min_y_resolution, max_y_resolution, updated_at`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(ctx context.Context, dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

// EnsureSchema creates the required tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// LoadPlacements fetches all placement presets ordered by id.
func (p *Postgres) LoadPlacements(ctx context.Context) ([]models.Placement, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT `+placementColumns+` FROM placements ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query placements: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var pls []models.Placement
	for rows.Next() {
		pl, err := scanPlacement(rows)
		if err != nil {
			return nil, err
		}
		pls = append(pls, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return pls, nil
}

// UpsertPlacement inserts or replaces a placement and returns the stored row.
func (p *Postgres) UpsertPlacement(ctx context.Context, pl models.Placement) (models.Placement, error) {
	row := p.DB.QueryRowContext(ctx, `INSERT INTO placements (id, ad_type, slot_id, sizes, size_mapping, min_x_resolution, max_x_resolution, min_y_resolution, max_y_resolution, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
ON CONFLICT (id) DO UPDATE SET ad_type=EXCLUDED.ad_type, slot_id=EXCLUDED.slot_id, sizes=EXCLUDED.sizes, size_mapping=EXCLUDED.size_mapping,
    min_x_resolution=EXCLUDED.min_x_resolution, max_x_resolution=EXCLUDED.max_x_resolution,
    min_y_resolution=EXCLUDED.min_y_resolution, max_y_resolution=EXCLUDED.max_y_resolution, updated_at=NOW()
RETURNING `+placementColumns,
		pl.ID, nullable(pl.AdType), nullable(pl.SlotID), nullable(pl.Sizes), nullable(pl.SizeMapping),
		nullable(pl.MinXResolution), nullable(pl.MaxXResolution), nullable(pl.MinYResolution), nullable(pl.MaxYResolution))
	stored, err := scanPlacement(row)
	if err != nil {
		return models.Placement{}, fmt.Errorf("upsert placement: %w", err)
	}
	return stored, nil
}

// DeletePlacement removes a placement by ID. Unknown ids return
// models.ErrPlacementNotFound.
func (p *Postgres) DeletePlacement(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM placements WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete placement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete placement: %w", err)
	}
	if n == 0 {
		return models.ErrPlacementNotFound
	}
	return nil
}

// Ping reports whether the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlacement(s scanner) (models.Placement, error) {
	var pl models.Placement
	var adType, slotID, sizes, mapping, minX, maxX, minY, maxY sql.NullString
	if err := s.Scan(&pl.ID, &adType, &slotID, &sizes, &mapping, &minX, &maxX, &minY, &maxY, &pl.UpdatedAt); err != nil {
		return models.Placement{}, fmt.Errorf("scan placement: %w", err)
	}
	pl.AdType = adType.String
	pl.SlotID = slotID.String
	pl.Sizes = sizes.String
	pl.SizeMapping = mapping.String
	pl.MinXResolution = minX.String
	pl.MaxXResolution = maxX.String
	pl.MinYResolution = minY.String
	pl.MaxYResolution = maxY.String
	return pl, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/patrickwarner/adslotgate/internal/models"
	"github.com/patrickwarner/adslotgate/internal/slot"
)

// DecisionLog persists per-slot decisions of rendered pages.
// Implementations should handle cases where underlying storage is unavailable
// by returning ErrUnavailable.
type DecisionLog interface {
	RecordDecisions(ctx context.Context, rec PageRecord) error
	GetDecisionsByRequestID(ctx context.Context, id string) ([]DecisionRecord, error)
}

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = errors.New("analytics unavailable")

// PageRecord is everything logged for one rendered page.
type PageRecord struct {
	RequestID   string
	Time        time.Time
	Environment slot.Environment
	Device      string
	Country     string
	Decisions   []models.Decision
}

// DecisionRecord mirrors a row in the slot_decisions table.
type DecisionRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id"`
	SlotID         string    `json:"slot_id"`
	AdType         string    `json:"ad_type"`
	Placement      string    `json:"placement,omitempty"`
	Eligible       bool      `json:"eligible"`
	Reason         string    `json:"reason"`
	Sizes          string    `json:"sizes"`
	ViewportWidth  int32     `json:"viewport_width"`
	ViewportHeight int32     `json:"viewport_height"`
	Device         string    `json:"device,omitempty"`
	Country        string    `json:"country,omitempty"`
}

// Analytics wraps a ClickHouse DB connection.
type Analytics struct {
	DB *sql.DB
}

const createTable = `CREATE TABLE IF NOT EXISTS slot_decisions (
       timestamp       DateTime,
       request_id      String,
       slot_id         String,
       ad_type         String,
       placement       String,
       eligible        Bool,
       reason          LowCardinality(String),
       sizes           String,
       viewport_width  Int32,
       viewport_height Int32,
       device          LowCardinality(String),
       country         LowCardinality(String)
   ) ENGINE=MergeTree() ORDER BY (slot_id, timestamp)`

const insertDecision = `INSERT INTO slot_decisions (timestamp, request_id, slot_id, ad_type, placement, eligible, reason, sizes, viewport_width, viewport_height, device, country) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InitClickHouse connects to ClickHouse and ensures the slot_decisions table exists.
func InitClickHouse(ctx context.Context, dsn string, maxOpenConns int) (*Analytics, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	a := &Analytics{DB: db}
	if err := a.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	zap.L().Info("Connected to ClickHouse")
	return a, nil
}

// EnsureSchema creates the slot_decisions table if needed.
func (a *Analytics) EnsureSchema(ctx context.Context) error {
	if _, err := a.DB.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("clickhouse create table: %w", err)
	}
	return nil
}

// RecordDecisions inserts one row per decision of rec as a single batch.
func (a *Analytics) RecordDecisions(ctx context.Context, rec PageRecord) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	if len(rec.Decisions) == 0 {
		return nil
	}
	ts := rec.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	tx, err := a.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertDecision)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, d := range rec.Decisions {
		if _, err := stmt.ExecContext(ctx, ts.UTC(), rec.RequestID, d.SlotID, d.AdType, d.Placement, d.Eligible,
			string(d.Reason), d.Sizes.String(), int32(rec.Environment.ViewportWidth), int32(rec.Environment.ViewportHeight),
			rec.Device, rec.Country); err != nil {
			_ = tx.Rollback()
			zap.L().Error("clickhouse insert failed", zap.Error(err), zap.String("request_id", rec.RequestID))
			return fmt.Errorf("insert decision: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// GetDecisionsByRequestID returns the logged decisions of one rendered page.
func (a *Analytics) GetDecisionsByRequestID(ctx context.Context, id string) ([]DecisionRecord, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	query := `SELECT timestamp, request_id, slot_id, ad_type, placement, eligible, reason, sizes, viewport_width, viewport_height, device, country FROM slot_decisions WHERE request_id=? ORDER BY timestamp`
	rows, err := a.DB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var out []DecisionRecord
	for rows.Next() {
		var r DecisionRecord
		if err := rows.Scan(&r.Timestamp, &r.RequestID, &r.SlotID, &r.AdType, &r.Placement, &r.Eligible, &r.Reason, &r.Sizes, &r.ViewportWidth, &r.ViewportHeight, &r.Device, &r.Country); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// Ping reports whether ClickHouse is reachable.
func (a *Analytics) Ping(ctx context.Context) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	return a.DB.PingContext(ctx)
}

// Close terminates the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}

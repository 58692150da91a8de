package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/patrickwarner/adslotgate/internal/models"
)

// ErrNilRedisStore is returned when a RedisStore pointer is nil or uninitialized.
var ErrNilRedisStore = errors.New("redis store is nil")

// DefaultStatsTTL bounds how long a day of decision counters is kept.
const DefaultStatsTTL = 48 * time.Hour

// missingSlotID stands in for the slot id of elements that declared none.
const missingSlotID = "-"

// RedisStore keeps per-day decision counters for every slot.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	rs := NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}), ttl)

	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// NewRedisStore wraps an existing client. A non-positive ttl selects
// DefaultStatsTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &RedisStore{Client: client, TTL: ttl}
}

// StatsKey returns the hash holding the counters of slotID on day.
func StatsKey(slotID string, day time.Time) string {
	if slotID == "" {
		slotID = missingSlotID
	}
	return fmt.Sprintf("adslot:decisions:%s:%s", day.UTC().Format("2006-01-02"), slotID)
}

// RecordDecisions increments one counter per decision, keyed by reason, in
// a single pipeline. Every touched hash gets its TTL refreshed.
func (r *RedisStore) RecordDecisions(ctx context.Context, at time.Time, decisions []models.Decision) error {
	if r == nil || r.Client == nil {
		return ErrNilRedisStore
	}
	if len(decisions) == 0 {
		return nil
	}

	pipe := r.Client.Pipeline()
	touched := make(map[string]bool, len(decisions))
	for _, d := range decisions {
		key := StatsKey(d.SlotID, at)
		pipe.HIncrBy(ctx, key, string(d.Reason), 1)
		touched[key] = true
	}
	for key := range touched {
		pipe.Expire(ctx, key, r.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline exec failed: %w", err)
	}
	return nil
}

// SlotStats returns the reason counters of slotID on day. A slot without
// decisions yields an empty map.
func (r *RedisStore) SlotStats(ctx context.Context, slotID string, day time.Time) (map[string]int64, error) {
	if r == nil || r.Client == nil {
		return nil, ErrNilRedisStore
	}
	raw, err := r.Client.HGetAll(ctx, StatsKey(slotID, day)).Result()
	if err != nil {
		return nil, fmt.Errorf("read slot stats: %w", err)
	}
	out := make(map[string]int64, len(raw))
	for reason, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", reason, err)
		}
		out[reason] = n
	}
	return out, nil
}

// Ping reports whether Redis is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return ErrNilRedisStore
	}
	return r.Client.Ping(ctx).Err()
}

// Close releases the client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}

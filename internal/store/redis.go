package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reportstream/reportstream/internal/models"
)

// RedisStore persists per-file status snapshots and analysis results as JSON
// values with an explicit TTL. It implements StatusStore and ResultStore.
// Status writes are last-write-wins; Complete writes result and terminal
// status in one transaction so a completed status is never observable
// without its result.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

// InitRedis initializes a Redis client and returns a RedisStore. ttl bounds
// how long statuses and results stay readable; a later upload under a new
// identifier supersedes them anyway.
func InitRedis(addr string, ttl time.Duration) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		TTL:    ttl,
	}

	// Add OpenTelemetry instrumentation to Redis client
	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// NewRedisStore wraps an existing client. Used by tests running against
// miniredis.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{Client: client, TTL: ttl}
}

func statusKey(fileID string) string { return "ingest:status:" + fileID }
func resultKey(fileID string) string { return "ingest:result:" + fileID }

// SetStatus stores the status snapshot for a file identifier.
func (r *RedisStore) SetStatus(ctx context.Context, fileID string, st models.StatusInfo) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := r.Client.Set(ctx, statusKey(fileID), payload, r.TTL).Err(); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// GetStatus returns the stored status or ErrNotFound.
func (r *RedisStore) GetStatus(ctx context.Context, fileID string) (*models.StatusInfo, error) {
	raw, err := r.Client.Get(ctx, statusKey(fileID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	var st models.StatusInfo
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}
	return &st, nil
}

// Complete persists the result and its terminal status atomically via a
// MULTI/EXEC pipeline.
func (r *RedisStore) Complete(ctx context.Context, fileID string, res *models.AnalysisResult, st models.StatusInfo) error {
	resPayload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	stPayload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	pipe := r.Client.TxPipeline()
	pipe.Set(ctx, resultKey(fileID), resPayload, r.TTL)
	pipe.Set(ctx, statusKey(fileID), stPayload, r.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("complete pipeline exec: %w", err)
	}
	return nil
}

// GetResult returns the stored analysis result or ErrNotFound.
func (r *RedisStore) GetResult(ctx context.Context, fileID string) (*models.AnalysisResult, error) {
	raw, err := r.Client.Get(ctx, resultKey(fileID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	var res models.AnalysisResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &res, nil
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}

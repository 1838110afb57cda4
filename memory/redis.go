package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/config"
	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// Redis backend
// =============================================================================

const redisKeyPrefix = "agenthub:memory:"

// RedisStore keeps each agent's history in a redis list of JSON entries.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{
		client: client,
		logger: logger.With(zap.String("component", "memory_redis")),
	}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		logger: logger.With(zap.String("component", "memory_redis")),
	}
}

func redisKey(agent string) string {
	return redisKeyPrefix + agent
}

// Append adds one entry to the agent's history.
func (s *RedisStore) Append(ctx context.Context, entry types.MemoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, redisKey(entry.AgentName), data).Err()
}

// History returns entries in chronological order.
func (s *RedisStore) History(ctx context.Context, agent string, limit int) ([]types.MemoryEntry, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.client.LRange(ctx, redisKey(agent), start, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]types.MemoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry types.MemoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			s.logger.Warn("skipping corrupt memory entry",
				zap.String("agent", agent), zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// TrimOldest drops the n oldest entries.
func (s *RedisStore) TrimOldest(ctx context.Context, agent string, n int) error {
	if n <= 0 {
		return nil
	}
	return s.client.LTrim(ctx, redisKey(agent), int64(n), -1).Err()
}

// Clear removes the agent's history.
func (s *RedisStore) Clear(ctx context.Context, agent string) error {
	return s.client.Del(ctx, redisKey(agent)).Err()
}

// Close releases the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

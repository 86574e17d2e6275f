// Package cache provides an optional Redis-backed cache for the stats
// endpoint. Stats are recomputed from the full ticket set on every call,
// so a short TTL takes the pressure off dashboards that poll.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/swarmdesk/swarmdesk/internal/config"
	"github.com/swarmdesk/swarmdesk/internal/domain"
)

const statsKey = "swarmdesk:stats"

// StatsCache caches serialized ticket stats. A nil *StatsCache is valid
// and behaves as a permanent miss, so callers never branch on whether
// Redis was configured.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStatsCache connects to Redis when an address is configured. Returns
// nil (cache disabled) otherwise.
func NewStatsCache(cfg config.RedisConfig, logger *zap.Logger) *StatsCache {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis, stats cache disabled", zap.Error(err))
		_ = client.Close()
		return nil
	}
	logger.Info("connected to redis")
	ttl := cfg.StatsTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &StatsCache{client: client, ttl: ttl, logger: logger}
}

// Get returns cached stats or nil on miss. Cache failures count as misses.
func (c *StatsCache) Get(ctx context.Context) *domain.Stats {
	if c == nil {
		return nil
	}
	data, err := c.client.Get(ctx, statsKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("stats cache read failed", zap.Error(err))
		}
		return nil
	}
	var stats domain.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		c.logger.Warn("stats cache entry corrupt", zap.Error(err))
		return nil
	}
	return &stats
}

// Set stores stats with the configured TTL. Best-effort.
func (c *StatsCache) Set(ctx context.Context, stats *domain.Stats) {
	if c == nil || stats == nil {
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, statsKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("stats cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached entry after a mutation.
func (c *StatsCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, statsKey).Err(); err != nil {
		c.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

// Close releases the Redis connection.
func (c *StatsCache) Close() {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Close()
}

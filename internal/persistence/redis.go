package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/theatre-service/internal/config"
	"github.com/spec-kit/theatre-service/internal/domain"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

const roleCachePrefix = "theatre_role:"

// RoleCache keeps role name to id mappings. Role rows are seeded once and
// never change, so entries only expire to pick up a reseeded database.
type RoleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRoleCache returns a cache backed by r.
func NewRoleCache(r *Redis, ttl time.Duration) *RoleCache {
	return &RoleCache{client: r.Client, ttl: ttl}
}

// Get returns the cached record. Any Redis failure is reported as a miss.
func (c *RoleCache) Get(ctx context.Context, name string) (*domain.RoleRecord, bool) {
	raw, err := c.client.Get(ctx, roleCachePrefix+name).Result()
	if err != nil {
		return nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &domain.RoleRecord{ID: id, Name: name}, true
}

// Set stores the record.
func (c *RoleCache) Set(ctx context.Context, role domain.RoleRecord) error {
	return c.client.Set(ctx, roleCachePrefix+role.Name, role.ID.String(), c.ttl).Err()
}

// RateLimiter is a fixed window counter keyed by caller supplied strings.
type RateLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewRateLimiter allows limit hits per window for each key.
func NewRateLimiter(r *Redis, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: r.Client, prefix: prefix, limit: int64(limit), window: window}
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + ":" + key
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}
	return incr.Val() <= l.limit, nil
}

// Package cache stores AI analyses in Redis so identical reports skip the
// completion call.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vitalis-health/vitalis/backend/internal/analysis"
	"go.uber.org/zap"
)

// KeyPrefix namespaces analysis entries.
const KeyPrefix = "vitalis:analysis:"

// DefaultTTL is used when the configured TTL is not positive.
const DefaultTTL = 24 * time.Hour

var ErrMiss = errors.New("cache miss")

// KV is the minimal string store the cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisKV adapts a go-redis client to KV.
type RedisKV struct {
	c redis.Cmdable
}

func NewRedisKV(c redis.Cmdable) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

// NewRedisClient creates a Redis client.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Ping tests the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// RedisCache implements analysis.Cache. Any Redis or decode error is
// treated as a miss.
type RedisCache struct {
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache creates a cache over kv.
func NewRedisCache(kv KV, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{kv: kv, ttl: ttl, logger: logger}
}

// Get returns the cached analysis for key.
func (c *RedisCache) Get(ctx context.Context, key string) (*analysis.MedicalAIAnalysis, bool) {
	raw, err := c.kv.Get(ctx, KeyPrefix+key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("Analysis cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var a analysis.MedicalAIAnalysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		c.logger.Warn("Analysis cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &a, true
}

// Set stores a. Only AI-generated analyses are cached; rule-based ones are
// cheap to recompute.
func (c *RedisCache) Set(ctx context.Context, key string, a *analysis.MedicalAIAnalysis) {
	if !a.IsAIGenerated() {
		return
	}
	raw, err := json.Marshal(a)
	if err != nil {
		c.logger.Warn("Analysis cache encode failed", zap.Error(err))
		return
	}
	if err := c.kv.Set(ctx, KeyPrefix+key, string(raw), c.ttl); err != nil {
		c.logger.Warn("Analysis cache write failed", zap.String("key", key), zap.Error(err))
	}
}

package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/webhookd/engine/internal/infrastructure/monitoring/logging"
	"github.com/webhookd/engine/pkg/errors"
)

// ErrCacheMiss is returned by Get when the key is absent. Callers treat it
// as "recompute", never as a failure.
var ErrCacheMiss = errors.New(errors.CodeCacheError, "cache miss")

// Cache is the key-value surface the domain authorizer stores its positive
// URL decisions behind: JSON values under a process-wide key prefix, with a
// jittered TTL so entries written in a burst do not all expire at once.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type redisCache struct {
	client     *Client
	log        logging.Logger
	prefix     string
	defaultTTL time.Duration
}

// NewRedisCache wraps client as a Cache. All keys are stored under the
// "webhookd:" prefix.
func NewRedisCache(client *Client, log logging.Logger) Cache {
	return &redisCache{
		client:     client,
		log:        log,
		prefix:     "webhookd:",
		defaultTTL: 15 * time.Minute,
	}
}

func (c *redisCache) buildKey(key string) string {
	return c.prefix + key
}

// jitterTTL spreads expirations by +/-10% so a burst of writes does not
// produce a synchronized reload burst one TTL later.
func (c *redisCache) jitterTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return 0
	}
	jitter := time.Duration(float64(ttl) * 0.1 * (rand.Float64()*2 - 1))
	return ttl + jitter
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.buildKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return errors.Wrap(err, errors.CodeCacheError, "redis get failed")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.CodeSerializationError, "unmarshal failed")
	}
	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerializationError, "marshal failed")
	}
	if err := c.client.Set(ctx, c.buildKey(key), data, c.jitterTTL(ttl)).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "redis set failed")
	}
	return nil
}

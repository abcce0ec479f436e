package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"sift/internal/constants"
	"sift/internal/logger"
	"sift/pkg/circuitbreaker"
	"sift/pkg/metrics"
)

// Cache remembers resolved chains so a URL shared across thousands of
// messages is only crawled once.
type Cache interface {
	Get(ctx context.Context, url string) (string, bool)
	Set(ctx context.Context, url, finalURL string)
}

type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (string, bool) { return "", false }
func (NoopCache) Set(context.Context, string, string)        {}

// RedisCache stores url -> finalUrl with a TTL. All calls go through a
// circuit breaker: a down Redis degrades resolution to live crawling
// instead of failing it.
type RedisCache struct {
	client  *redis.Client
	breaker *circuitbreaker.Wrapper
	ttl     time.Duration
	logger  logger.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = constants.DefaultResolveCacheTTL
	}
	return &RedisCache{
		client:  client,
		breaker: circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("resolve_cache")),
		ttl:     ttl,
		logger:  log,
	}
}

func (c *RedisCache) Get(ctx context.Context, url string) (string, bool) {
	result, err := c.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		val, err := c.client.Get(ctx, constants.CacheKeyPrefixResolve+url).Result()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return val, err
	})
	c.breaker.RecordRequest(err == nil)

	if err != nil {
		metrics.ResolverCacheTotal.WithLabelValues("error").Inc()
		c.logger.WarnwCtx(ctx, "Resolve cache read failed", "error", err)
		return "", false
	}

	final, _ := result.(string)
	if final == "" {
		metrics.ResolverCacheTotal.WithLabelValues("miss").Inc()
		return "", false
	}

	metrics.ResolverCacheTotal.WithLabelValues("hit").Inc()
	return final, true
}

func (c *RedisCache) Set(ctx context.Context, url, finalURL string) {
	_, err := c.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, c.client.Set(ctx, constants.CacheKeyPrefixResolve+url, finalURL, c.ttl).Err()
	})
	c.breaker.RecordRequest(err == nil)

	if err != nil {
		c.logger.WarnwCtx(ctx, "Resolve cache write failed", "error", err)
	}
}

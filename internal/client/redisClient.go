package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"audio-embed-service/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	entitlementKeyPrefix = "entitlement:"
	generationKeyPrefix  = "entitlement-gen:"
)

// setIfGeneration writes KEYS[1] only while KEYS[2] still holds ARGV[2].
var setIfGeneration = redis.NewScript(`
local gen = redis.call("GET", KEYS[2]) or "0"
if gen ~= ARGV[2] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// EntitlementCache stores resolved access per Stripe customer.
// Every Invalidate bumps the customer's generation. Set is dropped when the
// generation moved since the caller's Get.
type EntitlementCache interface {
	// Get returns the cached value, ok=false on a miss, and the current generation.
	Get(ctx context.Context, customerID string) (value string, gen int64, ok bool, err error)
	Set(ctx context.Context, customerID, value string, gen int64, ttl time.Duration) (stored bool, err error)
	Invalidate(ctx context.Context, customerID string) error
}

type redisCacheImpl struct {
	rdb *redis.Client
}

// NewEntitlementCache connects to REDIS_URL. An empty URL disables caching.
func NewEntitlementCache(ctx context.Context, redisCfg *config.Redis) (EntitlementCache, error) {
	if redisCfg.URL == "" {
		log.Info().Msg("redis url not set, entitlement cache disabled")
		return noopCache{}, nil
	}

	opts, err := redis.ParseURL(redisCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		// cache is optional
		log.Warn().Err(err).Msg("could not reach redis, continuing")
	}

	return NewRedisEntitlementCache(rdb), nil
}

func NewRedisEntitlementCache(rdb *redis.Client) EntitlementCache {
	return &redisCacheImpl{rdb: rdb}
}

func (c *redisCacheImpl) Get(ctx context.Context, customerID string) (string, int64, bool, error) {
	vals, err := c.rdb.MGet(ctx, entitlementKeyPrefix+customerID, generationKeyPrefix+customerID).Result()
	if err != nil {
		return "", 0, false, fmt.Errorf("redis mget: %w", err)
	}

	gen, err := parseGeneration(vals[1])
	if err != nil {
		return "", 0, false, err
	}

	value, ok := vals[0].(string)
	return value, gen, ok, nil
}

func parseGeneration(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	gen, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cache generation %q: %w", s, err)
	}
	return gen, nil
}

func (c *redisCacheImpl) Set(ctx context.Context, customerID, value string, gen int64, ttl time.Duration) (bool, error) {
	if ttl.Milliseconds() <= 0 {
		return false, nil
	}
	keys := []string{entitlementKeyPrefix + customerID, generationKeyPrefix + customerID}
	stored, err := setIfGeneration.Run(ctx, c.rdb, keys, value, strconv.FormatInt(gen, 10), ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis set: %w", err)
	}
	return stored == 1, nil
}

func (c *redisCacheImpl) Invalidate(ctx context.Context, customerID string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKeyPrefix+customerID)
		pipe.Del(ctx, entitlementKeyPrefix+customerID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (string, int64, bool, error) {
	return "", 0, false, nil
}

func (noopCache) Set(context.Context, string, string, int64, time.Duration) (bool, error) {
	return false, nil
}

func (noopCache) Invalidate(context.Context, string) error { return nil }

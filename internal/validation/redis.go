package validation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playperu/tuttifrutti/internal/stopgame"
)

// RedisCache keeps recently used verdicts in redis in front of a durable
// Cache. Redis failures are logged and fall through to the durable cache.
type RedisCache struct {
	rdb    redis.Cmdable
	next   Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(rdb redis.Cmdable, next Cache, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{rdb: rdb, next: next, ttl: ttl, logger: logger}
}

func redisKey(letter string, k stopgame.WordKey) string {
	return "verdict:" + letter + ":" + k.Category + ":" + k.Word
}

func (c *RedisCache) Lookup(ctx context.Context, letter string, keys []stopgame.WordKey) (stopgame.Verdicts, error) {
	if len(keys) == 0 {
		return stopgame.Verdicts{}, nil
	}

	hits := make(stopgame.Verdicts, len(keys))
	misses := keys

	rkeys := make([]string, len(keys))
	for i, k := range keys {
		rkeys[i] = redisKey(letter, k)
	}

	vals, err := c.rdb.MGet(ctx, rkeys...).Result()
	if err != nil {
		c.logger.Debug("redis lookup failed", "error", err)
	} else {
		misses = make([]stopgame.WordKey, 0, len(keys))
		for i, raw := range vals {
			s, ok := raw.(string)
			if !ok {
				misses = append(misses, keys[i])
				continue
			}
			var v stopgame.Verdict
			if err := json.Unmarshal([]byte(s), &v); err != nil {
				misses = append(misses, keys[i])
				continue
			}
			hits[keys[i]] = v
		}
	}

	if len(misses) == 0 {
		return hits, nil
	}

	found, err := c.next.Lookup(ctx, letter, misses)
	if err != nil {
		return hits, err
	}
	for k, v := range found {
		hits[k] = v
	}
	c.remember(ctx, letter, found)
	return hits, nil
}

func (c *RedisCache) Store(ctx context.Context, letter string, verdicts stopgame.Verdicts) error {
	if err := c.next.Store(ctx, letter, verdicts); err != nil {
		return err
	}
	c.remember(ctx, letter, verdicts)
	return nil
}

// remember copies verdicts into redis with SETNX so the first verdict for a
// key stays authoritative there too.
func (c *RedisCache) remember(ctx context.Context, letter string, verdicts stopgame.Verdicts) {
	if len(verdicts) == 0 {
		return
	}

	pipe := c.rdb.Pipeline()
	for k, v := range verdicts {
		data, err := json.Marshal(v)
		if err != nil {
			continue
		}
		pipe.SetNX(ctx, redisKey(letter, k), data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Debug("redis write failed", "error", err)
	}
}

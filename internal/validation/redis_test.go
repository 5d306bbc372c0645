package validation

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playperu/tuttifrutti/internal/stopgame"
)

func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         "localhost:1",
		DialTimeout:  10 * time.Millisecond,
		ReadTimeout:  10 * time.Millisecond,
		WriteTimeout: 10 * time.Millisecond,
		MaxRetries:   0,
	})
}

func TestRedisCacheFallsThroughWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	rdb := deadRedis()
	defer rdb.Close()

	inner := NewMemoryCache()
	c := NewRedisCache(rdb, inner, time.Hour, discardLogger())
	k := stopgame.WordKey{Category: "Animal", Word: "lobo"}

	if err := c.Store(ctx, "L", stopgame.Verdicts{k: {Valid: true, Score: 1, Reason: "ok"}}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if inner.Len() != 1 {
		t.Fatalf("durable cache has %d entries, want 1", inner.Len())
	}

	got, err := c.Lookup(ctx, "L", []stopgame.WordKey{k, {Category: "Animal", Word: "lince"}})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !got[k].Valid {
		t.Errorf("lobo = %+v, want the durable verdict", got[k])
	}
	if len(got) != 1 {
		t.Errorf("got %d hits, want 1", len(got))
	}
}

func TestRedisKey(t *testing.T) {
	got := redisKey("K", stopgame.WordKey{Category: "Animal", Word: "koala"})
	if got != "verdict:K:Animal:koala" {
		t.Errorf("redisKey = %q", got)
	}
}

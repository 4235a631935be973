package cache

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// IdempotencyCache short-circuits duplicate booking submissions: key ->
// booking id with the same 24h TTL the database check uses. The database
// unique lookup stays the source of truth; redis being down just means
// every request takes the slow path.
type IdempotencyCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyCache(redisURL string, ttl time.Duration) *IdempotencyCache {
	if redisURL == "" {
		return nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("idempotency cache disabled: %v", err)
		return nil
	}

	return &IdempotencyCache{
		rdb: redis.NewClient(opt),
		ttl: ttl,
	}
}

func (c *IdempotencyCache) Lookup(ctx context.Context, key string) (uint, bool) {
	if c == nil {
		return 0, false
	}

	val, err := c.rdb.Get(ctx, "idem:"+key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("idempotency cache get: %v", err)
		}
		return 0, false
	}

	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func (c *IdempotencyCache) Store(ctx context.Context, key string, bookingID uint) {
	if c == nil {
		return
	}

	if err := c.rdb.Set(ctx, "idem:"+key, strconv.FormatUint(uint64(bookingID), 10), c.ttl).Err(); err != nil {
		log.Printf("idempotency cache set: %v", err)
	}
}

package statscache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"auctiongate/internal/lifecycle"

	"github.com/redis/go-redis/v9"
)

const (
	key    = "aucs:stats"
	genKey = "aucs:stats:gen"
)

// putScript stores the counts only while the generation is still the one
// the caller read before counting.
const putScript = `
local gen = redis.call("GET", KEYS[2]) or "0"
if gen ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1`

// Cache keeps the per-status counters shown on the staff dashboard.
type Cache struct {
	rdc *redis.Client
	ttl time.Duration
}

func New(rdc *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdc: rdc, ttl: ttl}
}

// Get returns ok=false on a cache miss.
func (c *Cache) Get(ctx context.Context) (map[lifecycle.Status]int, bool, error) {
	raw, err := c.rdc.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var counts map[lifecycle.Status]int
	if err := json.Unmarshal([]byte(raw), &counts); err != nil {
		return nil, false, err
	}
	return counts, true, nil
}

func (c *Cache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdc.Get(ctx, genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Put is a no-op when an Invalidate happened after generation was read.
func (c *Cache) Put(ctx context.Context, generation int64, counts map[lifecycle.Status]int) error {
	payload, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	return c.rdc.Eval(ctx, putScript, []string{key, genKey},
		strconv.FormatInt(generation, 10), string(payload), c.ttl.Milliseconds()).Err()
}

// Invalidate bumps the generation before dropping the value so a refill
// racing this call cannot store counts read before the change.
func (c *Cache) Invalidate(ctx context.Context) error {
	if err := c.rdc.Incr(ctx, genKey).Err(); err != nil {
		return err
	}
	return c.rdc.Del(ctx, key).Err()
}

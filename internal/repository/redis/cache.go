package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// genTTL keeps a generation counter alive well past any in-flight load.
const genTTL = time.Hour

// luaStoreIfCurrent writes a loaded value unless the key was invalidated
// while it was being loaded.
// KEYS[1] = value key
// KEYS[2] = generation key
// ARGV[1] = generation seen before loading
// ARGV[2] = value
// ARGV[3] = ttl_ms
const luaStoreIfCurrent = `
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`

// luaInvalidate bumps each generation before dropping its value.
// KEYS = value1, gen1, value2, gen2, ...
// ARGV[1] = generation ttl_ms
const luaInvalidate = `
for i = 1, #KEYS, 2 do
  redis.call('INCR', KEYS[i + 1])
  redis.call('PEXPIRE', KEYS[i + 1], ARGV[1])
  redis.call('DEL', KEYS[i])
end
return #KEYS / 2
`

// Cache is a read-through JSON cache with generation-guarded writes: a value
// loaded before an invalidation is never stored after it.
type Cache struct {
	rdb        *redis.Client
	sf         singleflight.Group
	store      *redis.Script
	invalidate *redis.Script
}

func New(client *redis.Client) *Cache {
	return &Cache{
		rdb:        client,
		store:      redis.NewScript(luaStoreIfCurrent),
		invalidate: redis.NewScript(luaInvalidate),
	}
}

func genKey(key string) string {
	return key + ":gen"
}

// lookup reads a value and its generation in one round trip.
func (c *Cache) lookup(ctx context.Context, key string) (raw string, hit bool, gen string, err error) {
	vals, err := c.rdb.MGet(ctx, key, genKey(key)).Result()
	if err != nil {
		return "", false, "", err
	}

	gen = "0"
	if len(vals) == 2 {
		if s, ok := vals[1].(string); ok {
			gen = s
		}
		if s, ok := vals[0].(string); ok {
			return s, true, gen, nil
		}
	}

	return "", false, gen, nil
}

func (c *Cache) storeIfCurrent(ctx context.Context, key, gen, raw string, ttl time.Duration) (bool, error) {
	n, err := c.store.Run(ctx, c.rdb, []string{key, genKey(key)}, gen, raw, ttl.Milliseconds()).Int()
	return n == 1, err
}

// Invalidate drops the values and moves their generations forward.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, genKey(k))
	}

	return c.invalidate.Run(ctx, c.rdb, pairs, genTTL.Milliseconds()).Err()
}

// InvalidatePaymentStatus drops the cached status views of one order.
func (c *Cache) InvalidatePaymentStatus(ctx context.Context, preferenceID, paymentID string) error {
	var keys []string
	if preferenceID != "" {
		keys = append(keys, KeyStatusByPreference(preferenceID))
	}
	if paymentID != "" {
		keys = append(keys, KeyStatusByPayment(paymentID))
	}

	return c.Invalidate(ctx, keys...)
}

// GetOrSetJSON returns the cached value for key or loads and stores it.
// Concurrent misses under the same generation share one load. A corrupt
// cached value counts as a miss.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	raw, hit, gen, err := c.lookup(ctx, key)
	if err != nil {
		return zero, err
	}
	if hit {
		var out T
		if json.Unmarshal([]byte(raw), &out) == nil {
			return out, nil
		}
	}

	vAny, err, _ := c.sf.Do(key+"@"+gen, func() (any, error) {
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		_, _ = c.storeIfCurrent(ctx, key, gen, string(b), ttl)

		return v, nil
	})
	if err != nil {
		return zero, err
	}

	v, ok := vAny.(T)
	if !ok {
		return zero, fmt.Errorf("cache: unexpected value type %T for %s", vAny, key)
	}

	return v, nil
}

package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyTTL = 48 * time.Hour

// RedisGenerator keeps counters in Redis with INCR.
type RedisGenerator struct {
	client *redis.Client
	seed   SeedFunc
	now    func() time.Time
}

// NewRedisGenerator constructs a generator backed by Redis.
func NewRedisGenerator(client *redis.Client) *RedisGenerator {
	return &RedisGenerator{client: client, now: time.Now}
}

// WithSeed makes the generator restore a missing counter from seed before
// incrementing it, so a flushed or evicted key cannot reissue codes.
func (g *RedisGenerator) WithSeed(seed SeedFunc) *RedisGenerator {
	g.seed = seed
	return g
}

// NextCode increments seq:<prefix>:<day>. The key outlives the day so a late
// caller near midnight cannot restart the counter.
func (g *RedisGenerator) NextCode(ctx context.Context, prefix string) (string, error) {
	prefix, err := normalizePrefix(prefix)
	if err != nil {
		return "", err
	}
	day := g.now().UTC()
	key := fmt.Sprintf("seq:%s:%s", prefix, day.Format("20060102"))
	if err := g.restore(ctx, key, prefix, day); err != nil {
		return "", fmt.Errorf("sequence: seed %s: %w", prefix, err)
	}
	var incr *redis.IntCmd
	_, err = g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, redisKeyTTL)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("sequence: next %s: %w", prefix, err)
	}
	return Format(prefix, day, incr.Val()), nil
}

// restore seeds a missing key with the highest issued counter. SETNX keeps a
// counter another caller already restored.
func (g *RedisGenerator) restore(ctx context.Context, key, prefix string, day time.Time) error {
	if g.seed == nil {
		return nil
	}
	n, err := g.client.Exists(ctx, key).Result()
	if err != nil || n > 0 {
		return err
	}
	last, err := g.seed(ctx, prefix, day)
	if err != nil {
		return err
	}
	return g.client.SetNX(ctx, key, last, redisKeyTTL).Err()
}

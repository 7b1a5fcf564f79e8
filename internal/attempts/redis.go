package attempts

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "attempts:"

// RedisTracker keeps failures in one sorted set per key, scored by time.
type RedisTracker struct {
	client *redis.Client
	policy Policy
	now    func() time.Time
}

// NewRedisTracker constructs a Redis backed tracker shared across instances.
func NewRedisTracker(client *redis.Client, policy Policy) *RedisTracker {
	return &RedisTracker{client: client, policy: policy.normalized(), now: time.Now}
}

func (t *RedisTracker) count(ctx context.Context, key string) (int, error) {
	now := t.now()
	rkey := redisKeyPrefix + key
	var card *redis.IntCmd
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, rkey, "-inf", cutoffScore(now, t.policy.Window))
		card = pipe.ZCard(ctx, rkey)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(card.Val()), nil
}

// IsAllowed reports whether key is below the failure limit.
func (t *RedisTracker) IsAllowed(ctx context.Context, key string) (bool, error) {
	n, err := t.count(ctx, key)
	if err != nil {
		return false, err
	}
	return n < t.policy.Limit, nil
}

// Remaining returns how many failures key may still record.
func (t *RedisTracker) Remaining(ctx context.Context, key string) (int, error) {
	n, err := t.count(ctx, key)
	if err != nil {
		return 0, err
	}
	return remaining(t.policy.Limit, n), nil
}

// Fail records one failure for key and refreshes the key expiry.
func (t *RedisTracker) Fail(ctx context.Context, key string) error {
	now := t.now()
	rkey := redisKeyPrefix + key
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, rkey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
		pipe.ZRemRangeByScore(ctx, rkey, "-inf", cutoffScore(now, t.policy.Window))
		pipe.Expire(ctx, rkey, t.policy.Window)
		return nil
	})
	return err
}

// Clear forgets key.
func (t *RedisTracker) Clear(ctx context.Context, key string) error {
	return t.client.Del(ctx, redisKeyPrefix+key).Err()
}

// Sweep trims every tracked key and deletes the ones left empty.
func (t *RedisTracker) Sweep(ctx context.Context) (int, error) {
	removed := 0
	iter := t.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()[len(redisKeyPrefix):]
		n, err := t.count(ctx, key)
		if err != nil {
			return removed, err
		}
		if n == 0 {
			if err := t.client.Del(ctx, iter.Val()).Err(); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, iter.Err()
}

func cutoffScore(now time.Time, window time.Duration) string {
	return strconv.FormatInt(now.Add(-window).UnixNano(), 10)
}

package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T) (*RedisGenerator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	gen := NewRedisGenerator(client)
	gen.now = func() time.Time { return time.Date(2026, 10, 16, 8, 30, 0, 0, time.UTC) }
	return gen, mr
}

func TestRedisGeneratorFormatsSequentialCodes(t *testing.T) {
	gen, mr := newTestGenerator(t)
	ctx := context.Background()

	first, err := gen.NextCode(ctx, "pn")
	require.NoError(t, err)
	second, err := gen.NextCode(ctx, "PN")
	require.NoError(t, err)
	other, err := gen.NextCode(ctx, "PX")
	require.NoError(t, err)

	require.Equal(t, "PN-20261016-0001", first)
	require.Equal(t, "PN-20261016-0002", second)
	require.Equal(t, "PX-20261016-0001", other)
	require.Greater(t, mr.TTL("seq:PN:20261016"), 24*time.Hour)
}

func TestRedisGeneratorConcurrentCallersGetDistinctCodes(t *testing.T) {
	gen, _ := newTestGenerator(t)
	ctx := context.Background()

	const callers = 64
	codes := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, err := gen.NextCode(ctx, "KK")
			assert.NoError(t, err)
			codes[i] = code
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, callers)
	for _, code := range codes {
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %s", code)
		seen[code] = struct{}{}
	}
	require.Len(t, seen, callers)
}

func TestRedisGeneratorRejectsEmptyPrefix(t *testing.T) {
	gen, _ := newTestGenerator(t)
	_, err := gen.NextCode(context.Background(), "  ")
	require.ErrorIs(t, err, ErrPrefixRequired)
}

func TestFormatWidensPastFourDigits(t *testing.T) {
	day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "PX-20260102-12345", Format("PX", day, 12345))
}

func TestRedisGeneratorSeedsLostCounter(t *testing.T) {
	gen, mr := newTestGenerator(t)
	ctx := context.Background()
	stored := int64(41)
	seeds := 0
	gen.WithSeed(func(_ context.Context, prefix string, day time.Time) (int64, error) {
		require.Equal(t, "PN", prefix)
		require.Equal(t, "20261016", day.Format("20060102"))
		seeds++
		return stored, nil
	})

	first, err := gen.NextCode(ctx, "PN")
	require.NoError(t, err)
	second, err := gen.NextCode(ctx, "PN")
	require.NoError(t, err)
	require.Equal(t, "PN-20261016-0042", first)
	require.Equal(t, "PN-20261016-0043", second)
	require.Equal(t, 1, seeds)

	// a restart without persistence drops the key; the ledger holds 0043
	stored = 43
	mr.FlushAll()
	third, err := gen.NextCode(ctx, "PN")
	require.NoError(t, err)
	require.Equal(t, "PN-20261016-0044", third)
	require.Equal(t, 2, seeds)
}

func TestRedisGeneratorSeedFailureIssuesNoCode(t *testing.T) {
	gen, mr := newTestGenerator(t)
	gen.WithSeed(func(context.Context, string, time.Time) (int64, error) {
		return 0, errors.New("ledger unavailable")
	})

	_, err := gen.NextCode(context.Background(), "PX")
	require.ErrorContains(t, err, "ledger unavailable")
	require.False(t, mr.Exists("seq:PX:20261016"))
}

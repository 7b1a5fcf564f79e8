package attempts

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newMemory(clock *fakeClock) Tracker {
	tr := NewMemoryTracker(Policy{Limit: 3, Window: time.Minute})
	tr.now = clock.now
	return tr
}

func newRedis(t *testing.T, clock *fakeClock) Tracker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	tr := NewRedisTracker(client, Policy{Limit: 3, Window: time.Minute})
	tr.now = clock.now
	return tr
}

func trackers(t *testing.T) map[string]func(*fakeClock) Tracker {
	return map[string]func(*fakeClock) Tracker{
		"memory": newMemory,
		"redis":  func(c *fakeClock) Tracker { return newRedis(t, c) },
	}
}

func TestTrackerBlocksAfterLimit(t *testing.T) {
	for name, build := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeClock{t: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
			tr := build(clock)

			left, err := tr.Remaining(ctx, "7:IMPORT:1")
			require.NoError(t, err)
			require.Equal(t, 3, left)

			for i := 0; i < 3; i++ {
				ok, err := tr.IsAllowed(ctx, "7:IMPORT:1")
				require.NoError(t, err)
				require.True(t, ok)
				require.NoError(t, tr.Fail(ctx, "7:IMPORT:1"))
				clock.advance(time.Second)
			}

			ok, err := tr.IsAllowed(ctx, "7:IMPORT:1")
			require.NoError(t, err)
			require.False(t, ok)
			left, err = tr.Remaining(ctx, "7:IMPORT:1")
			require.NoError(t, err)
			require.Zero(t, left)

			other, err := tr.IsAllowed(ctx, "8:IMPORT:1")
			require.NoError(t, err)
			require.True(t, other)
		})
	}
}

func TestTrackerWindowSlides(t *testing.T) {
	for name, build := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeClock{t: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
			tr := build(clock)

			require.NoError(t, tr.Fail(ctx, "k"))
			clock.advance(30 * time.Second)
			require.NoError(t, tr.Fail(ctx, "k"))
			require.NoError(t, tr.Fail(ctx, "k"))

			clock.advance(31 * time.Second)
			left, err := tr.Remaining(ctx, "k")
			require.NoError(t, err)
			require.Equal(t, 1, left)
		})
	}
}

func TestTrackerClearAndSweep(t *testing.T) {
	for name, build := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeClock{t: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
			tr := build(clock)

			for i := 0; i < 3; i++ {
				require.NoError(t, tr.Fail(ctx, "a"))
			}
			require.NoError(t, tr.Clear(ctx, "a"))
			ok, err := tr.IsAllowed(ctx, "a")
			require.NoError(t, err)
			require.True(t, ok)

			require.NoError(t, tr.Fail(ctx, "b"))
			require.NoError(t, tr.Fail(ctx, "c"))
			clock.advance(2 * time.Minute)
			removed, err := tr.Sweep(ctx)
			require.NoError(t, err)
			require.LessOrEqual(t, removed, 2)

			left, err := tr.Remaining(ctx, "b")
			require.NoError(t, err)
			require.Equal(t, 3, left)
		})
	}
}

func TestMemorySweepEvictsStaleKeys(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	tr := NewMemoryTracker(Policy{Limit: 2, Window: time.Minute})
	tr.now = clock.now
	ctx := context.Background()

	require.NoError(t, tr.Fail(ctx, "old"))
	clock.advance(45 * time.Second)
	require.NoError(t, tr.Fail(ctx, "fresh"))
	clock.advance(30 * time.Second)

	removed, err := tr.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Len(t, tr.entries, 1)
	require.Contains(t, tr.entries, "fresh")
}

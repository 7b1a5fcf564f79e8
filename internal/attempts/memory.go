package attempts

import (
	"context"
	"sync"
	"time"
)

// MemoryTracker keeps failure timestamps in process memory.
type MemoryTracker struct {
	mu      sync.Mutex
	policy  Policy
	now     func() time.Time
	entries map[string][]time.Time
}

// NewMemoryTracker constructs an in-process tracker.
func NewMemoryTracker(policy Policy) *MemoryTracker {
	return &MemoryTracker{
		policy:  policy.normalized(),
		now:     time.Now,
		entries: make(map[string][]time.Time),
	}
}

// live drops timestamps outside the window. Callers hold mu.
func (t *MemoryTracker) live(key string, now time.Time) []time.Time {
	stamps := t.entries[key]
	cutoff := now.Add(-t.policy.Window)
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	stamps = stamps[i:]
	if len(stamps) == 0 {
		delete(t.entries, key)
		return nil
	}
	t.entries[key] = stamps
	return stamps
}

// IsAllowed reports whether key is below the failure limit.
func (t *MemoryTracker) IsAllowed(_ context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live(key, t.now())) < t.policy.Limit, nil
}

// Remaining returns how many failures key may still record.
func (t *MemoryTracker) Remaining(_ context.Context, key string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return remaining(t.policy.Limit, len(t.live(key, t.now()))), nil
}

// Fail records one failure for key.
func (t *MemoryTracker) Fail(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	stamps := append(t.live(key, now), now)
	if len(stamps) > t.policy.Limit {
		stamps = stamps[len(stamps)-t.policy.Limit:]
	}
	t.entries[key] = stamps
	return nil
}

// Clear forgets key.
func (t *MemoryTracker) Clear(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
	return nil
}

// Sweep evicts every key whose failures have all left the window.
func (t *MemoryTracker) Sweep(_ context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	before := len(t.entries)
	for key := range t.entries {
		t.live(key, now)
	}
	return before - len(t.entries), nil
}

// Package attempts throttles repeated failed actions per key within a sliding window.
package attempts

import (
	"context"
	"time"
)

// Tracker counts failures per key inside a sliding window.
type Tracker interface {
	IsAllowed(ctx context.Context, key string) (bool, error)
	Remaining(ctx context.Context, key string) (int, error)
	Fail(ctx context.Context, key string) error
	Clear(ctx context.Context, key string) error
	Sweep(ctx context.Context) (int, error)
}

// Policy bounds failures: at most Limit within Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) normalized() Policy {
	if p.Limit <= 0 {
		p.Limit = 5
	}
	if p.Window <= 0 {
		p.Window = 15 * time.Minute
	}
	return p
}

func remaining(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}

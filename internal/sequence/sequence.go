// Package sequence issues human readable document codes such as
// PN-20261016-0001. Each backend increments a per prefix, per day counter
// atomically so concurrent callers never share a code.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Generator issues document codes.
type Generator interface {
	NextCode(ctx context.Context, prefix string) (string, error)
}

// ErrPrefixRequired is returned for an empty prefix.
var ErrPrefixRequired = errors.New("sequence: prefix required")

// Format renders a code from its parts.
func Format(prefix string, day time.Time, n int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), n)
}

func normalizePrefix(prefix string) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return "", ErrPrefixRequired
	}
	return prefix, nil
}

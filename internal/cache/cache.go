// Package cache stores permission-check decisions so repeated menu
// resolutions do not re-run server-side condition evaluation.
package cache

import (
	"context"
	"strings"
	"time"
)

const (
	defaultDecisionTTL  = 30 * time.Second
	defaultMemoryBounds = 4096
	keyPrefix           = "console:permission:"
)

// DecisionCache stores boolean answers keyed by an opaque string.
type DecisionCache interface {
	Get(ctx context.Context, key string) (allowed bool, found bool, err error)
	Set(ctx context.Context, key string, allowed bool) error
}

// Key joins non-empty parts into a cache key.
func Key(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, trimmed)
	}
	return strings.Join(values, "|")
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultDecisionTTL
	}
	return ttl
}

// Package cache is a thin JSON cache abstraction. The hot read path (template
// resolution) treats it as best-effort: a cache error never fails the caller.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// GetJSON unmarshals the cached value into dst. hit is false on miss.
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

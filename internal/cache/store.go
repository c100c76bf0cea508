// Package cache provides the best-effort TTL caches the router collaborates
// with: a content cache for generated responses and a short-TTL cache for
// backend health determinations. Both degrade to always-miss when the
// underlying store is unavailable; cache trouble never fails a request.
package cache

import (
	"context"
	"time"
)

// Store is a minimal string key/value store with per-entry TTL.
type Store interface {
	// Get returns the value for key, or ok=false on miss or expiry.
	Get(ctx context.Context, key string) (value string, ok bool)
	// Set writes value under key with the given TTL. Best effort.
	Set(ctx context.Context, key string, value string, ttl time.Duration)
	// Delete removes key. Best effort.
	Delete(ctx context.Context, key string)
	// Close releases any underlying connections.
	Close() error
}

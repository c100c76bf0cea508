package cache

import (
	"context"
	"encoding/json"
	"time"

	"routerd/pkg/types"
)

// ResponseCache is the content-addressed cache for generated responses,
// keyed by (task type, prompt hash).
type ResponseCache struct {
	store Store
}

// NewResponseCache wraps a store with response-cache key conventions.
func NewResponseCache(store Store) *ResponseCache {
	return &ResponseCache{store: store}
}

func responseKey(task types.TaskType, promptHash string) string {
	return "ai_response:" + string(task) + ":" + promptHash
}

// Get returns cached content for the request key, or ok=false on miss.
func (c *ResponseCache) Get(ctx context.Context, task types.TaskType, promptHash string) (string, bool) {
	return c.store.Get(ctx, responseKey(task, promptHash))
}

// Set stores content for the request key with the given TTL.
func (c *ResponseCache) Set(ctx context.Context, task types.TaskType, promptHash, content string, ttl time.Duration) {
	c.store.Set(ctx, responseKey(task, promptHash), content, ttl)
}

// healthStatus is the wire form of a cached health determination.
type healthStatus struct {
	Healthy   bool  `json:"healthy"`
	Timestamp int64 `json:"timestamp"`
}

// HealthCache is the short-TTL cache for backend health probes.
type HealthCache struct {
	store Store
}

// NewHealthCache wraps a store with health-cache key conventions.
func NewHealthCache(store Store) *HealthCache {
	return &HealthCache{store: store}
}

func healthKey(backend string) string { return "model_status:" + backend }

// Get returns the cached determination for a backend, or ok=false on miss
// or an unparseable entry.
func (c *HealthCache) Get(ctx context.Context, backend string) (healthy bool, at time.Time, ok bool) {
	raw, found := c.store.Get(ctx, healthKey(backend))
	if !found {
		return false, time.Time{}, false
	}
	var hs healthStatus
	if err := json.Unmarshal([]byte(raw), &hs); err != nil {
		return false, time.Time{}, false
	}
	return hs.Healthy, time.Unix(hs.Timestamp, 0), true
}

// Set stores a health determination with the given TTL.
func (c *HealthCache) Set(ctx context.Context, backend string, healthy bool, ttl time.Duration) {
	raw, err := json.Marshal(healthStatus{Healthy: healthy, Timestamp: time.Now().Unix()})
	if err != nil {
		return
	}
	c.store.Set(ctx, healthKey(backend), string(raw), ttl)
}

package router

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"routerd/internal/registry"
)

// HealthStatusCache is the external short-TTL cache consulted before live
// probes. Implementations are best effort; a miss just means a live probe.
type HealthStatusCache interface {
	Get(ctx context.Context, backend string) (healthy bool, at time.Time, ok bool)
	Set(ctx context.Context, backend string, healthy bool, ttl time.Duration)
}

// healthRecord is the last known determination for one backend.
type healthRecord struct {
	healthy   bool
	checkedAt time.Time
}

// HealthTracker maintains per-backend liveness. Records are overwritten on
// every probe or failure observation and never deleted.
type HealthTracker struct {
	mu      sync.RWMutex
	records map[string]healthRecord

	reg    *registry.Registry
	cache  HealthStatusCache
	ttl    time.Duration
	client *http.Client
	log    zerolog.Logger
	now    func() time.Time
}

// NewHealthTracker builds a tracker over the given registry and probe cache.
func NewHealthTracker(reg *registry.Registry, hc HealthStatusCache, ttl time.Duration, client *http.Client, log zerolog.Logger) *HealthTracker {
	if client == nil {
		client = newHTTPClient()
	}
	return &HealthTracker{
		records: make(map[string]healthRecord),
		reg:     reg,
		cache:   hc,
		ttl:     ttl,
		client:  client,
		log:     log,
		now:     time.Now,
	}
}

// IsHealthy returns the last known determination. Backends with no record
// yet are healthy until proven otherwise.
func (h *HealthTracker) IsHealthy(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rec, ok := h.records[name]
	if !ok {
		return true
	}
	return rec.healthy
}

// LastChecked returns the timestamp of the last determination, zero if none.
func (h *HealthTracker) LastChecked(name string) time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.records[name].checkedAt
}

// MarkUnhealthy forcibly overwrites the record after a dispatch failure.
// Failures are authoritative: the probe cache is not consulted or updated,
// so a fresh probe can still detect recovery later.
func (h *HealthTracker) MarkUnhealthy(name string) {
	h.mu.Lock()
	h.records[name] = healthRecord{healthy: false, checkedAt: h.now()}
	h.mu.Unlock()
}

// markHealthy records a positive determination.
func (h *HealthTracker) markHealthy(name string, healthy bool) {
	h.mu.Lock()
	h.records[name] = healthRecord{healthy: healthy, checkedAt: h.now()}
	h.mu.Unlock()
}

// Probe determines liveness for one backend. The external cache is checked
// first; on a hit the cached boolean is returned without a live request. On
// miss the descriptor's health endpoint is queried, and the result written
// to both the tracker and the cache. Probe failures mean "unhealthy", never
// an error to the caller.
func (h *HealthTracker) Probe(ctx context.Context, name string) bool {
	b := h.reg.Get(name)
	if b == nil {
		return false
	}
	if healthy, _, ok := h.cache.Get(ctx, name); ok {
		h.markHealthy(name, healthy)
		return healthy
	}
	healthy := h.probeLive(ctx, b)
	h.markHealthy(name, healthy)
	h.cache.Set(ctx, name, healthy, h.ttl)
	return healthy
}

func (h *HealthTracker) probeLive(ctx context.Context, b *registry.Backend) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.HealthEndpoint, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("backend", b.Name).Msg("health probe request build failed")
		return false
	}
	if b.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.log.Warn().Err(err).Str("backend", b.Name).Msg("health probe failed")
		return false
	}
	defer resp.Body.Close()
	healthy := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !healthy {
		h.log.Warn().Str("backend", b.Name).Str("status", resp.Status).Msg("health probe non-success status")
	}
	return healthy
}

package router

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"routerd/internal/registry"
	"routerd/pkg/types"
)

// Selector is the pure decision logic that picks the best eligible backend
// for a request. It reads shared state but never mutates it.
type Selector struct {
	reg     *registry.Registry
	health  *HealthTracker
	load    *LoadTracker
	metrics *MetricsCollector
	log     zerolog.Logger
}

// NewSelector wires the selector over its read-only collaborators.
func NewSelector(reg *registry.Registry, health *HealthTracker, load *LoadTracker, metrics *MetricsCollector, log zerolog.Logger) *Selector {
	return &Selector{reg: reg, health: health, load: load, metrics: metrics, log: log}
}

// Select returns the best available backend for the task, skipping names in
// exclude. An unhealthy candidate gets one recovery probe per request: the
// probed set records which backends were already probed for this request so
// repeated select calls during failover never probe the same backend twice.
// ok=false means no backend is available, a normal outcome.
func (s *Selector) Select(ctx context.Context, task types.TaskType, exclude, probed map[string]struct{}) (*registry.Backend, bool) {
	var candidates []*registry.Backend
	for _, b := range s.reg.ListEligible(task) {
		if _, skip := exclude[b.Name]; skip {
			continue
		}
		if !s.health.IsHealthy(b.Name) {
			if _, done := probed[b.Name]; done {
				continue
			}
			probed[b.Name] = struct{}{}
			if !s.health.Probe(ctx, b.Name) {
				continue
			}
		}
		if s.load.Load(b.Name) >= b.MaxConcurrent {
			continue
		}
		candidates = append(candidates, b)
	}
	if len(candidates) == 0 {
		return nil, false
	}

	// Priority expresses operator intent, load balances within a tier,
	// success count favors historically reliable backends, and the name
	// tiebreak keeps the outcome deterministic.
	loads := make(map[string]int, len(candidates))
	successes := make(map[string]uint64, len(candidates))
	for _, b := range candidates {
		loads[b.Name] = s.load.Load(b.Name)
		successes[b.Name] = s.metrics.Snapshot(b.Name).SuccessfulRequests
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if loads[a.Name] != loads[b.Name] {
			return loads[a.Name] < loads[b.Name]
		}
		if successes[a.Name] != successes[b.Name] {
			return successes[a.Name] > successes[b.Name]
		}
		return a.Name < b.Name
	})

	best := candidates[0]
	s.log.Debug().Str("backend", best.Name).Str("task", string(task)).Msg("backend selected")
	return best, true
}

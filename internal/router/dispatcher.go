package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"routerd/internal/registry"
	"routerd/internal/sanitize"
	"routerd/pkg/types"
)

// PromptHash returns the content-addressed cache key component for a
// normalized prompt.
func PromptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// validateRequest checks and normalizes a route request in place.
func validateRequest(req *types.RouteRequest) error {
	if !req.Task.Valid() {
		return invalidRequestError{msg: "unknown task type: " + string(req.Task)}
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return invalidRequestError{msg: "temperature out of range [0, 2]"}
	}
	prompt, err := sanitize.ValidatePrompt(req.Prompt)
	if err != nil {
		return invalidRequestError{msg: err.Error()}
	}
	req.Prompt = prompt
	return nil
}

// Route processes one generation request: response cache lookup, then
// select/admit/execute with failover across distinct backends until success
// or exhaustion. A (nil, nil) return means no backend could produce a
// response; callers must treat that as a legitimate unavailable outcome,
// not a fault.
func (rt *Router) Route(ctx context.Context, req types.RouteRequest) (*types.RouteResponse, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	hash := PromptHash(req.Prompt)

	if content, ok := rt.responses.Get(ctx, req.Task, hash); ok {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		rt.log.Debug().Str("task", string(req.Task)).Msg("response cache hit")
		return &types.RouteResponse{
			Content:   content,
			Model:     types.CacheModelName,
			Backend:   types.CacheBackendName,
			LatencyMs: 1,
			Cached:    true,
		}, nil
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()

	// Both sets are request-scoped: attempted enforces the one-dispatch-
	// per-backend invariant, probed caps recovery probes at one per
	// backend per request.
	attempted := make(map[string]struct{})
	probed := make(map[string]struct{})
	raced := make(map[string]bool)

	for len(attempted) < rt.reg.Len() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, ok := rt.selector.Select(ctx, req.Task, attempted, probed)
		if !ok {
			break
		}
		if !rt.load.TryAdmit(b.Name, b.MaxConcurrent) {
			// Another request won the last admission slot between the
			// selector's load read and here. Re-select once for this
			// candidate, then exclude it for the rest of the request.
			if raced[b.Name] {
				attempted[b.Name] = struct{}{}
			}
			raced[b.Name] = true
			continue
		}
		attempted[b.Name] = struct{}{}
		resp, err := rt.dispatch(ctx, b, req, hash)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Failure is recorded and the backend marked unhealthy inside
		// dispatch; move on to the next candidate.
	}

	exhaustedTotal.Inc()
	rt.log.Warn().Str("task", string(req.Task)).Int("attempted", len(attempted)).Msg("all eligible backends exhausted")
	return nil, nil
}

// dispatch runs one admitted attempt against a backend. Load is released
// exactly once on every exit path.
func (rt *Router) dispatch(ctx context.Context, b *registry.Backend, req types.RouteRequest, hash string) (*types.RouteResponse, error) {
	defer rt.load.Release(b.Name)

	adapter := rt.adapters[b.Kind]
	actx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	start := time.Now()
	res, err := adapter.Execute(actx, b, req)
	latency := elapsedMs(start)
	if err != nil {
		if ctx.Err() != nil {
			// Caller abandoned the request; the backend is not at fault
			// and the result is discarded either way.
			return nil, ctx.Err()
		}
		rt.metrics.RecordAttempt(b.Name, false, 0)
		rt.health.MarkUnhealthy(b.Name)
		rt.log.Warn().Err(err).Str("backend", b.Name).Msg("backend attempt failed")
		return nil, executionError{backend: b.Name, err: err}
	}
	rt.metrics.RecordAttempt(b.Name, true, latency)

	resp := &types.RouteResponse{
		Content:    res.Content,
		Model:      res.Model,
		Backend:    b.Name,
		LatencyMs:  latency,
		TokensUsed: res.TokensUsed,
	}

	// Cache and persistence writes survive caller cancellation; the work
	// is already paid for.
	bg := context.WithoutCancel(ctx)
	rt.responses.Set(bg, req.Task, hash, res.Content, rt.responseTTL)
	if rt.sink != nil {
		go rt.record(bg, req, *resp)
	}
	rt.log.Info().Str("backend", b.Name).Str("model", res.Model).Int64("latency_ms", latency).Msg("request completed")
	return resp, nil
}

func (rt *Router) record(ctx context.Context, req types.RouteRequest, resp types.RouteResponse) {
	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rt.sink.Record(rctx, req, resp)
}

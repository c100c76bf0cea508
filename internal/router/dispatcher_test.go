package router

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"routerd/internal/cache"
	"routerd/internal/registry"
	"routerd/pkg/types"
)

func generalRequest(prompt string) types.RouteRequest {
	return types.RouteRequest{Prompt: prompt, Task: types.TaskGeneral, Temperature: 0.7}
}

func TestRouteFailoverAcrossBackends(t *testing.T) {
	reg := newTestRegistry(t,
		testBackend("a", 1, 5),
		testBackend("b", 2, 5),
		testBackend("c", 3, 5),
	)
	fa := newFakeAdapter()
	fa.fail("a", errors.New("boom"))
	fa.fail("b", errors.New("boom"))
	fa.succeed("c", "OK")
	rt, _ := newTestRouter(t, reg, fa)

	resp, err := rt.Route(context.Background(), generalRequest("hello"))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if resp == nil || resp.Content != "OK" || resp.Backend != "c" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Cached {
		t.Fatalf("fresh response flagged as cached")
	}

	order := fa.callOrder()
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("unexpected dispatch order: %v", order)
	}
	for _, name := range []string{"a", "b"} {
		if rt.health.IsHealthy(name) {
			t.Fatalf("%s should be marked unhealthy after failure", name)
		}
	}
	if !rt.health.IsHealthy("c") {
		t.Fatalf("c should stay healthy")
	}
}

func TestRouteCacheHitShortCircuits(t *testing.T) {
	reg := newTestRegistry(t, testBackend("a", 1, 5))
	fa := newFakeAdapter()
	rt, _ := newTestRouter(t, reg, fa)

	ctx := context.Background()
	rt.responses.Set(ctx, types.TaskGeneral, PromptHash("hello"), "from cache", time.Hour)

	resp, err := rt.Route(ctx, generalRequest("hello"))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !resp.Cached || resp.Content != "from cache" {
		t.Fatalf("expected cached response, got %+v", resp)
	}
	if resp.Backend != types.CacheBackendName || resp.Model != types.CacheModelName {
		t.Fatalf("cached envelope attribution wrong: %+v", resp)
	}
	if resp.LatencyMs != 1 {
		t.Fatalf("cached latency should be nominal, got %d", resp.LatencyMs)
	}
	if len(fa.callOrder()) != 0 {
		t.Fatalf("cache hit dispatched to a backend")
	}
}

func TestRouteSuccessPopulatesCache(t *testing.T) {
	reg := newTestRegistry(t, testBackend("a", 1, 5))
	fa := newFakeAdapter()
	fa.succeed("a", "fresh")
	rt, _ := newTestRouter(t, reg, fa)

	ctx := context.Background()
	first, err := rt.Route(ctx, generalRequest("hello"))
	if err != nil || first.Cached {
		t.Fatalf("first route: %+v %v", first, err)
	}
	second, err := rt.Route(ctx, generalRequest("hello"))
	if err != nil {
		t.Fatalf("second route: %v", err)
	}
	if !second.Cached || second.Content != "fresh" {
		t.Fatalf("second route should be served from cache: %+v", second)
	}
	if n := len(fa.callOrder()); n != 1 {
		t.Fatalf("expected one dispatch, got %d", n)
	}
}

func TestRouteNormalizationUnifiesCacheKeys(t *testing.T) {
	reg := newTestRegistry(t, testBackend("a", 1, 5))
	fa := newFakeAdapter()
	rt, _ := newTestRouter(t, reg, fa)

	ctx := context.Background()
	if _, err := rt.Route(ctx, generalRequest("hello world")); err != nil {
		t.Fatalf("route: %v", err)
	}
	resp, err := rt.Route(ctx, generalRequest("  hello \t world "))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !resp.Cached {
		t.Fatalf("whitespace variant missed the cache")
	}
}

func TestRouteExhaustionIsNilNil(t *testing.T) {
	reg := newTestRegistry(t, testBackend("a", 1, 5), testBackend("b", 2, 5))
	fa := newFakeAdapter()
	fa.fail("a", errors.New("down"))
	fa.fail("b", errors.New("down"))
	rt, _ := newTestRouter(t, reg, fa)

	resp, err := rt.Route(context.Background(), generalRequest("hello"))
	if err != nil {
		t.Fatalf("exhaustion must not be an error: %v", err)
	}
	if resp != nil {
		t.Fatalf("exhaustion must yield a nil response: %+v", resp)
	}

	// Each backend dispatched at most once.
	seen := map[string]int{}
	for _, name := range fa.callOrder() {
		seen[name]++
	}
	for name, n := range seen {
		if n != 1 {
			t.Fatalf("backend %s dispatched %d times", name, n)
		}
	}
}

func TestRouteReleasesLoadOnEveryPath(t *testing.T) {
	reg := newTestRegistry(t, testBackend("a", 1, 5), testBackend("b", 2, 5))
	fa := newFakeAdapter()
	fa.fail("a", errors.New("down"))
	fa.succeed("b", "ok")
	rt, _ := newTestRouter(t, reg, fa)

	if _, err := rt.Route(context.Background(), generalRequest("hello")); err != nil {
		t.Fatalf("route: %v", err)
	}
	for _, name := range []string{"a", "b"} {
		if got := rt.load.Load(name); got != 0 {
			t.Fatalf("load leaked on %s: %d", name, got)
		}
	}
}

func TestRouteRejectsInvalidRequests(t *testing.T) {
	reg := newTestRegistry(t, testBackend("a", 1, 5))
	rt, _ := newTestRouter(t, reg, newFakeAdapter())
	ctx := context.Background()

	cases := []struct {
		name string
		req  types.RouteRequest
	}{
		{"unknown task", types.RouteRequest{Prompt: "hi", Task: "poetry"}},
		{"empty prompt", types.RouteRequest{Prompt: "   ", Task: types.TaskGeneral}},
		{"temperature too high", types.RouteRequest{Prompt: "hi", Task: types.TaskGeneral, Temperature: 2.5}},
	}
	for _, tc := range cases {
		_, err := rt.Route(ctx, tc.req)
		if err == nil || !IsInvalidRequest(err) {
			t.Fatalf("%s: expected invalid request error, got %v", tc.name, err)
		}
	}
}

func TestRouteUnsupportedTaskExhaustsImmediately(t *testing.T) {
	reg := newTestRegistry(t, testBackend("a", 1, 5))
	fa := newFakeAdapter()
	rt, _ := newTestRouter(t, reg, fa)

	resp, err := rt.Route(context.Background(), types.RouteRequest{
		Prompt: "hi", Task: types.TaskClassification,
	})
	if err != nil || resp != nil {
		t.Fatalf("unsupported task should exhaust: %+v %v", resp, err)
	}
	if len(fa.callOrder()) != 0 {
		t.Fatalf("nothing should have been dispatched")
	}
}

func TestRouteHonorsCallerCancellation(t *testing.T) {
	reg := newTestRegistry(t, testBackend("a", 1, 5))
	rt, _ := newTestRouter(t, reg, newFakeAdapter())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rt.Route(ctx, generalRequest("hello"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRouteRecordsMetricsPerAttempt(t *testing.T) {
	reg := newTestRegistry(t, testBackend("a", 1, 5), testBackend("b", 2, 5))
	fa := newFakeAdapter()
	fa.fail("a", errors.New("down"))
	fa.succeed("b", "ok")
	rt, _ := newTestRouter(t, reg, fa)

	if _, err := rt.Route(context.Background(), generalRequest("hello")); err != nil {
		t.Fatalf("route: %v", err)
	}
	a := rt.metrics.Snapshot("a")
	if a.TotalRequests != 1 || a.SuccessfulRequests != 0 {
		t.Fatalf("unexpected a metrics: %+v", a)
	}
	b := rt.metrics.Snapshot("b")
	if b.TotalRequests != 1 || b.SuccessfulRequests != 1 {
		t.Fatalf("unexpected b metrics: %+v", b)
	}
}

type captureSink struct {
	ch chan types.RouteResponse
}

func (s *captureSink) Record(ctx context.Context, req types.RouteRequest, resp types.RouteResponse) {
	s.ch <- resp
}

func TestRouteForwardsServedRequestsToSink(t *testing.T) {
	reg := newTestRegistry(t, testBackend("a", 1, 5))
	fa := newFakeAdapter()
	fa.succeed("a", "recorded")
	sink := &captureSink{ch: make(chan types.RouteResponse, 1)}

	store := cache.NewMemory()
	rt, err := New(RouterConfig{
		Registry:    reg,
		Responses:   cache.NewResponseCache(store),
		HealthCache: cache.NewHealthCache(store),
		Adapters:    map[string]Adapter{"fake": fa},
		Sink:        sink,
		Logger:      nop(),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	if _, err := rt.Route(context.Background(), generalRequest("hello")); err != nil {
		t.Fatalf("route: %v", err)
	}
	select {
	case got := <-sink.ch:
		if got.Content != "recorded" || got.Backend != "a" {
			t.Fatalf("sink received %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("sink never received the served request")
	}
}

func TestRouteAdmissionRaceConservation(t *testing.T) {
	reg := newTestRegistry(t, testBackend("a", 1, 1), testBackend("b", 2, 32))
	fa := newFakeAdapter()
	// Count concurrent executions on the cap-1 backend; losing an admission
	// race must fail over or retry, never over-admit.
	var inflight, peak int32
	fa.results["a"] = func() (Result, error) {
		n := atomic.AddInt32(&inflight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return Result{Content: "ok", Model: "a-model"}, nil
	}
	fa.succeed("b", "ok")
	rt, _ := newTestRouter(t, reg, fa)

	const callers = 32
	var wg sync.WaitGroup
	errs := make([]error, callers)
	resps := make([]*types.RouteResponse, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Distinct prompts keep every call off the response cache.
			resps[i], errs[i] = rt.Route(context.Background(),
				generalRequest("prompt "+strconv.Itoa(i)))
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("route %d: %v", i, errs[i])
		}
		if resps[i] == nil {
			t.Fatalf("route %d exhausted despite available fallback", i)
		}
	}
	if p := atomic.LoadInt32(&peak); p > 1 {
		t.Fatalf("cap-1 backend saw %d concurrent executions", p)
	}
	for _, name := range []string{"a", "b"} {
		if got := rt.load.Load(name); got != 0 {
			t.Fatalf("load leaked on %s: %d", name, got)
		}
	}
}

// blockingAdapter parks every execution until the request context ends.
type blockingAdapter struct {
	started chan struct{}
}

func (a *blockingAdapter) Execute(ctx context.Context, b *registry.Backend, req types.RouteRequest) (Result, error) {
	select {
	case a.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return Result{}, ctx.Err()
}

func TestRouteReleasesLoadOnMidExecuteCancellation(t *testing.T) {
	reg := newTestRegistry(t, testBackend("a", 1, 5))
	ba := &blockingAdapter{started: make(chan struct{}, 1)}
	store := cache.NewMemory()
	rt, err := New(RouterConfig{
		Registry:    reg,
		Responses:   cache.NewResponseCache(store),
		HealthCache: cache.NewHealthCache(store),
		Adapters:    map[string]Adapter{"fake": ba},
		Logger:      nop(),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := rt.Route(ctx, generalRequest("hello"))
		done <- err
	}()

	select {
	case <-ba.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("adapter never started")
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("route did not return after cancellation")
	}
	if got := rt.load.Load("a"); got != 0 {
		t.Fatalf("load leaked after mid-execute cancellation: %d", got)
	}
	// The backend is not at fault when the caller walks away.
	if !rt.health.IsHealthy("a") {
		t.Fatalf("cancellation marked the backend unhealthy")
	}
	if s := rt.metrics.Snapshot("a"); s.TotalRequests != 0 {
		t.Fatalf("cancellation recorded an attempt: %+v", s)
	}
}

func TestNewRequiresCacheCollaborators(t *testing.T) {
	reg := newTestRegistry(t, testBackend("a", 1, 5))
	store := cache.NewMemory()

	if _, err := New(RouterConfig{
		Registry:    reg,
		HealthCache: cache.NewHealthCache(store),
		Adapters:    map[string]Adapter{"fake": newFakeAdapter()},
		Logger:      nop(),
	}); err == nil || !IsInvalidRequest(err) {
		t.Fatalf("nil response cache accepted: %v", err)
	}

	if _, err := New(RouterConfig{
		Registry:  reg,
		Responses: cache.NewResponseCache(store),
		Adapters:  map[string]Adapter{"fake": newFakeAdapter()},
		Logger:    nop(),
	}); err == nil || !IsInvalidRequest(err) {
		t.Fatalf("nil health cache accepted: %v", err)
	}
}

func TestStatsAggregation(t *testing.T) {
	reg := newTestRegistry(t, testBackend("a", 1, 5), testBackend("b", 2, 5))
	fa := newFakeAdapter()
	rt, _ := newTestRouter(t, reg, fa)

	rt.metrics.RecordAttempt("a", true, 100)
	rt.metrics.RecordAttempt("a", true, 300)
	rt.metrics.RecordAttempt("a", false, 0)
	rt.health.MarkUnhealthy("b")

	s := rt.Stats()
	if len(s.Backends) != 2 {
		t.Fatalf("expected two backends, got %d", len(s.Backends))
	}
	a := s.Backends["a"]
	if a.TotalRequests != 3 || a.SuccessfulRequests != 2 {
		t.Fatalf("unexpected a stats: %+v", a)
	}
	if a.SuccessRate != 66.67 {
		t.Fatalf("success rate not rounded to 2 decimals: %v", a.SuccessRate)
	}
	if a.AvgLatencyMs != 200 {
		t.Fatalf("unexpected average latency: %v", a.AvgLatencyMs)
	}
	if a.LastSuccessUnix == 0 {
		t.Fatalf("last success missing after recorded success")
	}
	if a.Models["general"] != "a-model" {
		t.Fatalf("model map not exposed: %+v", a.Models)
	}
	b := s.Backends["b"]
	if b.Healthy {
		t.Fatalf("b should report unhealthy")
	}
	if b.LastSuccessUnix != 0 {
		t.Fatalf("b never succeeded but reports last success")
	}
	if s.TotalRequests != 3 || s.TotalSuccessful != 2 || s.OverallSuccessRate != 66.67 {
		t.Fatalf("unexpected totals: %+v", s)
	}
}

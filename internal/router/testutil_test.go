package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"routerd/internal/cache"
	"routerd/internal/registry"
	"routerd/pkg/types"
)

func nop() zerolog.Logger { return zerolog.Nop() }

// testBackend builds an enabled backend supporting the general task.
func testBackend(name string, priority, maxConcurrent int) *registry.Backend {
	return &registry.Backend{
		Name:          name,
		Kind:          "fake",
		BaseURL:       "http://" + name + ".invalid",
		Models:        map[types.TaskType]string{types.TaskGeneral: name + "-model"},
		MaxConcurrent: maxConcurrent,
		Timeout:       5 * time.Second,
		Priority:      priority,
		Enabled:       true,
	}
}

func newTestRegistry(t *testing.T, backends ...*registry.Backend) *registry.Registry {
	t.Helper()
	r := registry.New()
	for _, b := range backends {
		if err := r.Register(b); err != nil {
			t.Fatalf("register %s: %v", b.Name, err)
		}
	}
	return r
}

// fakeAdapter scripts per-backend outcomes and records dispatch order.
type fakeAdapter struct {
	mu      sync.Mutex
	results map[string]func() (Result, error)
	calls   []string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{results: make(map[string]func() (Result, error))}
}

func (f *fakeAdapter) succeed(backend, content string) {
	f.results[backend] = func() (Result, error) {
		return Result{Content: content, Model: backend + "-model"}, nil
	}
}

func (f *fakeAdapter) fail(backend string, err error) {
	f.results[backend] = func() (Result, error) { return Result{}, err }
}

func (f *fakeAdapter) Execute(ctx context.Context, b *registry.Backend, req types.RouteRequest) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, b.Name)
	fn := f.results[b.Name]
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if fn == nil {
		return Result{Content: "ok", Model: b.Name + "-model"}, nil
	}
	return fn()
}

func (f *fakeAdapter) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// newTestRouter wires a router over in-memory caches and the fake adapter.
func newTestRouter(t *testing.T, reg *registry.Registry, fa *fakeAdapter) (*Router, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemory()
	rt, err := New(RouterConfig{
		Registry:    reg,
		Responses:   cache.NewResponseCache(store),
		HealthCache: cache.NewHealthCache(store),
		Adapters:    map[string]Adapter{"fake": fa},
		Logger:      nop(),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return rt, store
}

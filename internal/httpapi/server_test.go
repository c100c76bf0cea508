package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"routerd/internal/promptstore"
	"routerd/pkg/types"
)

type fakeService struct {
	ready bool
	stats types.StatsResponse
}

func (f *fakeService) Stats() types.StatsResponse { return f.stats }
func (f *fakeService) Ready() bool                { return f.ready }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthzReady(t *testing.T) {
	h := NewMux(&fakeService{ready: true}, nil)
	rec := get(t, h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestHealthzNotReady(t *testing.T) {
	h := NewMux(&fakeService{ready: false}, nil)
	if rec := get(t, h, "/healthz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestStatusReturnsStats(t *testing.T) {
	svc := &fakeService{
		ready: true,
		stats: types.StatsResponse{
			Backends: map[string]types.BackendStats{
				"ollama": {Healthy: true, TotalRequests: 7},
			},
			TotalRequests: 7,
		},
	}
	rec := get(t, NewMux(svc, nil), "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got types.StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalRequests != 7 || !got.Backends["ollama"].Healthy {
		t.Fatalf("unexpected stats: %+v", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type: %s", ct)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, NewMux(&fakeService{ready: true}, nil), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("empty metrics exposition")
	}
}

func TestPromptEndpointsWithoutStore(t *testing.T) {
	h := NewMux(&fakeService{ready: true}, nil)
	for _, path := range []string{"/prompts/recent", "/prompts/search?q=x"} {
		if rec := get(t, h, path); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404 without store, got %d", path, rec.Code)
		}
	}
}

func TestPromptEndpointsWithStore(t *testing.T) {
	store, err := promptstore.Open(filepath.Join(t.TempDir(), "prompts.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	store.Record(context.Background(),
		types.RouteRequest{Task: types.TaskGeneral, Prompt: "hello there"},
		types.RouteResponse{Content: "hi", Backend: "ollama", Model: "llama3"},
	)
	h := NewMux(&fakeService{ready: true}, store)

	rec := get(t, h, "/prompts/recent")
	if rec.Code != http.StatusOK {
		t.Fatalf("recent: expected 200, got %d", rec.Code)
	}
	var body struct {
		Prompts []promptstore.Record `json:"prompts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Prompts) != 1 || body.Prompts[0].Prompt != "hello there" {
		t.Fatalf("unexpected prompts: %+v", body.Prompts)
	}

	if rec := get(t, h, "/prompts/search"); rec.Code != http.StatusBadRequest {
		t.Fatalf("search without q: expected 400, got %d", rec.Code)
	}
	rec = get(t, h, "/prompts/search?q=hello")
	if rec.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", rec.Code)
	}
}

func TestQueryLimitBounds(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"", 20},
		{"abc", 20},
		{"-3", 20},
		{"7", 7},
		{"500", 100},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/prompts/recent?n="+tc.raw, nil)
		if got := queryLimit(req); got != tc.want {
			t.Fatalf("n=%q: expected %d, got %d", tc.raw, tc.want, got)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := get(t, NewMux(&fakeService{ready: true}, nil), "/healthz")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
}

package router

import (
	"context"
	"net"
	"net/http"
	"time"

	"routerd/internal/registry"
	"routerd/pkg/types"
)

// Result is what a backend adapter produces for a single attempt.
type Result struct {
	Content    string
	Model      string
	TokensUsed int
}

// Adapter shapes a request for one backend kind and executes it. An error
// return covers any non-2xx status, timeout, or transport fault; the
// dispatcher converts those into failover attempts.
type Adapter interface {
	Execute(ctx context.Context, b *registry.Backend, req types.RouteRequest) (Result, error)
}

// AdapterFor maps a descriptor kind to its adapter. The set of kinds is
// closed; config validation rejects anything else before we get here.
func AdapterFor(kind string, client *http.Client) (Adapter, bool) {
	switch kind {
	case "ollama":
		return &ollamaAdapter{client: client}, true
	case "openai":
		return &openAIAdapter{client: client}, true
	}
	return nil, false
}

// resolveModel picks the model for an attempt: an explicit override wins,
// otherwise the backend's task-type mapping decides.
func resolveModel(b *registry.Backend, req types.RouteRequest) string {
	if req.Model != "" {
		return req.Model
	}
	m, _ := b.ModelFor(req.Task)
	return m
}

// newHTTPClient builds the shared client for adapters and health probes.
// Timeout stays zero on the client itself: every request carries a
// context-based deadline taken from the backend descriptor.
func newHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: tr, Timeout: 0}
}

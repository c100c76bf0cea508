package router

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"routerd/internal/registry"
	"routerd/pkg/types"
)

// Defaults applied when corresponding RouterConfig fields are unset.
const (
	defaultResponseTTL = 2 * time.Hour
	defaultHealthTTL   = 5 * time.Minute
)

// ResponseCache is the content cache consulted at the request boundary.
// Implementations are best effort; absent or failing caches behave as
// always-miss.
type ResponseCache interface {
	Get(ctx context.Context, task types.TaskType, promptHash string) (string, bool)
	Set(ctx context.Context, task types.TaskType, promptHash, content string, ttl time.Duration)
}

// RecordSink receives served requests for persistence. Optional; recording
// is asynchronous and best effort.
type RecordSink interface {
	Record(ctx context.Context, req types.RouteRequest, resp types.RouteResponse)
}

// RouterConfig encapsulates all tunables and collaborators for Router
// construction. Registry, Responses and HealthCache are required.
type RouterConfig struct {
	Registry    *registry.Registry
	Responses   ResponseCache
	HealthCache HealthStatusCache
	ResponseTTL time.Duration
	HealthTTL   time.Duration
	// HTTPClient is shared by adapters and health probes; nil gets a
	// tuned default transport.
	HTTPClient *http.Client
	// Adapters overrides the kind-to-adapter mapping. Test hook; nil
	// builds the closed set of real adapters.
	Adapters map[string]Adapter
	Sink     RecordSink
	Logger   zerolog.Logger
}

// Router is the backend routing and failover engine. Construct with New at
// process start; there is no hidden global instance.
type Router struct {
	reg         *registry.Registry
	health      *HealthTracker
	load        *LoadTracker
	metrics     *MetricsCollector
	selector    *Selector
	adapters    map[string]Adapter
	responses   ResponseCache
	responseTTL time.Duration
	sink        RecordSink
	client      *http.Client
	log         zerolog.Logger
}

// New constructs a Router from RouterConfig.
func New(cfg RouterConfig) (*Router, error) {
	if cfg.Registry == nil {
		return nil, invalidRequestError{msg: "registry is required"}
	}
	if cfg.Responses == nil {
		return nil, invalidRequestError{msg: "response cache is required"}
	}
	if cfg.HealthCache == nil {
		return nil, invalidRequestError{msg: "health cache is required"}
	}
	if cfg.ResponseTTL <= 0 {
		cfg.ResponseTTL = defaultResponseTTL
	}
	if cfg.HealthTTL <= 0 {
		cfg.HealthTTL = defaultHealthTTL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = newHTTPClient()
	}

	adapters := cfg.Adapters
	if adapters == nil {
		adapters = make(map[string]Adapter)
		for _, b := range cfg.Registry.All() {
			if _, ok := adapters[b.Kind]; ok {
				continue
			}
			a, ok := AdapterFor(b.Kind, client)
			if !ok {
				return nil, invalidRequestError{msg: "no adapter for backend kind " + b.Kind}
			}
			adapters[b.Kind] = a
		}
	}

	load := NewLoadTracker(cfg.Logger)
	metrics := NewMetricsCollector()
	health := NewHealthTracker(cfg.Registry, cfg.HealthCache, cfg.HealthTTL, client, cfg.Logger)
	rt := &Router{
		reg:         cfg.Registry,
		health:      health,
		load:        load,
		metrics:     metrics,
		selector:    NewSelector(cfg.Registry, health, load, metrics, cfg.Logger),
		adapters:    adapters,
		responses:   cfg.Responses,
		responseTTL: cfg.ResponseTTL,
		sink:        cfg.Sink,
		client:      client,
		log:         cfg.Logger,
	}
	rt.log.Info().Int("backends", cfg.Registry.Len()).Msg("router initialized")
	return rt, nil
}

// Ready reports whether the router has at least one registered backend.
func (rt *Router) Ready() bool { return rt.reg.Len() > 0 }

// Health exposes the tracker for operational surfaces.
func (rt *Router) Health() *HealthTracker { return rt.health }

// Close releases pooled adapter connections.
func (rt *Router) Close() error {
	rt.client.CloseIdleConnections()
	return nil
}

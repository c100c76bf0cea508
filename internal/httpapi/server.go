package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"routerd/internal/promptstore"
	"routerd/pkg/types"
)

// Service defines the router methods required by the HTTP layer.
type Service interface {
	Stats() types.StatsResponse
	Ready() bool
}

// NewMux builds the operational HTTP surface: health, statistics,
// Prometheus metrics and the prompt log. The route() operation itself is
// exposed only through the Go API; there is no request transport here.
func NewMux(svc Service, prompts *promptstore.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(RequestLogger)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: []string{http.MethodGet},
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !svc.Ready() {
			writeJSONError(w, http.StatusServiceUnavailable, "no backends registered")
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Stats())
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/prompts/recent", func(w http.ResponseWriter, r *http.Request) {
		if prompts == nil {
			writeJSONError(w, http.StatusNotFound, "prompt store disabled")
			return
		}
		recs, err := prompts.Recent(r.Context(), queryLimit(r))
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "prompt store query failed")
			return
		}
		writeJSON(w, map[string]any{"prompts": recs})
	})

	r.Get("/prompts/search", func(w http.ResponseWriter, r *http.Request) {
		if prompts == nil {
			writeJSONError(w, http.StatusNotFound, "prompt store disabled")
			return
		}
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			writeJSONError(w, http.StatusBadRequest, "q is required")
			return
		}
		recs, err := prompts.Search(r.Context(), q, queryLimit(r))
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "prompt store query failed")
			return
		}
		writeJSON(w, map[string]any{"prompts": recs})
	})

	MountSwagger(r)
	return r
}

// queryLimit parses the n query parameter, bounded to [1, 100], default 20.
func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil || n <= 0 {
		return 20
	}
	if n > 100 {
		n = 100
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

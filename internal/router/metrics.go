package router

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "routerd",
			Subsystem: "router",
			Name:      "attempts_total",
			Help:      "Total dispatch attempts per backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	attemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "routerd",
			Subsystem: "router",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of successful dispatch attempts in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	inflightGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "routerd",
			Subsystem: "router",
			Name:      "inflight_requests",
			Help:      "In-flight requests per backend",
		},
		[]string{"backend"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "routerd",
			Subsystem: "router",
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result",
		},
		[]string{"result"},
	)

	exhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "routerd",
			Subsystem: "router",
			Name:      "exhausted_total",
			Help:      "Requests that exhausted every eligible backend",
		},
	)
)

func init() {
	prometheus.MustRegister(attemptsTotal, attemptDuration, inflightGauge, cacheLookupsTotal, exhaustedTotal)
}

// BackendMetrics is a read-only copy of one backend's running counters.
type BackendMetrics struct {
	TotalRequests      uint64
	SuccessfulRequests uint64
	AvgLatencyMs       float64
	LastSuccess        time.Time
}

// MetricsCollector keeps running counters and a cumulative moving average
// of latency per backend. Only the dispatcher writes to it.
type MetricsCollector struct {
	mu      sync.RWMutex
	records map[string]*BackendMetrics
	now     func() time.Time
}

// NewMetricsCollector returns an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{records: make(map[string]*BackendMetrics), now: time.Now}
}

// RecordAttempt registers the outcome of one dispatch attempt. On success
// the average latency is recomputed from the previous average and the
// successful count; failures leave the average untouched.
func (m *MetricsCollector) RecordAttempt(name string, success bool, latencyMs int64) {
	m.mu.Lock()
	rec, ok := m.records[name]
	if !ok {
		rec = &BackendMetrics{}
		m.records[name] = rec
	}
	rec.TotalRequests++
	if success {
		rec.SuccessfulRequests++
		rec.LastSuccess = m.now()
		n := float64(rec.SuccessfulRequests)
		rec.AvgLatencyMs = (rec.AvgLatencyMs*(n-1) + float64(latencyMs)) / n
	}
	m.mu.Unlock()

	outcome := "failure"
	if success {
		outcome = "success"
		attemptDuration.WithLabelValues(name).Observe(float64(latencyMs) / 1000.0)
	}
	attemptsTotal.WithLabelValues(name, outcome).Inc()
}

// Snapshot returns a copy of the counters for one backend. Unknown names
// yield a zero-value snapshot.
func (m *MetricsCollector) Snapshot(name string) BackendMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.records[name]; ok {
		return *rec
	}
	return BackendMetrics{}
}

// elapsedMs returns wall-clock milliseconds since start.
func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

package router

import (
	"sync"

	"github.com/rs/zerolog"
)

// LoadTracker counts in-flight requests per backend for admission control.
// Increments and decrements are strictly paired per dispatch attempt; the
// counter can never go negative.
type LoadTracker struct {
	mu     sync.Mutex
	counts map[string]int
	log    zerolog.Logger
}

// NewLoadTracker returns an empty tracker.
func NewLoadTracker(log zerolog.Logger) *LoadTracker {
	return &LoadTracker{counts: make(map[string]int), log: log}
}

// TryAdmit atomically checks current load against cap and increments on
// success. A false return leaves the counter untouched; the caller must
// re-select another backend.
func (l *LoadTracker) TryAdmit(name string, capacity int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[name] >= capacity {
		return false
	}
	l.counts[name]++
	inflightGauge.WithLabelValues(name).Inc()
	return true
}

// Release decrements the counter, clamped at zero. An underflow means a
// caller bug (unpaired release); it is logged, not fatal.
func (l *LoadTracker) Release(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[name] <= 0 {
		l.log.Error().Str("backend", name).Msg("load release below zero, clamping")
		l.counts[name] = 0
		return
	}
	l.counts[name]--
	inflightGauge.WithLabelValues(name).Dec()
}

// Load returns the current in-flight count for a backend. Selection reads
// this as a best-effort snapshot; TryAdmit enforces the real cap.
func (l *LoadTracker) Load(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[name]
}

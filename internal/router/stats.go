package router

import (
	"math"

	"routerd/pkg/types"
)

// Stats builds the read-only statistics report for all registered backends.
func (rt *Router) Stats() types.StatsResponse {
	resp := types.StatsResponse{Backends: make(map[string]types.BackendStats, rt.reg.Len())}
	for _, b := range rt.reg.All() {
		m := rt.metrics.Snapshot(b.Name)
		models := make(map[string]string, len(b.Models))
		for task, model := range b.Models {
			models[string(task)] = model
		}
		stats := types.BackendStats{
			Enabled:            b.Enabled,
			Healthy:            rt.health.IsHealthy(b.Name),
			CurrentLoad:        rt.load.Load(b.Name),
			MaxConcurrent:      b.MaxConcurrent,
			TotalRequests:      m.TotalRequests,
			SuccessfulRequests: m.SuccessfulRequests,
			SuccessRate:        successRate(m.SuccessfulRequests, m.TotalRequests),
			AvgLatencyMs:       round2(m.AvgLatencyMs),
			Models:             models,
		}
		if !m.LastSuccess.IsZero() {
			stats.LastSuccessUnix = m.LastSuccess.Unix()
		}
		resp.Backends[b.Name] = stats
		resp.TotalRequests += m.TotalRequests
		resp.TotalSuccessful += m.SuccessfulRequests
	}
	resp.OverallSuccessRate = successRate(resp.TotalSuccessful, resp.TotalRequests)
	return resp
}

func successRate(successful, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(successful) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package types

// TaskType is a fixed category of request intent. Each backend maps task types
// to concrete model identifiers, so the same logical request can resolve to a
// different model per backend.
type TaskType string

const (
	TaskCodeAnalysis      TaskType = "code_analysis"
	TaskComplexThinking   TaskType = "complex_thinking"
	TaskGeneral           TaskType = "general"
	TaskPromptEnhancement TaskType = "prompt_enhancement"
	TaskClassification    TaskType = "classification"
)

// AllTaskTypes returns every known task type, in a stable order.
func AllTaskTypes() []TaskType {
	return []TaskType{
		TaskCodeAnalysis,
		TaskComplexThinking,
		TaskGeneral,
		TaskPromptEnhancement,
		TaskClassification,
	}
}

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	switch t {
	case TaskCodeAnalysis, TaskComplexThinking, TaskGeneral, TaskPromptEnhancement, TaskClassification:
		return true
	}
	return false
}

// Sentinel values used on cache hits, where no backend served the request.
const (
	CacheBackendName = "cache"
	CacheModelName   = "cached"
)

// RouteRequest is a generation request submitted to the router.
type RouteRequest struct {
	// Required prompt text.
	// example: Summarize the following changelog.
	Prompt string `json:"prompt" example:"Summarize the following changelog."`
	// Task type used to pick a model on each backend.
	// example: general
	Task TaskType `json:"task_type" example:"general"`
	// Optional explicit model override. If set, it replaces the backend's
	// task-type mapping for this request.
	// example: llama3.2:latest
	Model string `json:"model,omitempty" example:"llama3.2:latest"`
	// Maximum number of tokens to generate. Zero lets the backend decide.
	// example: 512
	MaxTokens int `json:"max_tokens,omitempty" example:"512"`
	// Sampling temperature in [0.0, 2.0].
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Optional system/style instruction sent alongside the prompt.
	// example: Answer in one paragraph.
	SystemPrompt string `json:"system_prompt,omitempty" example:"Answer in one paragraph."`
}

// RouteResponse is the envelope returned for a routed request.
type RouteResponse struct {
	// Generated content.
	Content string `json:"content"`
	// Model that produced the content, or "cached" on cache hits.
	// example: gpt-4o-mini
	Model string `json:"model" example:"gpt-4o-mini"`
	// Name of the backend that served the request, or "cache" on cache hits.
	// example: ollama
	Backend string `json:"backend" example:"ollama"`
	// Wall-clock latency of the serving attempt in milliseconds.
	// example: 840
	LatencyMs int64 `json:"latency_ms" example:"840"`
	// Total tokens consumed, when the backend reports usage.
	// example: 291
	TokensUsed int `json:"tokens_used,omitempty" example:"291"`
	// True when the response came from the response cache.
	Cached bool `json:"cached"`
}

// BackendStats summarizes one backend for the statistics endpoint.
type BackendStats struct {
	// Whether the backend is enabled in configuration.
	Enabled bool `json:"enabled"`
	// Last known health determination.
	Healthy bool `json:"healthy"`
	// Requests currently in flight against this backend.
	// example: 2
	CurrentLoad int `json:"current_load" example:"2"`
	// Configured concurrency cap.
	// example: 10
	MaxConcurrent int `json:"max_concurrent" example:"10"`
	// Total dispatch attempts, including failures.
	// example: 120
	TotalRequests uint64 `json:"total_requests" example:"120"`
	// Attempts that completed successfully.
	// example: 117
	SuccessfulRequests uint64 `json:"successful_requests" example:"117"`
	// Success percentage over total attempts.
	// example: 97.5
	SuccessRate float64 `json:"success_rate" example:"97.5"`
	// Cumulative moving average latency over successful attempts, in ms.
	// example: 412.6
	AvgLatencyMs float64 `json:"avg_latency_ms" example:"412.6"`
	// Unix seconds of the last successful attempt, zero if none yet.
	// example: 1700000000
	LastSuccessUnix int64 `json:"last_success_unix,omitempty" example:"1700000000"`
	// Task type to model mapping served by this backend.
	Models map[string]string `json:"models"`
}

// StatsResponse is returned by the router's statistics operation.
type StatsResponse struct {
	// Per-backend statistics keyed by backend name.
	Backends map[string]BackendStats `json:"backends"`
	// Sum of attempts across all backends.
	// example: 240
	TotalRequests uint64 `json:"total_requests" example:"240"`
	// Sum of successful attempts across all backends.
	// example: 230
	TotalSuccessful uint64 `json:"total_successful" example:"230"`
	// Overall success percentage.
	// example: 95.8
	OverallSuccessRate float64 `json:"overall_success_rate" example:"95.8"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

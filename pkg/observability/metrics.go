// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the slidewright service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM calls and whole
// generations, ranging from 100ms to 5m.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}

var (
	// HTTPRequestsTotal counts HTTP requests by method, route pattern and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidewright_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slidewright_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "path"},
	)

	// StreamingConnections tracks open SSE and WebSocket progress streams.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slidewright_streaming_connections_active",
			Help: "Active progress streams",
		},
	)

	// TasksTotal counts finished background tasks by terminal status.
	TasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidewright_tasks_total",
			Help: "Background tasks by final status",
		},
		[]string{"status"},
	)

	// TasksActive tracks pending and running background tasks.
	TasksActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slidewright_tasks_active",
			Help: "Pending and running tasks",
		},
	)

	// TaskDuration records the run time of background tasks.
	TaskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slidewright_task_duration_seconds",
			Help:    "Task run time",
			Buckets: LLMBuckets,
		},
	)

	// CacheRequestsTotal counts cache lookups by tier (memory/file) and result (hit/miss).
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidewright_cache_requests_total",
			Help: "Cache lookups",
		},
		[]string{"tier", "result"},
	)

	// LLMRequestsTotal counts calls to LLM providers by agent and outcome.
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidewright_llm_requests_total",
			Help: "LLM provider requests",
		},
		[]string{"provider", "agent", "status"},
	)

	// LLMTokensTotal counts tokens by type (prompt/completion).
	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidewright_llm_tokens_total",
			Help: "LLM token usage",
		},
		[]string{"provider", "type"},
	)

	// LLMRequestDuration records provider latency in seconds.
	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slidewright_llm_request_duration_seconds",
			Help:    "LLM provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidewright_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		StreamingConnections,
		TasksTotal,
		TasksActive,
		TaskDuration,
		CacheRequestsTotal,
		LLMRequestsTotal,
		LLMTokensTotal,
		LLMRequestDuration,
		RateLimitRejectedTotal,
	)
}

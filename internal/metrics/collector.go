package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector aggregates the Prometheus metric families exposed by the
// service. Every collector owns its own registry so that tests can
// construct independent instances without duplicate-registration panics.
type Collector struct {
	registry *prometheus.Registry
	logger   *zap.Logger

	// HTTP server metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// Agent execution metrics
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	executionTokens   *prometheus.CounterVec

	// Tool invocation metrics
	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
}

// NewCollector builds a Collector with all metric families registered
// under the given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	c := &Collector{
		registry: registry,
		logger:   logger.Named("metrics"),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes.",
				Buckets:   prometheus.ExponentialBuckets(128, 4, 8),
			},
			[]string{"method", "path"},
		),

		executionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agent_executions_total",
				Help:      "Total number of agent executions by outcome.",
			},
			[]string{"agent", "status"},
		),
		executionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "agent_execution_duration_seconds",
				Help:      "Agent execution latency in seconds.",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"agent"},
		),
		executionTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agent_tokens_total",
				Help:      "Total tokens consumed by agent executions.",
			},
			[]string{"agent"},
		),

		toolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool invocations by outcome.",
			},
			[]string{"agent", "tool", "status"},
		),
		toolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Tool invocation latency in seconds.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"tool"},
		),
	}

	return c
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional registrations.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordHTTPRequest records one completed HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int) {
	code := statusCode(status)
	c.httpRequestsTotal.WithLabelValues(method, path, code).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if responseSize > 0 {
		c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// ObserveExecution records the outcome of a finished agent execution.
func (c *Collector) ObserveExecution(agent string, success bool, duration time.Duration, tokens int) {
	c.executionsTotal.WithLabelValues(agent, outcome(success)).Inc()
	c.executionDuration.WithLabelValues(agent).Observe(duration.Seconds())
	if tokens > 0 {
		c.executionTokens.WithLabelValues(agent).Add(float64(tokens))
	}
}

// ObserveToolCall records one tool invocation made during an execution.
func (c *Collector) ObserveToolCall(agent, tool string, success bool, duration time.Duration) {
	c.toolCallsTotal.WithLabelValues(agent, tool, outcome(success)).Inc()
	c.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// statusCode collapses an HTTP status into its class, keeping exact
// codes only for client and server errors.
func statusCode(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	default:
		return strconv.Itoa(status)
	}
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

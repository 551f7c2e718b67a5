// Package metrics provides Prometheus instrumentation for the application.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fleetdesk"

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and records
// nothing, so components can be constructed without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	inboundMessages   *prometheus.CounterVec
	duplicateMessages prometheus.Counter
	toolCalls         *prometheus.CounterVec
	reasoningRounds   prometheus.Histogram
	reasoningFailures *prometheus.CounterVec
	flowCommits       *prometheus.CounterVec
	notifications     *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		inboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound channel messages by type",
		}, []string{"type"}),
		duplicateMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_duplicates_total",
			Help:      "Inbound channel messages dropped as redeliveries",
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls requested by the reasoning service",
		}, []string{"tool", "outcome"}),
		reasoningRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reasoning_rounds",
			Help:      "Reasoning round trips per conversation turn",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12},
		}),
		reasoningFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_failures_total",
			Help:      "Conversation turns that ended without a model answer",
		}, []string{"reason"}),
		flowCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_commits_total",
			Help:      "Wizard commits by flow and outcome",
		}, []string{"flow", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Proactive notification sweep results per tenant",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.inboundMessages,
		m.duplicateMessages,
		m.toolCalls,
		m.reasoningRounds,
		m.reasoningFailures,
		m.flowCommits,
		m.notifications,
	)
	return m
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Status(404) }
	}
	handler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

func (m *Metrics) InboundMessage(messageType string) {
	if m != nil {
		m.inboundMessages.WithLabelValues(messageType).Inc()
	}
}

func (m *Metrics) DuplicateMessage() {
	if m != nil {
		m.duplicateMessages.Inc()
	}
}

func (m *Metrics) ToolCall(tool string, ok bool) {
	if m != nil {
		m.toolCalls.WithLabelValues(tool, outcome(ok)).Inc()
	}
}

func (m *Metrics) ReasoningRounds(rounds int) {
	if m != nil {
		m.reasoningRounds.Observe(float64(rounds))
	}
}

// ReasoningFailure counts a turn that ended in an apology ("error") or at the
// round ceiling ("round_limit").
func (m *Metrics) ReasoningFailure(reason string) {
	if m != nil {
		m.reasoningFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) FlowCommit(flow string, ok bool) {
	if m != nil {
		m.flowCommits.WithLabelValues(flow, outcome(ok)).Inc()
	}
}

// Notification counts sweep results: "sent", "skipped", "empty" or "failed".
func (m *Metrics) Notification(result string) {
	if m != nil {
		m.notifications.WithLabelValues(result).Inc()
	}
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

package mcpgateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/mcpmgr"
)

const (
	outcomeSuccess     = "success"
	outcomeError       = "error"
	outcomeInvalid     = "invalid"
	outcomeUnavailable = "unavailable"
)

type metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	toolCalls       *prometheus.CounterVec
	toolDuration    *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer, registry Registry) *metrics {
	f := promauto.With(reg)
	m := &metrics{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcp_gateway_http_requests_total",
				Help: "HTTP requests handled by the gateway",
			},
			[]string{"route", "method", "code"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcp_gateway_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		toolCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcp_gateway_tool_calls_total",
				Help: "Tool calls routed to MCP servers by outcome",
			},
			[]string{"server", "tool", "outcome"},
		),
		toolDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcp_gateway_tool_call_duration_seconds",
				Help:    "Duration of tool calls that reached a server",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"server", "tool"},
		),
	}
	reg.MustRegister(&serverCollector{registry: registry})
	return m
}

func (m *metrics) recordRequest(route, method, code string, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, code).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *metrics) recordToolCall(route ToolRoute, outcome string, elapsed time.Duration) {
	m.toolCalls.WithLabelValues(route.ServerKey, route.Tool, outcome).Inc()
	if outcome == outcomeSuccess || outcome == outcomeError {
		m.toolDuration.WithLabelValues(route.ServerKey, route.Tool).Observe(elapsed.Seconds())
	}
}

var serverUpDesc = prometheus.NewDesc(
	"mcp_gateway_server_up",
	"Whether the MCP server is connected (1) or not (0)",
	[]string{"server", "name"}, nil,
)

// serverCollector reports connection status at scrape time.
type serverCollector struct {
	registry Registry
}

func (c *serverCollector) Describe(ch chan<- *prometheus.Desc) { ch <- serverUpDesc }

func (c *serverCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.registry.GetServerSummaries() {
		up := 0.0
		if s.Status == mcpmgr.StatusConnected {
			up = 1
		}
		ch <- prometheus.MustNewConstMetric(serverUpDesc, prometheus.GaugeValue, up, s.Key, s.Name)
	}
}

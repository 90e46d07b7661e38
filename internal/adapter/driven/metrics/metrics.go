// Package metrics exposes publish, token refresh and HTTP metrics through
// Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PublishMetrics = (*Collector)(nil)

// Collector records metrics into a Prometheus registry.
type Collector struct {
	platformResults *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	tokenRefreshes  *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		platformResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localpulse_platform_publish_total",
			Help: "Per-platform publish attempts by result.",
		}, []string{"platform", "result", "error_kind"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localpulse_publish_outcomes_total",
			Help: "Publish requests by aggregate status.",
		}, []string{"status"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localpulse_token_refresh_total",
			Help: "Upstream token refreshes by platform and result.",
		}, []string{"platform", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localpulse_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "localpulse_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.platformResults,
		c.outcomes,
		c.tokenRefreshes,
		c.httpRequests,
		c.httpDuration,
	)

	return c
}

// RecordPublishResult counts one platform's publish result.
func (c *Collector) RecordPublishResult(result model.PublishResult) {
	outcome, kind := "success", ""
	if !result.Success {
		outcome, kind = "failure", string(result.ErrorKind)
	}
	c.platformResults.WithLabelValues(string(result.Platform), outcome, kind).Inc()
}

// RecordPublishOutcome counts one aggregate publish status.
func (c *Collector) RecordPublishOutcome(status model.PublishStatus) {
	c.outcomes.WithLabelValues(string(status)).Inc()
}

// RecordTokenRefresh counts one upstream refresh attempt sequence.
func (c *Collector) RecordTokenRefresh(platform model.Platform, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.tokenRefreshes.WithLabelValues(string(platform), result).Inc()
}

// ObserveHTTPRequest records one served HTTP request. route is the matched
// mux pattern, never the raw path.
func (c *Collector) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

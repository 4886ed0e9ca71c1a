// Package metrics registers the Prometheus vectors exposed at /metrics,
// mirroring chat-service/cmd/server/main.go's init()-registered vectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_request_duration_seconds",
		Help: "HTTP request latency by method, path, and status.",
	}, []string{"method", "path", "status"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by method, path, and status.",
	}, []string{"method", "path", "status"})

	WSConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_active",
		Help: "Currently open duplex sessions.",
	})

	WSMessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_messages_sent_total",
		Help: "Total envelopes written to sessions.",
	})

	BrokerSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "broker_subscriptions_active",
		Help: "Diagnostic counter for the broker's dynamic subscription map.",
	})
)

// GinMiddleware records request duration and count, exactly
// cmd/server/main.go's prometheusMiddleware().
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		httpRequests.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

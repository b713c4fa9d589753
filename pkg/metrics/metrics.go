// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by method, route and status.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroll_http_requests_total",
		Help: "HTTP requests processed, by method, route and status code.",
	}, []string{"method", "route", "status"})

	// RequestDuration observes request latency by route.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "classroll_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// MutationsTotal counts roster mutations by kind (create, presence,
	// presence_bulk, delete, delete_all, reset, import).
	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroll_roster_mutations_total",
		Help: "Roster mutations applied, by kind.",
	}, []string{"kind"})

	// ImportedRowsTotal counts attendee rows landed via CSV import.
	ImportedRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroll_import_rows_total",
		Help: "Attendee rows created through CSV import.",
	})

	// LiveClients tracks currently connected WebSocket subscribers.
	LiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "classroll_live_clients",
		Help: "Currently connected live-roster WebSocket clients.",
	})
)

// GinMiddleware records request counts and latency per route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

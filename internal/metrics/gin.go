package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "recruify"

// AI 评分与 JD 生成可能持续数十秒，桶上限相应放宽。
var httpBuckets = []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}

var (
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds, by route template.",
			Buckets:   httpBuckets,
		},
		[]string{"method", "route", "status"},
	)

	requestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by route template.",
		},
		[]string{"method", "route", "status"},
	)

	requestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "HTTP requests currently being served.",
		},
	)
)

// unobservedRoutes are health and scrape endpoints left out of HTTP metrics.
var unobservedRoutes = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// GinMiddleware 按路由模板记录请求量与耗时，/postings/:id 不会按 id 膨胀。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if unobservedRoutes[c.FullPath()] {
			c.Next()
			return
		}

		start := time.Now()
		requestsInFlight.Inc()
		defer requestsInFlight.Dec()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		requestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		requestTotal.WithLabelValues(c.Request.Method, route, status).Inc()
	}
}

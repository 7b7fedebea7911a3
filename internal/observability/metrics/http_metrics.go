package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request latency per route.
type HTTPMetrics struct {
	requests *prometheus.HistogramVec
}

func NewHTTPMetrics(cfg Config) *HTTPMetrics {
	return newHTTPMetrics(prometheus.DefaultRegisterer, cfg)
}

func newHTTPMetrics(registerer prometheus.Registerer, cfg Config) *HTTPMetrics {
	requests := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "console_http_request_duration_seconds",
		Help:        "HTTP request latency by route and status.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabelsFor(cfg),
	}, []string{"method", "route", "status_code"})

	return &HTTPMetrics{
		requests: registerOrExisting(registerer, requests).(*prometheus.HistogramVec),
	}
}

// GinMiddleware observes every request once the handler chain finished.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

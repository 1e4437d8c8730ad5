package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request latency for the thin HTTP adapter.
type HTTPMetrics struct {
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(cfg Config) *HTTPMetrics {
	return newHTTPMetrics(prometheus.DefaultRegisterer, cfg)
}

func newHTTPMetrics(registerer prometheus.Registerer, cfg Config) *HTTPMetrics {
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "settlekit_http_request_duration_seconds",
		Help:        "HTTP request latency by route and status.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: prometheus.Labels{"service": serviceLabel(cfg)},
	}, []string{"method", "route", "status_code"})

	if err := registerer.Register(duration); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = already.ExistingCollector.(*prometheus.HistogramVec)
		}
	}
	return &HTTPMetrics{duration: duration}
}

func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.duration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func serviceLabel(cfg Config) string {
	if cfg.ServiceName == "" {
		return "settlekit"
	}
	return cfg.ServiceName
}

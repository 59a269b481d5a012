package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request counts and latency per route template.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewHTTPMetrics(cfg Config) (*HTTPMetrics, error) {
	return newHTTPMetrics(prometheus.DefaultRegisterer, cfg)
}

func newHTTPMetrics(registerer prometheus.Registerer, cfg Config) (*HTTPMetrics, error) {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "societybill"
	}
	constLabels := prometheus.Labels{"service": serviceName}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "societybill_http_requests_total",
		Help:        "HTTP requests by route and status code.",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status_code"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "societybill_http_request_duration_seconds",
		Help:        "HTTP request latency by route.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"method", "route"})

	for _, collector := range []prometheus.Collector{requests, latency} {
		if err := registerer.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch collector {
				case requests:
					requests = already.ExistingCollector.(*prometheus.CounterVec)
				case latency:
					latency = already.ExistingCollector.(*prometheus.HistogramVec)
				}
				continue
			}
			return nil, err
		}
	}

	return &HTTPMetrics{requests: requests, latency: latency}, nil
}

// Middleware observes every request using the matched route template as label.
func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
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
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

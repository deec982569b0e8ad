package metrics

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request counts and latency per route.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
}

// NewHTTPMetrics registers HTTP instruments on the default registerer.
func NewHTTPMetrics(cfg Config) *HTTPMetrics {
	return newHTTPMetrics(prometheus.DefaultRegisterer, cfg)
}

func newHTTPMetrics(registerer prometheus.Registerer, cfg Config) *HTTPMetrics {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "creditledger"
	}
	constLabels := prometheus.Labels{"service": serviceName}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditledger_http_requests_total",
		Help:        "HTTP requests by route and status code.",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status_code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "creditledger_http_request_duration_seconds",
		Help:        "HTTP request latency by route.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"method", "route"})
	inflight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "creditledger_http_requests_inflight",
		Help:        "HTTP requests currently being served.",
		ConstLabels: constLabels,
	})

	return &HTTPMetrics{
		requests: register(registerer, requests),
		duration: register(registerer, duration),
		inflight: register(registerer, inflight),
	}
}

// register returns the already registered collector when the same descriptor
// was registered earlier in the process.
func register[C prometheus.Collector](registerer prometheus.Registerer, c C) C {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// GinMiddleware observes every request handled by the engine.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

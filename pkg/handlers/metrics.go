package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters exported on /metrics.
type Metrics struct {
	requestCount *prometheus.CounterVec
	renderCount  *prometheus.CounterVec
	failureCount *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		renderCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "articles_rendered_total",
				Help: "Articles rendered, by output format.",
			},
			[]string{"format"},
		),
		failureCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "article_failures_total",
				Help: "Articles rejected while loading or rendering, by error kind.",
			},
			[]string{"kind"},
		),
	}

	for _, c := range []prometheus.Collector{m.requestCount, m.renderCount, m.failureCount} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler counts every request except scrapes of /metrics.
func (m *Metrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestCount.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
	}
}

func (m *Metrics) rendered(format string) {
	if m == nil {
		return
	}
	m.renderCount.WithLabelValues(format).Inc()
}

func (m *Metrics) failed(kind string) {
	if m == nil {
		return
	}
	m.failureCount.WithLabelValues(kind).Inc()
}

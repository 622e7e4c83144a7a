// Package metrics exposes Prometheus collectors for the HTTP layer and the
// attempt lifecycle.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors, registered on a registry of its own.
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter    *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	AttemptsStarted   prometheus.Counter
	AttemptsSubmitted prometheus.Counter
	Selections        *prometheus.CounterVec
	AttemptScore      prometheus.Histogram
	UploadBytes       prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		AttemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attempts_started_total",
			Help: "Attempts started",
		}),
		AttemptsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attempts_submitted_total",
			Help: "Attempts submitted and archived",
		}),
		Selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheet_selections_total",
				Help: "Selection events by question kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		AttemptScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "attempt_score",
			Help:    "Scores of submitted attempts on the 0-10 scale",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}),
		UploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "upload_stored_bytes",
			Help:    "Size of stored images after re-encoding",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}

	m.registry.MustRegister(
		m.RequestCounter,
		m.RequestDuration,
		m.AttemptsStarted,
		m.AttemptsSubmitted,
		m.Selections,
		m.AttemptScore,
		m.UploadBytes,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) ObserveSelection(kind string, err error) {
	outcome := "accepted"
	if err != nil {
		outcome = "rejected"
	}
	m.Selections.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveSubmission(score float64) {
	m.AttemptsSubmitted.Inc()
	m.AttemptScore.Observe(score)
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		m.RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		m.RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

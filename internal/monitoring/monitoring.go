package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// LoginCounter counts login attempts by outcome (success, failure, throttled, error).
	LoginCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_logins_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// EnvironmentCheckCounter counts environment checks by outcome (passed, failed).
	EnvironmentCheckCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_environment_checks_total",
			Help: "Environment check submissions by outcome",
		},
		[]string{"outcome"},
	)

	// SubmissionCounter counts committed and rejected submissions by mode
	// (manual, auto, duplicate).
	SubmissionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_submissions_total",
			Help: "Exam submissions by mode",
		},
		[]string{"mode"},
	)

	// ScoreHistogram observes the number of correct answers per graded exam.
	ScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exam_score",
			Help:    "Correct answers per graded exam",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		},
	)

	// ActiveSockets tracks open autosave WebSocket connections.
	ActiveSockets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "exam_ws_connections",
			Help: "Open autosave WebSocket connections",
		},
	)

	// ResultsPersisted counts result rows handled by the result worker by outcome
	// (batch, single, requeued, dead_lettered, lost).
	ResultsPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_results_persisted_total",
			Help: "Exam result rows written to the database by outcome",
		},
		[]string{"outcome"},
	)
)

// Init registers every collector with the default registry. Call once at startup.
func Init() {
	prometheus.MustRegister(
		RequestCounter,
		RequestDuration,
		LoginCounter,
		EnvironmentCheckCounter,
		SubmissionCounter,
		ScoreHistogram,
		ActiveSockets,
		ResultsPersisted,
	)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

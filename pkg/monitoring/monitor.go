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
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 进度防跳过相关指标
	SkipAttemptCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_skip_attempts_total",
			Help: "Rejected attempts to jump ahead in sequential content",
		},
		[]string{"kind"},
	)

	SlideCompletedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "training_units_completed_total",
			Help: "Content units that passed the dwell-time check",
		},
	)

	ContentCompletedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "training_content_completed_total",
			Help: "Progress records that reached full content completion",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(SkipAttemptCounter)
	prometheus.MustRegister(SlideCompletedCounter)
	prometheus.MustRegister(ContentCompletedCounter)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	authAttempts *prometheus.CounterVec
}

// Register collectors in reg
// Use separate registry per server, so tests may create as many as they need
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bemserver_http_requests_total",
			Help: "HTTP requests handled.",
		}, []string{"method", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bemserver_http_request_duration_seconds",
			Help:    "HTTP request duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		authAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bemserver_auth_attempts_total",
			Help: "Authentication attempts by scheme and result.",
		}, []string{"scheme", "result"}),
	}
}

func (m *Metrics) ObserveAuth(scheme string, result string) {
	m.authAttempts.WithLabelValues(scheme, result).Inc()
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lw := &logWriter{
			ResponseWriter: w,
			data:           logData{responseStatus: http.StatusOK},
		}

		next.ServeHTTP(lw, r)

		m.requests.WithLabelValues(r.Method, strconv.Itoa(lw.data.responseStatus)).Inc()
		m.duration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

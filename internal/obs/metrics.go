package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// OTPSent counts successfully created OTP challenges.
	OTPSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_otp_sent_total",
		Help: "OTP challenges created.",
	})
	// OTPVerified counts successful OTP verifications.
	OTPVerified = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_otp_verified_total",
		Help: "Successful OTP verifications.",
	})
	// OTPRejected counts failed OTP verification attempts.
	OTPRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_otp_rejected_total",
		Help: "Rejected OTP verification attempts.",
	})
	// SessionsIssued counts issued session pairs (login).
	SessionsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_sessions_issued_total",
		Help: "Session token pairs issued on login.",
	})
	// TokensRotated counts successful refresh token rotations.
	TokensRotated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_tokens_rotated_total",
		Help: "Refresh tokens rotated.",
	})
	// TokensRevoked counts refresh tokens revoked via logout.
	TokensRevoked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_tokens_revoked_total",
		Help: "Refresh tokens revoked.",
	})
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpRequestsTotal, httpRequestDuration,
		OTPSent, OTPVerified, OTPRejected,
		SessionsIssued, TokensRotated, TokensRevoked,
	)
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Instrument wraps a handler with request count and latency metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
	})
}

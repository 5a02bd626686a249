package middleware

import (
	"net/http"
	"time"

	"github.com/webhookd/engine/internal/infrastructure/monitoring/prometheus"
)

// Metrics returns middleware that records every request's method, path,
// status, duration, and body sizes into the given AppMetrics.
func Metrics(metrics *prometheus.AppMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newWrappedResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			prometheus.RecordHTTPRequest(
				metrics,
				r.Method,
				r.URL.Path,
				wrapped.statusCode,
				time.Since(start),
				r.ContentLength,
				wrapped.bytesWritten,
			)
		})
	}
}

package middleware

import "net/http"

// MaxBodyBytes caps every request body at limit bytes using
// http.MaxBytesReader, so the handler's Body.Read fails once it exceeds the
// limit rather than letting an oversized CallbackConfiguration/Subscription
// payload run unbounded through JSON decoding. The middleware writes no
// response itself; the admin handlers answer the failed decode with a 400. A non-positive limit disables
// the wrapper entirely.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

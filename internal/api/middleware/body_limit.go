// Package middleware provides request body size limiting.
package middleware

import "net/http"

// DefaultMaxBodyBytes is the default max request body for API requests (1MB).
// Save submissions are a handful of numeric fields plus a layout string, so
// anything near the limit is garbage, not a legitimate run.
const DefaultMaxBodyBytes = 1 * 1024 * 1024

// MaxBodySize returns middleware that limits request body size for methods
// that may carry a body (POST, PUT, PATCH). GET/HEAD/DELETE are not limited.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// internal/app/system/ratelimit/middleware.go
package ratelimit

import (
	"encoding/json"
	"net/http"
)

// Middleware rejects requests over the limit with 429, keyed by client IP and
// the given scope. A nil Allower disables limiting.
func Middleware(a Allower, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if a == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Allow(scope + ":" + ClientIP(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mtarnawa/hanashi/internal/ratelimit"
)

// RateLimit returns middleware that counts each request against the limiter,
// keyed by a key function. Denied requests get a 429 with the window reset
// time; every response carries the remaining budget.
func RateLimit(limiter *ratelimit.Limiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := limiter.Check(keyFunc(r))

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				// Retry-After takes delta-seconds, not a timestamp.
				retryAfter := int(time.Until(result.ResetAt).Seconds()) + 1
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccountKey keys the limiter by the authenticated account, falling back to
// the client IP ahead of identity resolution.
func AccountKey(r *http.Request) string {
	if a, ok := AccountFrom(r.Context()); ok {
		return "account:" + strconv.FormatInt(a.ID, 10)
	}
	return "ip:" + RealIP(r)
}

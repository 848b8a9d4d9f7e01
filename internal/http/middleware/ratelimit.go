package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
)

// RateLimitByIP allows requests per minute from one client IP; zero or less disables it.
func RateLimitByIP(requests int) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Too many requests, try again later"})
		}),
	)
}

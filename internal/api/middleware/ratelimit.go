package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/flowhook/flowhook/internal/api/response"
	"github.com/flowhook/flowhook/internal/cache"
)

const (
	defaultRequestsPerWindow = 120
	defaultWindow            = 60 * time.Second
)

// RateLimit enforces a fixed-window request ceiling per API key prefix,
// backed by a shared Redis counter so every server instance sees the same
// count.
type RateLimit struct {
	counter cache.Counter
	limit   int
	window  time.Duration
}

func NewRateLimit(c cache.Counter, requestsPerWindow int, window time.Duration) *RateLimit {
	if requestsPerWindow <= 0 {
		requestsPerWindow = defaultRequestsPerWindow
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &RateLimit{counter: c, limit: requestsPerWindow, window: window}
}

// Limit counts the request against the key prefix set by Authenticate. The
// counter backend failing open is deliberate: losing rate limiting briefly is
// better than rejecting valid events.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix, ok := getKeyPrefix(r)
		if !ok {
			// Authenticate did not run on this route; nothing to count.
			next.ServeHTTP(w, r)
			return
		}

		count, err := rl.counter.IncrWithExpiry(r.Context(), cache.RateLimitKey(prefix), rl.window)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.limit - int(count)
		if remaining < 0 {
			remaining = 0
		}

		windowSecs := int(rl.window.Seconds())
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(rl.window).Unix(), 10))

		if count > int64(rl.limit) {
			w.Header().Set("Retry-After", strconv.Itoa(windowSecs))
			response.Error(w, http.StatusTooManyRequests,
				response.CodeRateLimited, "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"net/http"

	"github.com/mcoot/gamerelay/internal/api/apierr"
	"github.com/mcoot/gamerelay/internal/middleware"
)

// RateLimit answers requests over the per-client limit with a JSON 429
func RateLimit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	return middleware.RateLimit(rl, func(w http.ResponseWriter, _ *http.Request) {
		apierr.WriteError(w, apierr.NewRateLimitedError())
	})
}

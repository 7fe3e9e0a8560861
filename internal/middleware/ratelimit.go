package middleware

import (
	"log/slog"
	"net/http"

	"github.com/sitepulse/sitepulse/internal/httputil"
	"github.com/sitepulse/sitepulse/internal/logging"
	"github.com/sitepulse/sitepulse/internal/ratelimit"
)

// RateLimit applies the per-app ingestion rate limiter.
// Runs after APIKeyAuth so the app ID is the limiter key; falls back to the
// client IP for unauthenticated paths.
type RateLimit struct {
	limiter ratelimit.RateLimiter
}

func NewRateLimit(limiter ratelimit.RateLimiter) *RateLimit {
	return &RateLimit{limiter: limiter}
}

func (m *RateLimit) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := httputil.GetClientIP(r)
		if app := AppFromContext(r.Context()); app != nil {
			key = app.ID
		}

		allowed, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			// Fail open: an unavailable limiter must not block ingestion.
			logging.Default().WarnContext(r.Context(), "rate limiter unavailable", slog.String("error", err.Error()))
			next(w, r)
			return
		}
		if !allowed {
			httputil.WriteError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next(w, r)
	}
}

package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sitepulse/sitepulse/internal/handlers"
	"github.com/sitepulse/sitepulse/internal/middleware"
)

// NewRouter constructs a ServeMux with all API routes registered.
func NewRouter(
	authHandler *handlers.AuthHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	apiKeyAuth *middleware.APIKeyAuth,
	rateLimit *middleware.RateLimit,
) http.Handler {
	mux := http.NewServeMux()

	// App registration (public - the raw key is returned here exactly once)
	mux.HandleFunc("POST /auth/register", authHandler.Register)

	// Revocation authenticates via the x-api-key header inside the handler:
	// a revoked key must still match so the caller can observe AlreadyRevoked.
	mux.HandleFunc("POST /auth/revoke", authHandler.Revoke)

	// App details by ID (never includes key material)
	mux.HandleFunc("GET /auth/api-key/{appId}", authHandler.GetApp)

	// Event ingestion (requires a verified, non-revoked key; rate limited per app)
	mux.HandleFunc("POST /analytics/collect",
		apiKeyAuth.Require(rateLimit.Limit(analyticsHandler.Collect)))

	// Aggregate queries (public)
	mux.HandleFunc("GET /analytics/event-summary", analyticsHandler.EventSummary)
	mux.HandleFunc("GET /analytics/user-stats", analyticsHandler.UserStats)

	// Health check and metrics (public)
	mux.HandleFunc("GET /health", authHandler.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}

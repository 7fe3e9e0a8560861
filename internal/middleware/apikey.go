package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/sitepulse/sitepulse/internal/httputil"
	"github.com/sitepulse/sitepulse/internal/models"
	"github.com/sitepulse/sitepulse/internal/service"
)

// APIKeyHeader is the header carrying the raw app key.
const APIKeyHeader = "x-api-key"

const appKey = contextKey("app-record")

// APIKeyAuth verifies the x-api-key header and stores the matched app
// record in the request context.
type APIKeyAuth struct {
	auth *service.AuthService
}

func NewAPIKeyAuth(auth *service.AuthService) *APIKeyAuth {
	return &APIKeyAuth{auth: auth}
}

// Require wraps a handler that needs a verified, non-revoked app.
func (m *APIKeyAuth) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get(APIKeyHeader)

		app, err := m.auth.VerifyKey(r.Context(), rawKey)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrMissingKey):
				httputil.WriteError(w, http.StatusUnauthorized, "Missing API key")
			case errors.Is(err, service.ErrInvalidKey):
				httputil.WriteError(w, http.StatusUnauthorized, "Invalid API key")
			case errors.Is(err, service.ErrRevoked):
				httputil.WriteError(w, http.StatusForbidden, "API key revoked")
			default:
				httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
			}
			return
		}

		ctx := context.WithValue(r.Context(), appKey, app)
		next(w, r.WithContext(ctx))
	}
}

// AppFromContext returns the app record stored by Require.
// Returns nil if the request did not pass API-key auth.
func AppFromContext(ctx context.Context) *models.App {
	if app, ok := ctx.Value(appKey).(*models.App); ok {
		return app
	}
	return nil
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sitepulse/sitepulse/internal/httputil"
	"github.com/sitepulse/sitepulse/internal/middleware"
	"github.com/sitepulse/sitepulse/internal/models"
	"github.com/sitepulse/sitepulse/internal/repository"
	"github.com/sitepulse/sitepulse/internal/service"
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// writeValidationError renders a 400 with field-level detail.
func writeValidationError(w http.ResponseWriter, verr *models.ValidationError) {
	httputil.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
		"message": verr.Error(),
		"fields":  verr.Fields,
	})
}

// Register creates an app and returns its API key. The key is shown here
// exactly once and cannot be retrieved again.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.Register(r.Context(), &req)
	if err != nil {
		var verr *models.ValidationError
		switch {
		case errors.As(err, &verr):
			writeValidationError(w, verr)
		case errors.Is(err, repository.ErrDuplicateOwner):
			httputil.WriteError(w, http.StatusConflict, "This email is already registered with an app")
		default:
			httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// Revoke permanently disables an app's key. The presented key must belong
// to the app named in the body. Revoked keys still authenticate this call
// far enough to observe AlreadyRevoked.
func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	rawKey := r.Header.Get(middleware.APIKeyHeader)

	var req models.RevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
	}

	err := h.service.Revoke(r.Context(), req.AppID, rawKey)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingKey):
			httputil.WriteError(w, http.StatusUnauthorized, "Missing API key")
		case errors.Is(err, service.ErrInvalidKey):
			httputil.WriteError(w, http.StatusUnauthorized, "Invalid API key")
		case errors.Is(err, service.ErrForbidden):
			httputil.WriteError(w, http.StatusForbidden, "AppId does not belong to this app")
		case errors.Is(err, repository.ErrAlreadyRevoked):
			httputil.WriteError(w, http.StatusBadRequest, "API key is already revoked")
		default:
			httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "API key revoked successfully"})
}

// GetApp returns the public details of an app by ID. Key material is
// never included.
func (h *AuthHandler) GetApp(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("appId")
	if _, err := uuid.Parse(appID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid appId format")
		return
	}

	app, err := h.service.GetApp(r.Context(), appID)
	if err != nil {
		if errors.Is(err, repository.ErrAppNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "App not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, app)
}

// HealthCheck reports service liveness.
func (h *AuthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

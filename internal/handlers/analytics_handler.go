package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sitepulse/sitepulse/internal/httputil"
	"github.com/sitepulse/sitepulse/internal/middleware"
	"github.com/sitepulse/sitepulse/internal/models"
	"github.com/sitepulse/sitepulse/internal/service"
)

type AnalyticsHandler struct {
	service *service.AnalyticsService
}

func NewAnalyticsHandler(service *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// Collect records one event for the authenticated app.
func (h *AnalyticsHandler) Collect(w http.ResponseWriter, r *http.Request) {
	app := middleware.AppFromContext(r.Context())
	if app == nil {
		httputil.WriteError(w, http.StatusUnauthorized, "Missing API key")
		return
	}

	var req models.CollectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	clientIP := httputil.GetClientIP(r)
	userAgent := r.Header.Get("User-Agent")

	_, err := h.service.Collect(r.Context(), app, &req, clientIP, userAgent)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"message": "Event collected"})
}

// EventSummary serves the cached aggregate summary for an event type.
func (h *AnalyticsHandler) EventSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := &models.SummaryQuery{
		Event:     q.Get("event"),
		AppID:     q.Get("app_id"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	}

	summary, err := h.service.EventSummary(r.Context(), query)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, summary)
}

// UserStats serves per-user activity aggregates.
func (h *AnalyticsHandler) UserStats(w http.ResponseWriter, r *http.Request) {
	query := &models.UserStatsQuery{UserID: r.URL.Query().Get("userId")}

	stats, err := h.service.UserStats(r.Context(), query)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, stats)
}

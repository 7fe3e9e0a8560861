package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepulse/sitepulse/internal/handlers"
	"github.com/sitepulse/sitepulse/internal/middleware"
	"github.com/sitepulse/sitepulse/internal/ratelimit"
	"github.com/sitepulse/sitepulse/internal/repository"
	"github.com/sitepulse/sitepulse/internal/server"
	"github.com/sitepulse/sitepulse/internal/service"
)

func newTestServer(t *testing.T, limiter ratelimit.RateLimiter) http.Handler {
	t.Helper()
	if limiter == nil {
		limiter = &ratelimit.NoOpRateLimiter{}
	}

	repo := repository.NewInMemoryRepository()
	authService := service.NewAuthService(repo)
	analyticsService := service.NewAnalyticsService(repo, nil)

	return server.NewRouter(
		handlers.NewAuthHandler(authService),
		handlers.NewAnalyticsHandler(analyticsService),
		middleware.NewAPIKeyAuth(authService),
		middleware.NewRateLimit(limiter),
	)
}

func doJSON(t *testing.T, h http.Handler, method, path, apiKey string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}

	req := httptest.NewRequest(method, path, &reqBody)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(middleware.APIKeyHeader, apiKey)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded),
			"body was not JSON: %s", rec.Body.String())
	}
	return rec, decoded
}

func registerApp(t *testing.T, h http.Handler, email string) (appID, apiKey string) {
	t.Helper()
	rec, body := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"name":       "Test App",
		"ownerEmail": email,
	})
	require.Equal(t, http.StatusCreated, rec.Code, "register failed: %v", body)
	return body["appId"].(string), body["apiKey"].(string)
}

func TestRegisterEndpoint(t *testing.T) {
	h := newTestServer(t, nil)

	rec, body := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"name":       "My Site",
		"ownerEmail": "owner@example.com",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, body["appId"])
	assert.Len(t, body["apiKey"], 64)
	assert.Contains(t, body["message"], "will not be shown again")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRegisterEndpointValidation(t *testing.T) {
	h := newTestServer(t, nil)

	rec, body := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, body["fields"])
}

func TestRegisterEndpointDuplicateOwner(t *testing.T) {
	h := newTestServer(t, nil)
	registerApp(t, h, "owner@example.com")

	rec, body := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"name":       "Second Site",
		"ownerEmail": "owner@example.com",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "This email is already registered with an app", body["message"])
}

func TestRegisterEndpointMalformedBody(t *testing.T) {
	h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("{broken"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCollectEndpointAuth(t *testing.T) {
	h := newTestServer(t, nil)
	event := map[string]interface{}{"event": "click"}

	t.Run("missing key", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodPost, "/analytics/collect", "", event)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Missing API key", body["message"])
	})

	t.Run("invalid key", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodPost, "/analytics/collect", "bogus-key", event)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid API key", body["message"])
	})
}

func TestCollectEndpointValidation(t *testing.T) {
	h := newTestServer(t, nil)
	_, apiKey := registerApp(t, h, "owner@example.com")

	rec, body := doJSON(t, h, http.MethodPost, "/analytics/collect", apiKey,
		map[string]interface{}{"url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, body["fields"])
}

func TestAppLifecycle(t *testing.T) {
	h := newTestServer(t, nil)

	appID, apiKey := registerApp(t, h, "owner@example.com")

	// Collect an event with the fresh key.
	rec, body := doJSON(t, h, http.MethodPost, "/analytics/collect", apiKey, map[string]interface{}{
		"event":  "signup",
		"userId": "u1",
		"device": "desktop",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Event collected", body["message"])

	// The event is visible in the summary immediately.
	rec, body = doJSON(t, h, http.MethodGet, "/analytics/event-summary?event=signup&app_id="+appID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, float64(1), body["uniqueUsers"])

	// Revoke the key.
	rec, body = doJSON(t, h, http.MethodPost, "/auth/revoke", apiKey, map[string]string{"appId": appID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "API key revoked successfully", body["message"])

	// The revoked key can no longer ingest.
	rec, body = doJSON(t, h, http.MethodPost, "/analytics/collect", apiKey,
		map[string]interface{}{"event": "signup"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "API key revoked", body["message"])

	// A second revoke is observable as already-revoked, not unauthorized.
	rec, body = doJSON(t, h, http.MethodPost, "/auth/revoke", apiKey, map[string]string{"appId": appID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "API key is already revoked", body["message"])
}

func TestRevokeEndpointForbidden(t *testing.T) {
	h := newTestServer(t, nil)

	_, firstKey := registerApp(t, h, "first@example.com")
	secondID, _ := registerApp(t, h, "second@example.com")

	rec, body := doJSON(t, h, http.MethodPost, "/auth/revoke", firstKey, map[string]string{"appId": secondID})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "AppId does not belong to this app", body["message"])
}

func TestRevokeEndpointMissingKey(t *testing.T) {
	h := newTestServer(t, nil)
	appID, _ := registerApp(t, h, "owner@example.com")

	rec, body := doJSON(t, h, http.MethodPost, "/auth/revoke", "", map[string]string{"appId": appID})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Missing API key", body["message"])
}

func TestGetAppEndpoint(t *testing.T) {
	h := newTestServer(t, nil)
	appID, apiKey := registerApp(t, h, "owner@example.com")

	rec, body := doJSON(t, h, http.MethodGet, "/auth/api-key/"+appID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, appID, body["id"])
	assert.Equal(t, "owner@example.com", body["ownerEmail"])
	assert.NotContains(t, rec.Body.String(), apiKey, "key material must never be returned")

	rec, _ = doJSON(t, h, http.MethodGet, "/auth/api-key/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = doJSON(t, h, http.MethodGet, "/auth/api-key/"+uuid.New().String(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "App not found", body["message"])
}

func TestEventSummaryEndpointValidation(t *testing.T) {
	h := newTestServer(t, nil)

	rec, body := doJSON(t, h, http.MethodGet, "/analytics/event-summary", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, body["fields"])

	rec, _ = doJSON(t, h, http.MethodGet, "/analytics/event-summary?event=click&startDate=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserStatsEndpoint(t *testing.T) {
	h := newTestServer(t, nil)
	_, apiKey := registerApp(t, h, "owner@example.com")

	for i := 0; i < 3; i++ {
		rec, _ := doJSON(t, h, http.MethodPost, "/analytics/collect", apiKey, map[string]interface{}{
			"event":  "click",
			"userId": "u1",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, body := doJSON(t, h, http.MethodGet, "/analytics/user-stats?userId=u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", body["userId"])
	assert.Equal(t, float64(3), body["totalEvents"])
	assert.Len(t, body["recentEvents"], 3)

	t.Run("unknown user is empty, not an error", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodGet, "/analytics/user-stats?userId=nobody", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(0), body["totalEvents"])
	})

	t.Run("missing userId", func(t *testing.T) {
		rec, _ := doJSON(t, h, http.MethodGet, "/analytics/user-stats", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCollectEndpointRateLimited(t *testing.T) {
	h := newTestServer(t, blockAfter(2))
	_, apiKey := registerApp(t, h, "owner@example.com")

	for i := 0; i < 2; i++ {
		rec, _ := doJSON(t, h, http.MethodPost, "/analytics/collect", apiKey,
			map[string]interface{}{"event": "click"})
		require.Equal(t, http.StatusCreated, rec.Code, "request %d", i+1)
	}

	rec, body := doJSON(t, h, http.MethodPost, "/analytics/collect", apiKey,
		map[string]interface{}{"event": "click"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Rate limit exceeded", body["message"])
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestServer(t, nil)

	rec, body := doJSON(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// blockAfter returns a limiter that allows n requests then rejects.
func blockAfter(n int) ratelimit.RateLimiter {
	return &countingLimiter{remaining: n}
}

type countingLimiter struct {
	remaining int
}

func (l *countingLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.remaining <= 0 {
		return false, nil
	}
	l.remaining--
	return true, nil
}

func (l *countingLimiter) Close() error { return nil }

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mileusna/useragent"
	"github.com/sitepulse/sitepulse/internal/cache"
	"github.com/sitepulse/sitepulse/internal/logging"
	"github.com/sitepulse/sitepulse/internal/metrics"
	"github.com/sitepulse/sitepulse/internal/models"
	"github.com/sitepulse/sitepulse/internal/repository"
)

// recentEventLimit caps the event list returned by UserStats.
const recentEventLimit = 50

// AnalyticsService records events and serves cached aggregate summaries.
type AnalyticsService struct {
	repo  repository.Repository
	cache cache.SummaryCache
	log   *logging.Logger
}

func NewAnalyticsService(repo repository.Repository, summaryCache cache.SummaryCache) *AnalyticsService {
	if summaryCache == nil {
		summaryCache = cache.NoOpSummaryCache{}
	}
	return &AnalyticsService{repo: repo, cache: summaryCache, log: logging.Default()}
}

// Collect validates and persists one event for a verified, non-revoked app,
// then invalidates the summaries it would change. Returns the event ID.
func (s *AnalyticsService) Collect(ctx context.Context, app *models.App, req *models.CollectRequest, clientIP, rawUserAgent string) (int64, error) {
	if err := req.Validate(); err != nil {
		metrics.EventsTotal.WithLabelValues("invalid").Inc()
		return 0, err
	}

	ua := useragent.Parse(rawUserAgent)

	device := req.Device
	if device == "" {
		device = ua.Device
	}
	if device == "" {
		device = "unknown"
	}

	ipAddress := req.IPAddress
	if ipAddress == "" {
		ipAddress = clientIP
	}

	timestamp := time.Now()
	if req.Timestamp != "" {
		// Malformed timestamps were rejected by Validate.
		timestamp, _ = models.ParseTimestamp(req.Timestamp)
	}

	metadata := make(map[string]interface{}, len(req.Metadata)+4)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	// Derived fields fill in only where the client did not supply them.
	setDerived(metadata, "browser", ua.Name)
	setDerived(metadata, "os", ua.OS)
	setDerived(metadata, "screenSize", ua.Device)
	if req.UserID != "" {
		metadata[models.MetadataUserIDKey] = req.UserID
	}

	event := &models.Event{
		AppID:     app.ID,
		EventType: req.Event,
		URL:       req.URL,
		Referrer:  req.Referrer,
		Device:    device,
		IPAddress: ipAddress,
		Timestamp: timestamp,
		Metadata:  metadata,
	}

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		metrics.EventsTotal.WithLabelValues("error").Inc()
		return 0, err
	}

	// Best-effort: a failed invalidation means a stale read for up to the
	// cache TTL, which is an accepted tradeoff. Never fails the request.
	s.cache.InvalidateEvent(ctx, app.ID, event.EventType)

	metrics.EventsTotal.WithLabelValues("ok").Inc()
	return event.ID, nil
}

func setDerived(metadata map[string]interface{}, key, value string) {
	if _, exists := metadata[key]; exists {
		return
	}
	if value == "" {
		value = "unknown"
	}
	metadata[key] = value
}

// EventSummary returns count, unique users and device breakdown for a
// filtered event window, served from cache when fresh.
func (s *AnalyticsService) EventSummary(ctx context.Context, query *models.SummaryQuery) (*models.EventSummary, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	filter := query.Filter()

	if cached, ok := s.cache.GetSummary(ctx, filter); ok {
		metrics.SummaryCacheHits.Inc()
		return cached, nil
	}
	metrics.SummaryCacheMisses.Inc()

	start := time.Now()

	count, err := s.repo.CountEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	uniqueUsers, err := s.repo.CountUniqueUsers(ctx, filter)
	if err != nil {
		return nil, err
	}
	deviceData, err := s.repo.DeviceBreakdown(ctx, filter)
	if err != nil {
		return nil, err
	}

	metrics.SummaryDuration.Observe(time.Since(start).Seconds())

	summary := &models.EventSummary{
		Event:       query.Event,
		Count:       count,
		UniqueUsers: uniqueUsers,
		DeviceData:  deviceData,
	}

	s.cache.SetSummary(ctx, filter, summary)
	return summary, nil
}

// UserStats aggregates activity for a single end-user identifier.
// An unknown user yields an empty result set, not an error.
func (s *AnalyticsService) UserStats(ctx context.Context, query *models.UserStatsQuery) (*models.UserStats, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	events, err := s.repo.EventsByUser(ctx, query.UserID, recentEventLimit)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountEventsByUser(ctx, query.UserID)
	if err != nil {
		return nil, err
	}

	stats := &models.UserStats{
		UserID:        query.UserID,
		TotalEvents:   total,
		DeviceDetails: map[string]string{},
		RecentEvents:  make([]*models.RecentEvent, 0, len(events)),
	}

	if len(events) > 0 {
		latest := events[0]
		if browser := latest.MetadataString("browser"); browser != "" {
			stats.DeviceDetails["browser"] = browser
		}
		if os := latest.MetadataString("os"); os != "" {
			stats.DeviceDetails["os"] = os
		}
		if latest.IPAddress != "" {
			ip := latest.IPAddress
			stats.IPAddress = &ip
		}
	}

	for _, e := range events {
		stats.RecentEvents = append(stats.RecentEvents, &models.RecentEvent{
			ID:        e.ID,
			EventType: e.EventType,
			Timestamp: e.Timestamp,
			Metadata:  e.Metadata,
		})
	}

	if len(events) == 0 {
		s.log.DebugContext(ctx, "user stats for unknown user", slog.String("user_id", query.UserID))
	}

	return stats, nil
}

package models

import "time"

// MetadataUserIDKey is the metadata field holding the end-user identifier.
// Events without it are excluded from unique-user counts.
const MetadataUserIDKey = "userId"

// Event is an immutable analytics record owned by exactly one app.
type Event struct {
	ID        int64                  `json:"id"`
	AppID     string                 `json:"appId"`
	EventType string                 `json:"eventType"`
	URL       string                 `json:"url,omitempty"`
	Referrer  string                 `json:"referrer,omitempty"`
	Device    string                 `json:"device,omitempty"`
	IPAddress string                 `json:"ipAddress,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// MetadataUserID returns the end-user identifier from metadata,
// or empty string if absent or not a string.
func (e *Event) MetadataUserID() string {
	if e.Metadata == nil {
		return ""
	}
	if v, ok := e.Metadata[MetadataUserIDKey].(string); ok {
		return v
	}
	return ""
}

// MetadataString returns a string metadata field, or empty string if absent.
func (e *Event) MetadataString(key string) string {
	if e.Metadata == nil {
		return ""
	}
	if v, ok := e.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// EventSummary is the cached aggregate over a filtered event window.
type EventSummary struct {
	Event       string           `json:"event"`
	Count       int64            `json:"count"`
	UniqueUsers int64            `json:"uniqueUsers"`
	DeviceData  map[string]int64 `json:"deviceData"`
}

// EventFilter bounds a summary computation. Zero values mean "unbounded"
// and "all apps" respectively.
type EventFilter struct {
	EventType string
	AppID     string
	Start     time.Time
	End       time.Time
}

// Matches reports whether the event falls inside the filter window.
func (f *EventFilter) Matches(e *Event) bool {
	if e.EventType != f.EventType {
		return false
	}
	if f.AppID != "" && e.AppID != f.AppID {
		return false
	}
	if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.Timestamp.After(f.End) {
		return false
	}
	return true
}

// UserStats aggregates per-user activity: total event count, the device
// details and source IP of the single most recent event, and up to the
// 50 newest events.
type UserStats struct {
	UserID        string            `json:"userId"`
	TotalEvents   int64             `json:"totalEvents"`
	DeviceDetails map[string]string `json:"deviceDetails"`
	IPAddress     *string           `json:"ipAddress"`
	RecentEvents  []*RecentEvent    `json:"recentEvents"`
}

// RecentEvent is the trimmed event view returned by user stats.
type RecentEvent struct {
	ID        int64                  `json:"id"`
	EventType string                 `json:"eventType"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

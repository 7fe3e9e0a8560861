package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level detail for a malformed request.
// Handlers map it to HTTP 400.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// orNil returns nil when no fields were recorded, so callers can
// `if err := req.Validate(); err != nil` without a typed-nil trap.
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// timestampLayouts are the accepted formats for client-supplied timestamps
// and date bounds: full RFC3339 or a bare date.
var timestampLayouts = []string{time.RFC3339, "2006-01-02"}

// ParseTimestamp parses a client-supplied timestamp string.
func ParseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func validURI(s string) bool {
	u, err := url.ParseRequestURI(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// RegisterRequest registers a new app and issues its API key.
type RegisterRequest struct {
	Name       string `json:"name"`
	OwnerEmail string `json:"ownerEmail"`
}

func (r *RegisterRequest) Validate() error {
	v := &ValidationError{}
	if len(strings.TrimSpace(r.Name)) < 2 {
		v.add("name", "must be at least 2 characters")
	}
	if r.OwnerEmail == "" {
		v.add("ownerEmail", "is required")
	} else if !strings.Contains(r.OwnerEmail, "@") {
		v.add("ownerEmail", "must be a valid email address")
	}
	return v.orNil()
}

// RegisterResponse returns the raw key exactly once.
type RegisterResponse struct {
	AppID   string `json:"appId"`
	APIKey  string `json:"apiKey"`
	Message string `json:"message"`
}

// CollectRequest is a single analytics event submission.
type CollectRequest struct {
	Event     string                 `json:"event"`
	UserID    string                 `json:"userId,omitempty"`
	URL       string                 `json:"url,omitempty"`
	Referrer  string                 `json:"referrer,omitempty"`
	Device    string                 `json:"device,omitempty"`
	IPAddress string                 `json:"ipAddress,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (r *CollectRequest) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(r.Event) == "" {
		v.add("event", "is required")
	}
	if r.URL != "" && !validURI(r.URL) {
		v.add("url", "must be a valid URI")
	}
	if r.Referrer != "" && !validURI(r.Referrer) {
		v.add("referrer", "must be a valid URI")
	}
	if r.Timestamp != "" {
		if _, err := ParseTimestamp(r.Timestamp); err != nil {
			v.add("timestamp", "must be an ISO-8601 timestamp")
		}
	}
	return v.orNil()
}

// SummaryQuery filters an aggregate summary computation.
type SummaryQuery struct {
	Event     string `json:"event"`
	AppID     string `json:"app_id,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

func (q *SummaryQuery) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(q.Event) == "" {
		v.add("event", "is required")
	}
	if q.StartDate != "" {
		if _, err := ParseTimestamp(q.StartDate); err != nil {
			v.add("startDate", "must be an ISO-8601 date")
		}
	}
	if q.EndDate != "" {
		if _, err := ParseTimestamp(q.EndDate); err != nil {
			v.add("endDate", "must be an ISO-8601 date")
		}
	}
	return v.orNil()
}

// Filter converts a validated query into an EventFilter.
// Validate must have been called first; parse errors are ignored here.
func (q *SummaryQuery) Filter() EventFilter {
	f := EventFilter{EventType: q.Event, AppID: q.AppID}
	if q.StartDate != "" {
		f.Start, _ = ParseTimestamp(q.StartDate)
	}
	if q.EndDate != "" {
		f.End, _ = ParseTimestamp(q.EndDate)
	}
	return f
}

// RevokeRequest permanently disables an app's key.
type RevokeRequest struct {
	AppID string `json:"appId"`
}

func (r *RevokeRequest) Validate() error {
	v := &ValidationError{}
	if r.AppID == "" {
		v.add("appId", "is required")
	}
	return v.orNil()
}

// UserStatsQuery selects events by end-user identifier.
type UserStatsQuery struct {
	UserID string `json:"userId"`
}

func (q *UserStatsQuery) Validate() error {
	v := &ValidationError{}
	if q.UserID == "" {
		v.add("userId", "is required")
	}
	return v.orNil()
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	verr, ok := err.(*ValidationError)
	require.True(t, ok, "expected *ValidationError, got %T", err)
	names := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		names[i] = f.Field
	}
	return names
}

func TestRegisterRequestValidate(t *testing.T) {
	tests := []struct {
		name      string
		req       RegisterRequest
		wantField string
	}{
		{
			name: "valid",
			req:  RegisterRequest{Name: "Site A", OwnerEmail: "a@x.com"},
		},
		{
			name:      "name too short",
			req:       RegisterRequest{Name: "a", OwnerEmail: "a@x.com"},
			wantField: "name",
		},
		{
			name:      "missing email",
			req:       RegisterRequest{Name: "Site A"},
			wantField: "ownerEmail",
		},
		{
			name:      "malformed email",
			req:       RegisterRequest{Name: "Site A", OwnerEmail: "not-an-email"},
			wantField: "ownerEmail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, fieldNames(t, err), tt.wantField)
		})
	}
}

func TestCollectRequestValidate(t *testing.T) {
	tests := []struct {
		name      string
		req       CollectRequest
		wantField string
	}{
		{
			name: "minimal valid",
			req:  CollectRequest{Event: "click"},
		},
		{
			name: "full valid",
			req: CollectRequest{
				Event:     "page_view",
				URL:       "https://example.com/page",
				Referrer:  "https://google.com",
				Timestamp: "2025-11-15T19:00:00Z",
				Metadata:  map[string]interface{}{"plan": "pro"},
			},
		},
		{
			name:      "missing event",
			req:       CollectRequest{},
			wantField: "event",
		},
		{
			name:      "blank event",
			req:       CollectRequest{Event: "   "},
			wantField: "event",
		},
		{
			name:      "malformed url",
			req:       CollectRequest{Event: "click", URL: "not a url"},
			wantField: "url",
		},
		{
			name:      "malformed referrer",
			req:       CollectRequest{Event: "click", Referrer: "::::"},
			wantField: "referrer",
		},
		{
			name:      "malformed timestamp",
			req:       CollectRequest{Event: "click", Timestamp: "yesterday"},
			wantField: "timestamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, fieldNames(t, err), tt.wantField)
		})
	}
}

func TestCollectRequestValidateMultipleFields(t *testing.T) {
	req := CollectRequest{URL: "bogus", Timestamp: "bogus"}
	err := req.Validate()
	require.Error(t, err)

	names := fieldNames(t, err)
	assert.ElementsMatch(t, []string{"event", "url", "timestamp"}, names)
	assert.Contains(t, err.Error(), "event")
}

func TestSummaryQueryValidateAndFilter(t *testing.T) {
	q := SummaryQuery{
		Event:     "click",
		AppID:     "app-1",
		StartDate: "2025-11-01",
		EndDate:   "2025-11-15T19:00:00Z",
	}
	require.NoError(t, q.Validate())

	f := q.Filter()
	assert.Equal(t, "click", f.EventType)
	assert.Equal(t, "app-1", f.AppID)
	assert.Equal(t, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), f.Start)
	assert.Equal(t, time.Date(2025, 11, 15, 19, 0, 0, 0, time.UTC), f.End)

	// Unbounded sentinels
	open := SummaryQuery{Event: "click"}
	require.NoError(t, open.Validate())
	of := open.Filter()
	assert.True(t, of.Start.IsZero())
	assert.True(t, of.End.IsZero())
	assert.Empty(t, of.AppID)

	bad := SummaryQuery{Event: "click", StartDate: "n/a"}
	require.Error(t, bad.Validate())
	assert.Contains(t, fieldNames(t, bad.Validate()), "startDate")
}

func TestEventFilterMatches(t *testing.T) {
	base := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	event := &Event{AppID: "app-1", EventType: "click", Timestamp: base}

	tests := []struct {
		name   string
		filter EventFilter
		want   bool
	}{
		{"type match, all apps", EventFilter{EventType: "click"}, true},
		{"type mismatch", EventFilter{EventType: "page_view"}, false},
		{"app match", EventFilter{EventType: "click", AppID: "app-1"}, true},
		{"app mismatch", EventFilter{EventType: "click", AppID: "app-2"}, false},
		{"inside window", EventFilter{EventType: "click", Start: base.Add(-time.Hour), End: base.Add(time.Hour)}, true},
		{"before window", EventFilter{EventType: "click", Start: base.Add(time.Minute)}, false},
		{"after window", EventFilter{EventType: "click", End: base.Add(-time.Minute)}, false},
		{"boundary inclusive", EventFilter{EventType: "click", Start: base, End: base}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(event))
		})
	}
}

func TestEventMetadataUserID(t *testing.T) {
	assert.Empty(t, (&Event{}).MetadataUserID())
	assert.Empty(t, (&Event{Metadata: map[string]interface{}{"userId": 42}}).MetadataUserID())
	assert.Equal(t, "u1", (&Event{Metadata: map[string]interface{}{"userId": "u1"}}).MetadataUserID())
}

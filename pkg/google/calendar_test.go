package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

func fixedClock() time.Time {
	return time.Date(2026, 8, 28, 15, 42, 0, 0, time.UTC)
}

// fakeCalendarServer serves a canned events list and records the query.
func fakeCalendarServer(t *testing.T, body string, query *map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if query != nil {
			q := map[string]string{}
			for k := range r.URL.Query() {
				q[k] = r.URL.Query().Get(k)
			}
			*query = q
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testCalendarClient(srv *httptest.Server) *CalendarClient {
	return &CalendarClient{
		endpoint:   srv.URL,
		httpClient: srv.Client(),
		now:        fixedClock,
		location:   time.UTC,
	}
}

func TestDayWindow(t *testing.T) {
	start, end := dayWindow(fixedClock())

	wantStart := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want local midnight", start)
	}
	if end.Sub(start) != 24*time.Hour {
		t.Errorf("window = %v, want 24h", end.Sub(start))
	}
}

func TestTodayEventsQueryBounds(t *testing.T) {
	var query map[string]string
	srv := fakeCalendarServer(t, `{"items":[]}`, &query)
	c := testCalendarClient(srv)

	if _, err := c.TodayEvents(context.Background()); err != nil {
		t.Fatalf("TodayEvents failed: %v", err)
	}

	if query["timeMin"] != "2026-08-28T00:00:00Z" {
		t.Errorf("timeMin = %q", query["timeMin"])
	}
	if query["timeMax"] != "2026-08-29T00:00:00Z" {
		t.Errorf("timeMax = %q", query["timeMax"])
	}
	if query["singleEvents"] != "true" || query["orderBy"] != "startTime" {
		t.Errorf("query = %v, want singleEvents ordered by startTime", query)
	}
}

func TestNormalizeEvents(t *testing.T) {
	items := []*calendar.Event{
		{
			Summary: "Standup",
			Start:   &calendar.EventDateTime{DateTime: "2026-08-28T09:00:00Z"},
			End:     &calendar.EventDateTime{DateTime: "2026-08-28T10:00:00Z"},
		},
		{
			Summary: "Conference",
			Start:   &calendar.EventDateTime{Date: "2026-08-28"},
			End:     &calendar.EventDateTime{Date: "2026-08-29"},
		},
		{
			Start: &calendar.EventDateTime{DateTime: "2026-08-28T13:30:00Z"},
			End:   &calendar.EventDateTime{DateTime: "2026-08-28T14:00:00Z"},
		},
		{
			Summary: "Broken",
			Start:   &calendar.EventDateTime{DateTime: "not-a-time"},
			End:     &calendar.EventDateTime{DateTime: "2026-08-28T14:00:00Z"},
		},
	}

	got := normalizeEvents(items, time.UTC)
	if len(got) != 3 {
		t.Fatalf("normalizeEvents returned %d events, want 3 (unparseable dropped)", len(got))
	}

	if got[0].Summary != "Standup" || got[0].StartTime != "09:00 AM" || got[0].EndTime != "10:00 AM" {
		t.Errorf("timed event = %+v", got[0])
	}
	if got[1].StartTime != "All day" || got[1].EndTime != "All day" {
		t.Errorf("date-only event should be labeled All day, got %+v", got[1])
	}
	if got[2].Summary != "Untitled Event" {
		t.Errorf("missing summary should default to Untitled Event, got %q", got[2].Summary)
	}
	if got[2].StartTime != "01:30 PM" {
		t.Errorf("afternoon start = %q, want 01:30 PM", got[2].StartTime)
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		hour, minute int
		want         string
	}{
		{9, 0, "09:00 AM"},
		{15, 30, "03:30 PM"},
		{0, 5, "12:05 AM"},
		{12, 0, "12:00 PM"},
	}
	for _, tt := range tests {
		ts := time.Date(2026, 8, 28, tt.hour, tt.minute, 0, 0, time.UTC)
		if got := formatClock(ts); got != tt.want {
			t.Errorf("formatClock(%02d:%02d) = %q, want %q", tt.hour, tt.minute, got, tt.want)
		}
	}
}

func TestTodayEventsJSON(t *testing.T) {
	srv := fakeCalendarServer(t, `{"items":[
		{"summary":"Standup",
		 "start":{"dateTime":"2026-08-28T09:00:00Z"},
		 "end":{"dateTime":"2026-08-28T10:00:00Z"}}
	]}`, nil)
	c := testCalendarClient(srv)

	got, err := c.TodayEventsJSON(context.Background())
	if err != nil {
		t.Fatalf("TodayEventsJSON failed: %v", err)
	}

	want := `[
  {
    "summary": "Standup",
    "start_time": "09:00 AM",
    "end_time": "10:00 AM"
  }
]`
	if got != want {
		t.Errorf("TodayEventsJSON = %s\nwant %s", got, want)
	}
}

func TestTodayEventsJSONEmptyDay(t *testing.T) {
	srv := fakeCalendarServer(t, `{"items":[]}`, nil)
	c := testCalendarClient(srv)

	got, err := c.TodayEventsJSON(context.Background())
	if err != nil {
		t.Fatalf("TodayEventsJSON failed: %v", err)
	}
	if got != "[]" {
		t.Errorf("empty day should encode as [], got %q", got)
	}
}

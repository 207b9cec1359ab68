package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Calendar query bounds.
const maxCalendarResults = 50

// CalendarEvent is the normalized event shape handed back to the model:
// a title and 12-hour clock times, or "All day" for date-only events.
type CalendarEvent struct {
	Summary   string `json:"summary"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// CalendarClient answers the get_calendar_events tool: today's events on the
// primary calendar, normalized for the model.
type CalendarClient struct {
	auth *Manager

	// Test seams; zero values mean production behavior.
	endpoint   string
	httpClient *http.Client
	now        func() time.Time
	location   *time.Location
}

// NewCalendarClient creates a calendar client backed by the credential
// manager.
func NewCalendarClient(auth *Manager) *CalendarClient {
	return &CalendarClient{auth: auth}
}

// TodayEvents returns the normalized events for the caller's local day,
// ordered by start time.
func (c *CalendarClient) TodayEvents(ctx context.Context) ([]CalendarEvent, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	loc := c.loc()
	start, end := dayWindow(c.clock().In(loc))

	res, err := svc.Events.List("primary").
		TimeMin(start.UTC().Format(time.RFC3339)).
		TimeMax(end.UTC().Format(time.RFC3339)).
		MaxResults(maxCalendarResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("google: calendar query failed: %w", err)
	}

	return normalizeEvents(res.Items, loc), nil
}

// TodayEventsJSON returns TodayEvents pretty-printed as a JSON array, the
// format the model consumes.
func (c *CalendarClient) TodayEventsJSON(ctx context.Context) (string, error) {
	events, err := c.TodayEvents(ctx)
	if err != nil {
		return "", err
	}
	if events == nil {
		events = []CalendarEvent{}
	}

	b, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return "", fmt.Errorf("google: failed to encode events: %w", err)
	}
	return string(b), nil
}

func (c *CalendarClient) service(ctx context.Context) (*calendar.Service, error) {
	if c.endpoint != "" {
		return calendar.NewService(ctx,
			option.WithEndpoint(c.endpoint),
			option.WithHTTPClient(c.httpClient))
	}

	hc, err := c.auth.Client(ctx)
	if err != nil {
		return nil, err
	}
	return calendar.NewService(ctx, option.WithHTTPClient(hc))
}

func (c *CalendarClient) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *CalendarClient) loc() *time.Location {
	if c.location != nil {
		return c.location
	}
	return time.Local
}

// dayWindow returns [local midnight, local midnight + 24h). The provider's
// timeMax is exclusive, so the end bound needs no adjustment.
func dayWindow(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.Add(24 * time.Hour)
}

// normalizeEvents reduces provider events to the compact tool output.
// Timed events get local 12-hour clock times; date-only events are labeled
// "All day" rather than dropped.
func normalizeEvents(items []*calendar.Event, loc *time.Location) []CalendarEvent {
	var out []CalendarEvent
	for _, ev := range items {
		if ev == nil {
			continue
		}

		summary := ev.Summary
		if summary == "" {
			summary = "Untitled Event"
		}

		startRaw := eventDateTime(ev.Start)
		endRaw := eventDateTime(ev.End)

		if startRaw != "" && endRaw != "" {
			start, errS := time.Parse(time.RFC3339, startRaw)
			end, errE := time.Parse(time.RFC3339, endRaw)
			if errS != nil || errE != nil {
				continue
			}
			out = append(out, CalendarEvent{
				Summary:   summary,
				StartTime: formatClock(start.In(loc)),
				EndTime:   formatClock(end.In(loc)),
			})
			continue
		}

		out = append(out, CalendarEvent{
			Summary:   summary,
			StartTime: "All day",
			EndTime:   "All day",
		})
	}
	return out
}

func eventDateTime(t *calendar.EventDateTime) string {
	if t == nil {
		return ""
	}
	return t.DateTime
}

// formatClock renders a 12-hour clock time like "09:00 AM".
func formatClock(t time.Time) string {
	return t.Format("03:04 PM")
}

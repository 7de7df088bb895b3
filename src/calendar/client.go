package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/auth/credentials"
	"cloud.google.com/go/auth/httptransport"

	"github.com/square-key-labs/saloncall-ai/src/logger"
	"github.com/square-key-labs/saloncall-ai/src/services"
)

const (
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"
	calendarScope  = "https://www.googleapis.com/auth/calendar"

	lookupHorizonDays = 90
	lookupMaxEvents   = 50
)

// Config carries everything the client needs before Connect
type Config struct {
	CalendarID      string
	CredentialsFile string
	Location        *time.Location
	OpenHour        int
	CloseHour       int

	// BaseURL and HTTPClient override the Google endpoint and authenticated
	// transport, used by tests
	BaseURL    string
	HTTPClient *http.Client
}

// Client talks to the Google Calendar v3 REST API. New never fails; Connect
// performs credential detection and must succeed before any calendar
// operation is usable.
type Client struct {
	config Config

	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

func New(config Config) *Client {
	if config.Location == nil {
		config.Location = time.UTC
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		config:  config,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		log:     logger.WithPrefix("calendar"),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	if c.config.HTTPClient != nil {
		c.httpClient = c.config.HTTPClient
		return nil
	}
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsFile: c.config.CredentialsFile,
		Scopes:          []string{calendarScope},
	})
	if err != nil {
		return fmt.Errorf("detect calendar credentials: %w", err)
	}
	client, err := httptransport.NewClient(&httptransport.Options{
		Credentials: creds,
	})
	if err != nil {
		return fmt.Errorf("build calendar transport: %w", err)
	}
	c.httpClient = client
	c.log.Info("connected to calendar %s", c.config.CalendarID)
	return nil
}

// Connected reports whether Connect has succeeded
func (c *Client) Connected() bool {
	return c.httpClient != nil
}

type eventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type reminderOverride struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

type eventReminders struct {
	UseDefault bool               `json:"useDefault"`
	Overrides  []reminderOverride `json:"overrides,omitempty"`
}

type event struct {
	ID          string          `json:"id,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Description string          `json:"description,omitempty"`
	Start       *eventTime      `json:"start,omitempty"`
	End         *eventTime      `json:"end,omitempty"`
	Reminders   *eventReminders `json:"reminders,omitempty"`
	HTMLLink    string          `json:"htmlLink,omitempty"`
	Status      string          `json:"status,omitempty"`
}

type eventList struct {
	Items []event `json:"items"`
}

// resolve parses an event boundary into salon-local time. All-day events
// carry only a date and resolve to local midnight.
func (et *eventTime) resolve(loc *time.Location) (time.Time, error) {
	if et == nil {
		return time.Time{}, fmt.Errorf("event time missing")
	}
	if et.DateTime != "" {
		t, err := time.Parse(time.RFC3339, et.DateTime)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse event time %q: %w", et.DateTime, err)
		}
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation("2006-01-02", et.Date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse event date %q: %w", et.Date, err)
	}
	return t, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.httpClient == nil {
		return services.ErrUnavailable
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode calendar request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build calendar request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendar request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("calendar API %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode calendar response: %w", err)
		}
	}
	return nil
}

func (c *Client) eventsPath(suffix string) string {
	return "/calendars/" + url.PathEscape(c.config.CalendarID) + "/events" + suffix
}

func (c *Client) listEvents(ctx context.Context, from, to time.Time, maxResults int) ([]event, error) {
	q := url.Values{}
	q.Set("timeMin", from.Format(time.RFC3339))
	q.Set("timeMax", to.Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	if maxResults > 0 {
		q.Set("maxResults", fmt.Sprintf("%d", maxResults))
	}
	var list eventList
	if err := c.do(ctx, http.MethodGet, c.eventsPath(""), q, nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// matchesStylist reports whether an event belongs to the named stylist,
// by case-insensitive substring over summary and description
func matchesStylist(ev event, stylist string) bool {
	if stylist == "" {
		return true
	}
	needle := strings.ToLower(stylist)
	return strings.Contains(strings.ToLower(ev.Summary), needle) ||
		strings.Contains(strings.ToLower(ev.Description), needle)
}

// AvailableSlots lists open slots on a date, optionally narrowed to one
// stylist's schedule. date is YYYY-MM-DD in the salon timezone.
func (c *Client) AvailableSlots(ctx context.Context, date string, durationMinutes int, stylist string) ([]Slot, error) {
	day, err := time.ParseInLocation("2006-01-02", date, c.config.Location)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}
	dayStart := day.Add(time.Duration(c.config.OpenHour) * time.Hour)
	dayEnd := day.Add(time.Duration(c.config.CloseHour) * time.Hour)

	events, err := c.listEvents(ctx, dayStart, dayEnd, 0)
	if err != nil {
		return nil, err
	}
	var busy []Interval
	for _, ev := range events {
		if ev.Status == "cancelled" || !matchesStylist(ev, stylist) {
			continue
		}
		start, err := ev.Start.resolve(c.config.Location)
		if err != nil {
			c.log.Warn("skipping event %s: %v", ev.ID, err)
			continue
		}
		end, err := ev.End.resolve(c.config.Location)
		if err != nil {
			c.log.Warn("skipping event %s: %v", ev.ID, err)
			continue
		}
		busy = append(busy, Interval{Start: start, End: end})
	}
	return FindOpenSlots(busy, dayStart, dayEnd, time.Duration(durationMinutes)*time.Minute), nil
}

// CreateRequest describes a new appointment
type CreateRequest struct {
	CustomerName    string
	Phone           string
	Service         string
	Stylist         string
	Date            string
	StartTime       string
	DurationMinutes int
	Notes           string
}

// Appointment is the stored form of a booking returned to the caller
type Appointment struct {
	EventID   string `json:"event_id"`
	Summary   string `json:"summary"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Link      string `json:"link,omitempty"`
}

func (c *Client) CreateAppointment(ctx context.Context, req CreateRequest) (*Appointment, error) {
	start, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.StartTime, c.config.Location)
	if err != nil {
		return nil, fmt.Errorf("parse appointment time: %w", err)
	}
	end := start.Add(time.Duration(req.DurationMinutes) * time.Minute)

	var desc strings.Builder
	fmt.Fprintf(&desc, "Customer: %s\n", req.CustomerName)
	fmt.Fprintf(&desc, "Phone: %s\n", req.Phone)
	fmt.Fprintf(&desc, "Service: %s\n", req.Service)
	if req.Stylist != "" {
		fmt.Fprintf(&desc, "Stylist: %s\n", req.Stylist)
	}
	if req.Notes != "" {
		fmt.Fprintf(&desc, "Notes: %s\n", req.Notes)
	}

	body := event{
		Summary:     fmt.Sprintf("%s - %s", req.Service, req.CustomerName),
		Description: desc.String(),
		Start:       &eventTime{DateTime: start.Format(time.RFC3339)},
		End:         &eventTime{DateTime: end.Format(time.RFC3339)},
		Reminders: &eventReminders{
			Overrides: []reminderOverride{{Method: "popup", Minutes: 60}},
		},
	}
	var created event
	if err := c.do(ctx, http.MethodPost, c.eventsPath(""), nil, body, &created); err != nil {
		return nil, err
	}
	c.log.Info("booked %q at %s %s", created.Summary, req.Date, req.StartTime)
	return &Appointment{
		EventID:   created.ID,
		Summary:   created.Summary,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   end.Format("15:04"),
		Link:      created.HTMLLink,
	}, nil
}

// FindAppointments searches upcoming events for a customer by name or phone.
// At least one identifier must be given.
func (c *Client) FindAppointments(ctx context.Context, name, phone string) ([]Appointment, error) {
	if name == "" && phone == "" {
		return nil, fmt.Errorf("a customer name or phone number is required")
	}
	now := time.Now().In(c.config.Location)
	events, err := c.listEvents(ctx, now, now.AddDate(0, 0, lookupHorizonDays), lookupMaxEvents)
	if err != nil {
		return nil, err
	}
	var matches []Appointment
	for _, ev := range events {
		if ev.Status == "cancelled" {
			continue
		}
		haystack := strings.ToLower(ev.Summary + "\n" + ev.Description)
		if name != "" && !strings.Contains(haystack, strings.ToLower(name)) {
			continue
		}
		if phone != "" && !strings.Contains(haystack, phone) {
			continue
		}
		start, err := ev.Start.resolve(c.config.Location)
		if err != nil {
			continue
		}
		end, err := ev.End.resolve(c.config.Location)
		if err != nil {
			continue
		}
		matches = append(matches, Appointment{
			EventID:   ev.ID,
			Summary:   ev.Summary,
			Date:      start.Format("2006-01-02"),
			StartTime: start.Format("15:04"),
			EndTime:   end.Format("15:04"),
		})
	}
	return matches, nil
}

// UpdateAppointment moves an event to a new date and start time, keeping its
// original duration
func (c *Client) UpdateAppointment(ctx context.Context, eventID, date, startTime string) (*Appointment, error) {
	var existing event
	if err := c.do(ctx, http.MethodGet, c.eventsPath("/"+url.PathEscape(eventID)), nil, nil, &existing); err != nil {
		return nil, err
	}
	oldStart, err := existing.Start.resolve(c.config.Location)
	if err != nil {
		return nil, err
	}
	oldEnd, err := existing.End.resolve(c.config.Location)
	if err != nil {
		return nil, err
	}
	duration := oldEnd.Sub(oldStart)

	newStart, err := time.ParseInLocation("2006-01-02 15:04", date+" "+startTime, c.config.Location)
	if err != nil {
		return nil, fmt.Errorf("parse new appointment time: %w", err)
	}
	newEnd := newStart.Add(duration)

	patch := event{
		Start: &eventTime{DateTime: newStart.Format(time.RFC3339)},
		End:   &eventTime{DateTime: newEnd.Format(time.RFC3339)},
	}
	var updated event
	if err := c.do(ctx, http.MethodPatch, c.eventsPath("/"+url.PathEscape(eventID)), nil, patch, &updated); err != nil {
		return nil, err
	}
	c.log.Info("rescheduled %q to %s %s", updated.Summary, date, startTime)
	return &Appointment{
		EventID:   updated.ID,
		Summary:   updated.Summary,
		Date:      date,
		StartTime: startTime,
		EndTime:   newEnd.Format("15:04"),
	}, nil
}

// DeleteAppointment cancels an event, returning the summary of what was
// removed
func (c *Client) DeleteAppointment(ctx context.Context, eventID string) (*Appointment, error) {
	var existing event
	if err := c.do(ctx, http.MethodGet, c.eventsPath("/"+url.PathEscape(eventID)), nil, nil, &existing); err != nil {
		return nil, err
	}
	start, _ := existing.Start.resolve(c.config.Location)
	if err := c.do(ctx, http.MethodDelete, c.eventsPath("/"+url.PathEscape(eventID)), nil, nil, nil); err != nil {
		return nil, err
	}
	c.log.Info("cancelled %q", existing.Summary)
	appt := &Appointment{EventID: eventID, Summary: existing.Summary}
	if !start.IsZero() {
		appt.Date = start.Format("2006-01-02")
		appt.StartTime = start.Format("15:04")
	}
	return appt, nil
}

package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Config{
		CalendarID: "salon@test",
		Location:   time.UTC,
		OpenHour:   9,
		CloseHour:  19,
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	return c, srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestClientBeforeConnect(t *testing.T) {
	c := New(Config{CalendarID: "salon@test", OpenHour: 9, CloseHour: 19})
	if c.Connected() {
		t.Fatal("client should not report connected before Connect")
	}
	if _, err := c.AvailableSlots(context.Background(), "2026-09-14", 60, ""); err == nil {
		t.Fatal("expected error before Connect")
	}
}

func TestAvailableSlotsFiltersStylist(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendars/salon@test/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, eventList{Items: []event{
			{
				ID:          "e1",
				Summary:     "Haircut - Dana",
				Description: "Customer: Dana\nStylist: Maria\n",
				Start:       &eventTime{DateTime: "2026-09-14T10:00:00Z"},
				End:         &eventTime{DateTime: "2026-09-14T11:00:00Z"},
			},
			{
				ID:          "e2",
				Summary:     "Color - Lee",
				Description: "Customer: Lee\nStylist: Josh\n",
				Start:       &eventTime{DateTime: "2026-09-14T14:00:00Z"},
				End:         &eventTime{DateTime: "2026-09-14T15:00:00Z"},
			},
		}})
	})
	c, _ := newTestClient(t, mux)

	slots, err := c.AvailableSlots(context.Background(), "2026-09-14", 60, "maria")
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, s := range slots {
		seen[s.StartTime] = true
	}
	if seen["10:00"] {
		t.Error("maria is busy at 10:00, slot must be absent")
	}
	if !seen["14:00"] {
		t.Error("josh's 14:00 booking must not block maria")
	}
}

func TestCreateAppointment(t *testing.T) {
	var captured event
	mux := http.NewServeMux()
	mux.HandleFunc("POST /calendars/salon@test/events", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		captured.ID = "evt-123"
		captured.HTMLLink = "https://calendar.test/evt-123"
		writeJSON(t, w, captured)
	})
	c, _ := newTestClient(t, mux)

	appt, err := c.CreateAppointment(context.Background(), CreateRequest{
		CustomerName:    "Dana Reyes",
		Phone:           "+15551234",
		Service:         "Haircut",
		Stylist:         "Maria",
		Date:            "2026-09-14",
		StartTime:       "10:00",
		DurationMinutes: 45,
	})
	if err != nil {
		t.Fatal(err)
	}
	if appt.EventID != "evt-123" {
		t.Errorf("event id = %s", appt.EventID)
	}
	if captured.Summary != "Haircut - Dana Reyes" {
		t.Errorf("summary = %q", captured.Summary)
	}
	for _, want := range []string{"Customer: Dana Reyes", "Phone: +15551234", "Stylist: Maria"} {
		if !strings.Contains(captured.Description, want) {
			t.Errorf("description missing %q:\n%s", want, captured.Description)
		}
	}
	if captured.Reminders == nil || len(captured.Reminders.Overrides) != 1 ||
		captured.Reminders.Overrides[0].Minutes != 60 {
		t.Error("expected a 60-minute popup reminder override")
	}
	if appt.EndTime != "10:45" {
		t.Errorf("end time = %s, want 10:45", appt.EndTime)
	}
}

func TestFindAppointmentsRequiresIdentifier(t *testing.T) {
	c := New(Config{CalendarID: "salon@test", HTTPClient: http.DefaultClient})
	_ = c.Connect(context.Background())
	if _, err := c.FindAppointments(context.Background(), "", ""); err == nil {
		t.Fatal("expected error without name or phone")
	}
}

func TestFindAppointmentsMatchesPhone(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendars/salon@test/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, eventList{Items: []event{
			{
				ID:          "e1",
				Summary:     "Haircut - Dana Reyes",
				Description: "Customer: Dana Reyes\nPhone: +15551234\n",
				Start:       &eventTime{DateTime: "2026-09-20T10:00:00Z"},
				End:         &eventTime{DateTime: "2026-09-20T11:00:00Z"},
			},
			{
				ID:          "e2",
				Summary:     "Color - Lee",
				Description: "Customer: Lee\nPhone: +15559999\n",
				Start:       &eventTime{DateTime: "2026-09-21T10:00:00Z"},
				End:         &eventTime{DateTime: "2026-09-21T11:00:00Z"},
			},
		}})
	})
	c, _ := newTestClient(t, mux)

	matches, err := c.FindAppointments(context.Background(), "", "+15551234")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].EventID != "e1" {
		t.Fatalf("matches = %+v, want only e1", matches)
	}
	if matches[0].StartTime != "10:00" {
		t.Errorf("start time = %s", matches[0].StartTime)
	}
}

func TestUpdateAppointmentKeepsDuration(t *testing.T) {
	var patched event
	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendars/salon@test/events/evt-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, event{
			ID:      "evt-1",
			Summary: "Haircut - Dana",
			Start:   &eventTime{DateTime: "2026-09-14T10:00:00Z"},
			End:     &eventTime{DateTime: "2026-09-14T10:45:00Z"},
		})
	})
	mux.HandleFunc("PATCH /calendars/salon@test/events/evt-1", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&patched); err != nil {
			t.Errorf("decode patch: %v", err)
		}
		patched.ID = "evt-1"
		patched.Summary = "Haircut - Dana"
		writeJSON(t, w, patched)
	})
	c, _ := newTestClient(t, mux)

	appt, err := c.UpdateAppointment(context.Background(), "evt-1", "2026-09-16", "13:00")
	if err != nil {
		t.Fatal(err)
	}
	if appt.EndTime != "13:45" {
		t.Errorf("end time = %s, want 13:45 (45-minute duration preserved)", appt.EndTime)
	}
}

func TestDeleteAppointmentReturnsSummary(t *testing.T) {
	deleted := false
	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendars/salon@test/events/evt-9", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, event{
			ID:      "evt-9",
			Summary: "Color - Lee",
			Start:   &eventTime{DateTime: "2026-09-18T15:00:00Z"},
			End:     &eventTime{DateTime: "2026-09-18T16:30:00Z"},
		})
	})
	mux.HandleFunc("DELETE /calendars/salon@test/events/evt-9", func(w http.ResponseWriter, r *http.Request) {
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := newTestClient(t, mux)

	appt, err := c.DeleteAppointment(context.Background(), "evt-9")
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Fatal("DELETE request was never made")
	}
	if appt.Summary != "Color - Lee" || appt.Date != "2026-09-18" {
		t.Errorf("appointment = %+v", appt)
	}
}

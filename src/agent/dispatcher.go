package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/square-key-labs/saloncall-ai/src/calendar"
	"github.com/square-key-labs/saloncall-ai/src/kb"
	"github.com/square-key-labs/saloncall-ai/src/logger"
	"github.com/square-key-labs/saloncall-ai/src/metrics"
)

// maxSlotsReturned caps how many openings one availability check reports,
// so the backend is not tempted to read an entire day to the caller
const maxSlotsReturned = 5

const defaultDurationMinutes = 60

// Scheduler is the calendar surface the dispatcher needs
type Scheduler interface {
	AvailableSlots(ctx context.Context, date string, durationMinutes int, stylist string) ([]calendar.Slot, error)
	CreateAppointment(ctx context.Context, req calendar.CreateRequest) (*calendar.Appointment, error)
	FindAppointments(ctx context.Context, name, phone string) ([]calendar.Appointment, error)
	UpdateAppointment(ctx context.Context, eventID, date, startTime string) (*calendar.Appointment, error)
	DeleteAppointment(ctx context.Context, eventID string) (*calendar.Appointment, error)
}

// Knowledge is the knowledge base surface the dispatcher needs
type Knowledge interface {
	Search(ctx context.Context, query string, topK int) ([]kb.Result, error)
	ServiceByName(name string) *kb.Service
}

// Dispatcher executes tool calls requested by the reasoning backend and
// renders every outcome, including failures, as a JSON string the backend
// can read on the next round.
type Dispatcher struct {
	scheduler Scheduler
	knowledge Knowledge
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func NewDispatcher(scheduler Scheduler, knowledge Knowledge, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		scheduler: scheduler,
		knowledge: knowledge,
		metrics:   m,
		log:       logger.WithPrefix("tools"),
	}
}

func toolError(err error) string {
	out, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(out)
}

func toolResult(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return toolError(fmt.Errorf("encode tool result: %w", err))
	}
	return string(out)
}

type checkAvailabilityArgs struct {
	Date            string `json:"date"`
	DurationMinutes int    `json:"duration_minutes"`
	Stylist         string `json:"stylist"`
}

type bookAppointmentArgs struct {
	Service         string `json:"service"`
	Stylist         string `json:"stylist"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	Notes           string `json:"notes"`
}

type rescheduleArgs struct {
	EventID      string `json:"event_id"`
	NewDate      string `json:"new_date"`
	NewStartTime string `json:"new_start_time"`
}

type cancelArgs struct {
	EventID string `json:"event_id"`
}

type lookupArgs struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

type searchArgs struct {
	Query string `json:"query"`
}

// Execute runs one named tool with its raw JSON arguments and returns the
// result as a JSON string. Malformed arguments and downstream failures come
// back as an error object rather than a Go error; the backend decides how
// to phrase the problem to the caller.
func (d *Dispatcher) Execute(ctx context.Context, name, rawArgs string) string {
	d.log.Info("executing tool %s", name)
	d.metrics.RecordToolCall(name)
	if rawArgs == "" {
		rawArgs = "{}"
	}

	switch name {
	case "check_availability":
		var args checkAvailabilityArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err))
		}
		if args.DurationMinutes <= 0 {
			args.DurationMinutes = defaultDurationMinutes
		}
		slots, err := d.scheduler.AvailableSlots(ctx, args.Date, args.DurationMinutes, args.Stylist)
		if err != nil {
			return toolError(err)
		}
		if len(slots) == 0 {
			return toolResult(map[string]string{
				"status":  "no_slots",
				"message": "No available slots found for the requested date and criteria.",
			})
		}
		total := len(slots)
		if len(slots) > maxSlotsReturned {
			slots = slots[:maxSlotsReturned]
		}
		return toolResult(map[string]any{
			"status":          "available",
			"slots":           slots,
			"total_available": total,
		})

	case "book_appointment":
		var args bookAppointmentArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err))
		}
		duration := args.DurationMinutes
		if duration <= 0 {
			duration = defaultDurationMinutes
			if svc := d.knowledge.ServiceByName(args.Service); svc != nil {
				duration = svc.DurationMinutes
			}
		}
		appt, err := d.scheduler.CreateAppointment(ctx, calendar.CreateRequest{
			CustomerName:    args.CustomerName,
			Phone:           args.CustomerPhone,
			Service:         args.Service,
			Stylist:         args.Stylist,
			Date:            args.Date,
			StartTime:       args.StartTime,
			DurationMinutes: duration,
			Notes:           args.Notes,
		})
		if err != nil {
			return toolError(err)
		}
		return toolResult(map[string]any{
			"status":           "confirmed",
			"appointment":      appt,
			"duration_minutes": duration,
		})

	case "reschedule_appointment":
		var args rescheduleArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err))
		}
		appt, err := d.scheduler.UpdateAppointment(ctx, args.EventID, args.NewDate, args.NewStartTime)
		if err != nil {
			return toolError(err)
		}
		return toolResult(map[string]any{
			"status":      "rescheduled",
			"appointment": appt,
		})

	case "cancel_appointment":
		var args cancelArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err))
		}
		appt, err := d.scheduler.DeleteAppointment(ctx, args.EventID)
		if err != nil {
			return toolError(err)
		}
		return toolResult(map[string]any{
			"status":      "cancelled",
			"appointment": appt,
		})

	case "lookup_appointment":
		var args lookupArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err))
		}
		matches, err := d.scheduler.FindAppointments(ctx, args.CustomerName, args.CustomerPhone)
		if err != nil {
			return toolError(err)
		}
		if len(matches) == 0 {
			return toolResult(map[string]string{
				"status":  "not_found",
				"message": "No upcoming appointment found with that information.",
			})
		}
		return toolResult(map[string]any{
			"status":       "found",
			"appointments": matches,
		})

	case "search_knowledge_base":
		var args searchArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err))
		}
		results, err := d.knowledge.Search(ctx, args.Query, kb.DefaultTopK)
		if err != nil {
			return toolError(err)
		}
		if results == nil {
			results = []kb.Result{}
		}
		return toolResult(map[string]any{
			"status":  "success",
			"results": results,
		})

	default:
		return toolError(fmt.Errorf("unknown tool: %s", name))
	}
}

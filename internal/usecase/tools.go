package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"booking-agent/internal/domain"
	"booking-agent/internal/scheduling"
)

type toolHandler func(ctx context.Context, args json.RawMessage) string

// toolSet is the closed dispatch table the agent may call into. Definitions
// and handlers are built together at construction; the model can never invoke
// anything outside this table.
type toolSet struct {
	defs     []domain.ToolDefinition
	handlers map[string]toolHandler
}

func newToolSet(sched Scheduler) (*toolSet, error) {
	ts := &toolSet{handlers: make(map[string]toolHandler)}

	register := []struct {
		name        string
		description string
		schema      string
		handler     toolHandler
	}{
		{
			name:        "create_booking",
			description: "Create a new booking for a meeting at a given date and time.",
			schema:      createBookingSchema,
			handler:     createBookingTool(sched),
		},
		{
			name:        "get_user_bookings",
			description: "Get all bookings for a user by email.",
			schema:      getUserBookingsSchema,
			handler:     getUserBookingsTool(sched),
		},
		{
			name:        "cancel_booking",
			description: "Cancel a user's booking at a given date and time.",
			schema:      cancelBookingSchema,
			handler:     cancelBookingTool(sched),
		},
		{
			name:        "reschedule_booking",
			description: "Reschedule a user's booking to a new date, time, or duration.",
			schema:      rescheduleBookingSchema,
			handler:     rescheduleBookingTool(sched),
		},
	}

	for _, t := range register {
		if t.name == "" {
			return nil, errors.New("usecase: tool name must not be empty")
		}
		if _, dup := ts.handlers[t.name]; dup {
			return nil, fmt.Errorf("usecase: duplicate tool %q", t.name)
		}
		if !json.Valid([]byte(t.schema)) {
			return nil, fmt.Errorf("usecase: tool %q has invalid parameter schema", t.name)
		}
		if t.handler == nil {
			return nil, fmt.Errorf("usecase: tool %q has no handler", t.name)
		}
		ts.defs = append(ts.defs, domain.ToolDefinition{
			Name:        t.name,
			Description: t.description,
			Parameters:  json.RawMessage(t.schema),
		})
		ts.handlers[t.name] = t.handler
	}
	return ts, nil
}

func (ts *toolSet) definitions() []domain.ToolDefinition {
	return ts.defs
}

// dispatch executes one tool call and always returns text for the model. A
// failed booking operation is a conversational outcome, not an agent failure;
// the classified user message goes back so the model can relay it.
func (ts *toolSet) dispatch(ctx context.Context, call domain.ToolCall) string {
	handler, ok := ts.handlers[call.Name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}
	return handler(ctx, call.Arguments)
}

func toolErrorText(action string, err error) string {
	var schedErr *scheduling.Error
	if errors.As(err, &schedErr) {
		return schedErr.UserMessage()
	}
	return fmt.Sprintf("An error occurred while %s: %v", action, err)
}

func createBookingTool(sched Scheduler) toolHandler {
	type args struct {
		Date     string `json:"date"`
		Time     string `json:"time"`
		Duration int    `json:"duration"`
		Reason   string `json:"reason"`
		Name     string `json:"name"`
		Email    string `json:"email"`
	}
	return func(ctx context.Context, raw json.RawMessage) string {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return fmt.Sprintf("Error: invalid arguments for create_booking: %v", err)
		}
		out, err := sched.CreateBooking(ctx, domain.BookingRequest{
			Date:     a.Date,
			Time:     a.Time,
			Duration: a.Duration,
			Reason:   a.Reason,
			Name:     a.Name,
			Email:    a.Email,
		})
		if err != nil {
			return toolErrorText("creating the booking", err)
		}
		return "Booking created successfully. Booking details: " + out
	}
}

func getUserBookingsTool(sched Scheduler) toolHandler {
	type args struct {
		Email string `json:"email"`
	}
	return func(ctx context.Context, raw json.RawMessage) string {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return fmt.Sprintf("Error: invalid arguments for get_user_bookings: %v", err)
		}
		out, err := sched.ListBookings(ctx, a.Email)
		if err != nil {
			return toolErrorText("fetching user bookings", err)
		}
		return out
	}
}

func cancelBookingTool(sched Scheduler) toolHandler {
	type args struct {
		Email  string `json:"email"`
		Date   string `json:"date"`
		Time   string `json:"time"`
		Reason string `json:"reason"`
	}
	return func(ctx context.Context, raw json.RawMessage) string {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return fmt.Sprintf("Error: invalid arguments for cancel_booking: %v", err)
		}
		out, err := sched.CancelBooking(ctx, a.Email, a.Date, a.Time, a.Reason)
		if err != nil {
			return toolErrorText("cancelling the booking", err)
		}
		return out
	}
}

func rescheduleBookingTool(sched Scheduler) toolHandler {
	type args struct {
		Email       string `json:"email"`
		CurrentDate string `json:"current_date"`
		CurrentTime string `json:"current_time"`
		NewDate     string `json:"new_date"`
		NewTime     string `json:"new_time"`
		NewDuration int    `json:"new_duration"`
	}
	return func(ctx context.Context, raw json.RawMessage) string {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return fmt.Sprintf("Error: invalid arguments for reschedule_booking: %v", err)
		}
		out, err := sched.RescheduleBooking(ctx, domain.RescheduleRequest{
			Email:       a.Email,
			Date:        a.CurrentDate,
			Time:        a.CurrentTime,
			NewDate:     a.NewDate,
			NewTime:     a.NewTime,
			NewDuration: a.NewDuration,
		})
		if err != nil {
			return toolErrorText("rescheduling the booking", err)
		}
		return out
	}
}

const createBookingSchema = `{
	"type": "object",
	"properties": {
		"date": {"type": "string", "description": "Booking date in YYYY-MM-DD format"},
		"time": {"type": "string", "description": "Booking time in HH:MM 24-hour format"},
		"duration": {"type": "integer", "description": "Meeting duration in minutes"},
		"reason": {"type": "string", "description": "Reason for the meeting"},
		"name": {"type": "string", "description": "Name of the person booking"},
		"email": {"type": "string", "description": "Email of the person booking"}
	},
	"required": ["date", "time", "duration", "reason", "name", "email"]
}`

const getUserBookingsSchema = `{
	"type": "object",
	"properties": {
		"email": {"type": "string", "description": "Email the bookings were made with"}
	},
	"required": ["email"]
}`

const cancelBookingSchema = `{
	"type": "object",
	"properties": {
		"email": {"type": "string", "description": "Email the booking was made with"},
		"date": {"type": "string", "description": "Booking date in YYYY-MM-DD format"},
		"time": {"type": "string", "description": "Booking time in HH:MM 24-hour format"},
		"reason": {"type": "string", "description": "Optional cancellation reason"}
	},
	"required": ["email", "date", "time"]
}`

const rescheduleBookingSchema = `{
	"type": "object",
	"properties": {
		"email": {"type": "string", "description": "Email the booking was made with"},
		"current_date": {"type": "string", "description": "Current booking date in YYYY-MM-DD format"},
		"current_time": {"type": "string", "description": "Current booking time in HH:MM 24-hour format"},
		"new_date": {"type": "string", "description": "New booking date in YYYY-MM-DD format"},
		"new_time": {"type": "string", "description": "New booking time in HH:MM 24-hour format"},
		"new_duration": {"type": "integer", "description": "New meeting duration in minutes"}
	},
	"required": ["email", "current_date", "current_time"]
}`

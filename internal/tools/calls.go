// Package tools turns assistant tool invocations into appointment operations.
// Every invocation decodes into one of a closed set of Call variants; each
// variant dispatches to exactly one Operations method.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/pharmacy-assistant/internal/appointments"
)

// Action names a tool operation.
type Action string

const (
	ActionCheckAvailability Action = "check_availability"
	ActionBook              Action = "book"
	ActionReschedule        Action = "reschedule"
	ActionCancel            Action = "cancel"
	ActionLookup            Action = "lookup"
)

// Actions lists the accepted /tools actions.
var Actions = []Action{ActionCheckAvailability, ActionBook, ActionReschedule, ActionCancel, ActionLookup}

// chat tool names share arguments with the direct actions.
var aliases = map[string]Action{
	"check_availability":     ActionCheckAvailability,
	"book":                   ActionBook,
	"book_appointment":       ActionBook,
	"reschedule":             ActionReschedule,
	"reschedule_appointment": ActionReschedule,
	"cancel":                 ActionCancel,
	"cancel_appointment":     ActionCancel,
	"lookup":                 ActionLookup,
	"lookup_appointment":     ActionLookup,
}

// ParseAction maps an action or chat tool name onto an Action.
func ParseAction(name string) (Action, error) {
	if a, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

// Operations is the appointment workflow a Call dispatches to.
// *appointments.Service implements it.
type Operations interface {
	CheckAvailability(ctx context.Context, req appointments.AvailabilityRequest) (*appointments.AvailabilityResult, error)
	Book(ctx context.Context, req appointments.BookRequest) (*appointments.Appointment, error)
	Reschedule(ctx context.Context, req appointments.RescheduleRequest) (*appointments.Appointment, error)
	Cancel(ctx context.Context, req appointments.CancelRequest) (*appointments.Appointment, error)
	Lookup(ctx context.Context, req appointments.LookupRequest) (*appointments.LookupResult, error)
}

var _ Operations = (*appointments.Service)(nil)

// Result is the outcome of a dispatched Call. Exactly one of Availability
// or Appointment is set for a successful call, except a lookup miss which
// leaves both empty.
type Result struct {
	Action       Action
	Availability *appointments.AvailabilityResult
	Appointment  *appointments.Appointment
	Found        bool
}

// Call is a decoded tool invocation.
type Call interface {
	Action() Action
	Dispatch(ctx context.Context, ops Operations) (*Result, error)
	isCall()
}

// CheckAvailabilityCall asks for free slots.
type CheckAvailabilityCall struct {
	Request appointments.AvailabilityRequest
}

func (CheckAvailabilityCall) Action() Action { return ActionCheckAvailability }
func (CheckAvailabilityCall) isCall()        {}

func (c CheckAvailabilityCall) Dispatch(ctx context.Context, ops Operations) (*Result, error) {
	res, err := ops.CheckAvailability(ctx, c.Request)
	if err != nil {
		return nil, err
	}
	return &Result{Action: ActionCheckAvailability, Availability: res, Found: true}, nil
}

// BookCall books a slot.
type BookCall struct {
	Request appointments.BookRequest
}

func (BookCall) Action() Action { return ActionBook }
func (BookCall) isCall()        {}

func (c BookCall) Dispatch(ctx context.Context, ops Operations) (*Result, error) {
	appt, err := ops.Book(ctx, c.Request)
	if err != nil {
		return nil, err
	}
	return &Result{Action: ActionBook, Appointment: appt, Found: true}, nil
}

// RescheduleCall moves an existing appointment.
type RescheduleCall struct {
	Request appointments.RescheduleRequest
}

func (RescheduleCall) Action() Action { return ActionReschedule }
func (RescheduleCall) isCall()        {}

func (c RescheduleCall) Dispatch(ctx context.Context, ops Operations) (*Result, error) {
	appt, err := ops.Reschedule(ctx, c.Request)
	if err != nil {
		return nil, err
	}
	return &Result{Action: ActionReschedule, Appointment: appt, Found: true}, nil
}

// CancelCall cancels an existing appointment.
type CancelCall struct {
	Request appointments.CancelRequest
}

func (CancelCall) Action() Action { return ActionCancel }
func (CancelCall) isCall()        {}

func (c CancelCall) Dispatch(ctx context.Context, ops Operations) (*Result, error) {
	appt, err := ops.Cancel(ctx, c.Request)
	if err != nil {
		return nil, err
	}
	return &Result{Action: ActionCancel, Appointment: appt, Found: true}, nil
}

// LookupCall finds an existing appointment.
type LookupCall struct {
	Request appointments.LookupRequest
}

func (LookupCall) Action() Action { return ActionLookup }
func (LookupCall) isCall()        {}

func (c LookupCall) Dispatch(ctx context.Context, ops Operations) (*Result, error) {
	res, err := ops.Lookup(ctx, c.Request)
	if err != nil {
		return nil, err
	}
	return &Result{Action: ActionLookup, Appointment: res.Appointment, Found: res.Found}, nil
}

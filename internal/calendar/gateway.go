// Package calendar is the gateway to the calendar that owns appointment state.
// The calendar is the system of record: nothing here keeps a local copy of an
// event beyond the lifetime of a single call.
package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/pharmacy-assistant/internal/availability"
)

// Private extended property keys written on every event this service creates.
const (
	PropAppointmentType = "appointmentType"
	PropPatientName     = "patientName"
	PropPatientPhone    = "patientPhone"
	PropPatientEmail    = "patientEmail"
)

// DefaultSearchLimit caps SearchEvents when no limit is given.
const DefaultSearchLimit = 5

// ErrEventNotFound is returned when an event id does not exist.
var ErrEventNotFound = errors.New("calendar: event not found")

// Attendee is an invitee on an event.
type Attendee struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// Event is a calendar event as seen by this service.
type Event struct {
	ID          string            `json:"id"`
	Summary     string            `json:"summary"`
	Description string            `json:"description,omitempty"`
	Status      string            `json:"status,omitempty"`
	HTMLLink    string            `json:"htmlLink,omitempty"`
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"`
	Attendees   []Attendee        `json:"attendees,omitempty"`
	Properties  map[string]string `json:"-"`
}

// Interval returns the event's time range.
func (e Event) Interval() availability.Interval {
	return availability.Interval{Start: e.Start, End: e.End}
}

// EventInput describes an event to create.
type EventInput struct {
	Summary     string
	Description string
	Interval    availability.Interval
	Attendees   []Attendee
	Properties  map[string]string
}

// SearchQuery is a free-text event search. Results are single events ordered
// by start time; Since, when set, drops events that ended before it.
type SearchQuery struct {
	Text  string
	Since time.Time
	Max   int
}

// Gateway is the set of calendar operations the appointment workflow needs.
// The target calendar is bound when the gateway is constructed.
type Gateway interface {
	FreeBusy(ctx context.Context, timeMin, timeMax time.Time) ([]availability.Interval, error)
	CreateEvent(ctx context.Context, in EventInput) (*Event, error)
	PatchEventTime(ctx context.Context, eventID string, interval availability.Interval) (*Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
	SearchEvents(ctx context.Context, q SearchQuery) ([]Event, error)
}

func searchLimit(q SearchQuery) int {
	if q.Max <= 0 {
		return DefaultSearchLimit
	}
	return q.Max
}

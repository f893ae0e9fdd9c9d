package appointments

import (
	"strings"
	"time"

	"github.com/wolfman30/pharmacy-assistant/internal/availability"
	"github.com/wolfman30/pharmacy-assistant/internal/calendar"
)

// Patient identifies the person an appointment is for. Identity is informal;
// the calendar's free-text search is the source of truth.
type Patient struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Identified reports whether p carries a name and at least one contact.
func (p Patient) Identified() bool {
	return strings.TrimSpace(p.Name) != "" &&
		(strings.TrimSpace(p.Phone) != "" || strings.TrimSpace(p.Email) != "")
}

// Or fills empty fields of p from fallback.
func (p Patient) Or(fallback Patient) Patient {
	if strings.TrimSpace(p.Name) == "" {
		p.Name = fallback.Name
	}
	if strings.TrimSpace(p.Phone) == "" {
		p.Phone = fallback.Phone
	}
	if strings.TrimSpace(p.Email) == "" {
		p.Email = fallback.Email
	}
	return p
}

// Appointment is a calendar event viewed as a pharmacy appointment.
type Appointment struct {
	ID              string    `json:"id"`
	Summary         string    `json:"summary"`
	Description     string    `json:"description,omitempty"`
	AppointmentType string    `json:"appointmentType,omitempty"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Patient         Patient   `json:"patient"`
	Status          string    `json:"status,omitempty"`
	HTMLLink        string    `json:"htmlLink,omitempty"`
}

// Interval returns the appointment's time range.
func (a Appointment) Interval() availability.Interval {
	return availability.Interval{Start: a.Start, End: a.End}
}

func fromEvent(ev calendar.Event) *Appointment {
	appt := &Appointment{
		ID:              ev.ID,
		Summary:         ev.Summary,
		Description:     ev.Description,
		AppointmentType: ev.Properties[calendar.PropAppointmentType],
		Start:           ev.Start,
		End:             ev.End,
		Status:          ev.Status,
		HTMLLink:        ev.HTMLLink,
		Patient: Patient{
			Name:  ev.Properties[calendar.PropPatientName],
			Phone: ev.Properties[calendar.PropPatientPhone],
			Email: ev.Properties[calendar.PropPatientEmail],
		},
	}
	if len(ev.Attendees) > 0 {
		appt.Patient = appt.Patient.Or(Patient{Name: ev.Attendees[0].DisplayName, Email: ev.Attendees[0].Email})
	}
	return appt
}

// AvailabilityRequest asks for free slots. Nil bounds and a zero duration
// fall back to service defaults.
type AvailabilityRequest struct {
	AppointmentType string
	From            *time.Time
	To              *time.Time
	DurationMinutes int
}

// AvailabilityResult is a capped, ordered list of free slots.
type AvailabilityResult struct {
	Slots   []availability.Slot `json:"slots"`
	Total   int                 `json:"total"`
	Message string              `json:"message"`
}

// BookRequest books a previously computed free slot.
type BookRequest struct {
	AppointmentType string
	SlotStart       time.Time
	DurationMinutes int
	Patient         Patient
	Notes           string
}

// RescheduleRequest moves the appointment matched by LookupKey (or Patient).
type RescheduleRequest struct {
	LookupKey       string
	NewStart        time.Time
	DurationMinutes int
	Patient         Patient
}

// CancelRequest cancels the appointment matched by LookupKey (or Patient).
type CancelRequest struct {
	LookupKey string
	Patient   Patient
}

// LookupRequest finds the appointment matched by LookupKey (or Patient).
type LookupRequest struct {
	LookupKey string
	Patient   Patient
}

// LookupResult distinguishes "nothing matched" from a failure.
type LookupResult struct {
	Found       bool         `json:"found"`
	Appointment *Appointment `json:"event"`
	Matches     int          `json:"matches"`
}

// Resolution is the outcome of resolving a lookup key. Only the first match
// is acted on; Matches records how many the calendar returned.
type Resolution struct {
	Key         string
	Appointment *Appointment
	Matches     int
}

// Ambiguous reports whether more than one appointment matched the key.
func (r Resolution) Ambiguous() bool {
	return r.Matches > 1
}

// ResolutionKey picks the search key: lookupKey, then email, phone, name.
// An empty result matches every appointment.
func ResolutionKey(lookupKey string, p Patient) string {
	for _, candidate := range []string{lookupKey, p.Email, p.Phone, p.Name} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return ""
}

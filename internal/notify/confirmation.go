package notify

import (
	"fmt"
	"strings"
	"time"
)

// Confirmation describes an appointment change to tell the patient about.
type Confirmation struct {
	PatientName     string
	PatientEmail    string
	AppointmentType string
	Start           time.Time
	Location        *time.Location
	Rescheduled     bool
}

// Message renders c as an e-mail. ok is false when there is no recipient.
func (c Confirmation) Message() (EmailMessage, bool) {
	if strings.TrimSpace(c.PatientEmail) == "" {
		return EmailMessage{}, false
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	what := strings.ReplaceAll(strings.TrimSpace(c.AppointmentType), "_", " ")
	if what == "" {
		what = "pharmacy"
	}
	when := c.Start.In(loc).Format("Monday, January 2 at 3:04 PM MST")

	verb := "booked"
	subject := "Your pharmacy appointment is confirmed"
	if c.Rescheduled {
		verb = "moved"
		subject = "Your pharmacy appointment has been rescheduled"
	}

	greeting := "Hello"
	if name := strings.TrimSpace(c.PatientName); name != "" {
		greeting = "Hello " + name
	}
	body := fmt.Sprintf("%s,\n\nYour %s appointment has been %s for %s.\n\nIf you need to change it, just call or message us.\n", greeting, what, verb, when)

	return EmailMessage{
		To:      c.PatientEmail,
		ToName:  c.PatientName,
		Subject: subject,
		Body:    body,
	}, true
}

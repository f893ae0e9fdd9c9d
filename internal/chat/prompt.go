package chat

import (
	"fmt"
	"strings"

	"github.com/wolfman30/pharmacy-assistant/internal/appointments"
)

var typeNotes = map[string]string{
	"flu_shot":          "quick seasonal flu vaccination",
	"consultation":      "medication or general health questions with a pharmacist",
	"vaccination":       "vaccines other than the flu shot",
	"medication_review": "full review of everything the patient takes",
}

// SystemPrompt is prepended to every conversation.
func SystemPrompt() string {
	var b strings.Builder
	b.WriteString(`You are a caring and professional pharmacy appointment assistant. You help patients book, reschedule, cancel and look up appointments.

Guidelines:
- Be warm, respectful and patient-focused, and use the patient's name when you know it.
- Ask a clarifying question whenever a detail is unclear.
- Check availability before offering a time, and offer alternatives when a time is taken.
- Collect the patient's name and a phone number or email before booking.
- Confirm the appointment type, date and time before finalising any change.
- Be understanding about cancellations and rescheduling.

Appointment types:
`)
	for _, t := range appointments.Catalog() {
		fmt.Fprintf(&b, "- %s (%s, %d minutes): %s\n", t.Label, t.Name, t.DurationMinutes, typeNotes[t.Name])
	}
	b.WriteString(`
All times you send to tools must be RFC 3339 timestamps. Finish by restating the confirmed appointment details and any preparation the patient needs.`)
	return b.String()
}

// PharmacyTools returns the function schema offered to the model.
func PharmacyTools() []Tool {
	types := appointments.TypeNames()
	lookupKey := Property{Type: "string", Description: "Patient email, phone, or name used to find the appointment"}
	duration := Property{Type: "integer", Description: "Duration of the appointment in minutes", Default: appointments.FallbackDurationMinutes}

	return []Tool{
		{
			Name:        "check_availability",
			Description: "Check available appointment slots for a date range and appointment type",
			Parameters: Parameters{
				Type: "object",
				Properties: map[string]Property{
					"appointmentType": {Type: "string", Description: "Type of appointment", Enum: types},
					"from":            {Type: "string", Description: "Start of the search range (RFC 3339)", Format: "date-time"},
					"to":              {Type: "string", Description: "End of the search range (RFC 3339)", Format: "date-time"},
					"durationMin":     duration,
				},
				Required: []string{"appointmentType"},
			},
		},
		{
			Name:        "book_appointment",
			Description: "Book a new appointment for a patient",
			Parameters: Parameters{
				Type: "object",
				Properties: map[string]Property{
					"appointmentType": {Type: "string", Description: "Type of appointment", Enum: types},
					"slotStartIso":    {Type: "string", Description: "Start time of the chosen slot (RFC 3339)", Format: "date-time"},
					"durationMin":     duration,
					"patientName":     {Type: "string", Description: "Full name of the patient"},
					"patientPhone":    {Type: "string", Description: "Phone number of the patient"},
					"patientEmail":    {Type: "string", Description: "Email address of the patient"},
					"notes":           {Type: "string", Description: "Additional notes or special requirements"},
				},
				Required: []string{"appointmentType", "slotStartIso", "patientName"},
			},
		},
		{
			Name:        "reschedule_appointment",
			Description: "Move an existing appointment to a new time",
			Parameters: Parameters{
				Type: "object",
				Properties: map[string]Property{
					"lookupKey":   lookupKey,
					"newStartIso": {Type: "string", Description: "New start time (RFC 3339)", Format: "date-time"},
					"durationMin": duration,
				},
				Required: []string{"lookupKey", "newStartIso"},
			},
		},
		{
			Name:        "cancel_appointment",
			Description: "Cancel an existing appointment",
			Parameters: Parameters{
				Type:       "object",
				Properties: map[string]Property{"lookupKey": lookupKey},
				Required:   []string{"lookupKey"},
			},
		},
		{
			Name:        "lookup_appointment",
			Description: "Look up a patient's upcoming appointment",
			Parameters: Parameters{
				Type:       "object",
				Properties: map[string]Property{"lookupKey": lookupKey},
				Required:   []string{"lookupKey"},
			},
		},
	}
}

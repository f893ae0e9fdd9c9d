// Package auditlog records every mutating appointment operation to an
// append-only sink. Entries are never read back by this service.
package auditlog

import (
	"context"
	"time"

	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
)

// Kind is the mutation an entry records.
type Kind string

const (
	KindBook       Kind = "book"
	KindReschedule Kind = "reschedule"
	KindCancel     Kind = "cancel"
)

// Entry is one write-once audit record.
type Entry struct {
	Timestamp       time.Time
	Kind            Kind
	EventID         string
	Start           time.Time
	End             time.Time
	PatientName     string
	PatientPhone    string
	PatientEmail    string
	AppointmentType string
	Notes           string
}

// Row renders the entry in spreadsheet column order.
func (e Entry) Row() []any {
	return []any{
		e.Timestamp.UTC().Format(time.RFC3339),
		string(e.Kind),
		e.EventID,
		formatTime(e.Start),
		formatTime(e.End),
		e.PatientName,
		e.PatientPhone,
		e.PatientEmail,
		e.AppointmentType,
		e.Notes,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Sink appends audit entries.
type Sink interface {
	Append(ctx context.Context, entry Entry) error
}

// LogSink writes entries to the structured log. It is used when no
// spreadsheet is configured.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{logger: logger}
}

// Append logs the entry.
func (s *LogSink) Append(_ context.Context, entry Entry) error {
	s.logger.Info("booking audit",
		"kind", entry.Kind,
		"event_id", entry.EventID,
		"start", formatTime(entry.Start),
		"end", formatTime(entry.End),
		"appointment_type", entry.AppointmentType,
	)
	return nil
}

package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wolfman30/pharmacy-assistant/internal/appointments"
)

var (
	// ErrUnknownAction is returned for a tool name outside the closed set.
	ErrUnknownAction = errors.New("tools: unknown action")

	// ErrInvalidArguments is returned when tool arguments fail to decode or validate.
	ErrInvalidArguments = errors.New("tools: invalid arguments")
)

// ArgumentError lists the offending argument fields.
type ArgumentError struct {
	Action Action
	Fields map[string]string
	Err    error
}

func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tools: invalid %s arguments: %v", e.Action, e.Err)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return fmt.Sprintf("tools: invalid %s arguments: %s", e.Action, strings.Join(msgs, "; "))
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInvalidArguments) true for any ArgumentError.
func (e *ArgumentError) Is(target error) bool { return target == ErrInvalidArguments }

type availabilityArgs struct {
	AppointmentType string  `json:"appointmentType" validate:"max=64"`
	From            string  `json:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To              string  `json:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMin     float64 `json:"durationMin" validate:"gte=0,lte=480,wholeminutes"`
}

type bookArgs struct {
	AppointmentType string  `json:"appointmentType" validate:"max=64"`
	SlotStartISO    string  `json:"slotStartIso" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMin     float64 `json:"durationMin" validate:"gte=0,lte=480,wholeminutes"`
	PatientName     string  `json:"patientName" validate:"max=200"`
	PatientPhone    string  `json:"patientPhone" validate:"max=64"`
	PatientEmail    string  `json:"patientEmail" validate:"omitempty,email"`
	Notes           string  `json:"notes" validate:"max=2000"`
}

type rescheduleArgs struct {
	LookupKey   string  `json:"lookupKey" validate:"max=200"`
	NewStartISO string  `json:"newStartIso" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMin float64 `json:"durationMin" validate:"gte=0,lte=480,wholeminutes"`
}

type lookupArgs struct {
	LookupKey string `json:"lookupKey" validate:"max=200"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Models may send 20.0 for an integer field.
	_ = v.RegisterValidation("wholeminutes", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return f == math.Trunc(f)
	})
	return v
}

// Decode parses a tool invocation into a Call. name may be a /tools action
// or a chat tool name. caller fills in patient details the arguments omit.
func Decode(name string, args json.RawMessage, caller appointments.Patient) (Call, error) {
	action, err := ParseAction(name)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionCheckAvailability:
		var a availabilityArgs
		if err := decodeArgs(action, args, &a); err != nil {
			return nil, err
		}
		return CheckAvailabilityCall{Request: appointments.AvailabilityRequest{
			AppointmentType: a.AppointmentType,
			From:            optionalTime(a.From),
			To:              optionalTime(a.To),
			DurationMinutes: int(a.DurationMin),
		}}, nil

	case ActionBook:
		var a bookArgs
		if err := decodeArgs(action, args, &a); err != nil {
			return nil, err
		}
		patient := appointments.Patient{Name: a.PatientName, Phone: a.PatientPhone, Email: a.PatientEmail}
		return BookCall{Request: appointments.BookRequest{
			AppointmentType: a.AppointmentType,
			SlotStart:       validatedTime(a.SlotStartISO),
			DurationMinutes: int(a.DurationMin),
			Patient:         patient.Or(caller),
			Notes:           a.Notes,
		}}, nil

	case ActionReschedule:
		var a rescheduleArgs
		if err := decodeArgs(action, args, &a); err != nil {
			return nil, err
		}
		return RescheduleCall{Request: appointments.RescheduleRequest{
			LookupKey:       a.LookupKey,
			NewStart:        validatedTime(a.NewStartISO),
			DurationMinutes: int(a.DurationMin),
			Patient:         caller,
		}}, nil

	case ActionCancel:
		var a lookupArgs
		if err := decodeArgs(action, args, &a); err != nil {
			return nil, err
		}
		return CancelCall{Request: appointments.CancelRequest{LookupKey: a.LookupKey, Patient: caller}}, nil

	case ActionLookup:
		var a lookupArgs
		if err := decodeArgs(action, args, &a); err != nil {
			return nil, err
		}
		return LookupCall{Request: appointments.LookupRequest{LookupKey: a.LookupKey, Patient: caller}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

func decodeArgs(action Action, raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, dst); err != nil {
			return &ArgumentError{Action: action, Err: err}
		}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &ArgumentError{Action: action, Fields: formatValidationErrors(verrs)}
		}
		return &ArgumentError{Action: action, Err: err}
	}
	return nil
}

func formatValidationErrors(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			fields[field] = field + " is required"
		case "email":
			fields[field] = field + " must be a valid email address"
		case "datetime":
			fields[field] = field + " must be an RFC 3339 timestamp"
		case "max":
			fields[field] = field + " must be at most " + e.Param() + " characters"
		case "gte":
			fields[field] = field + " must be greater than or equal to " + e.Param()
		case "wholeminutes":
			fields[field] = field + " must be a whole number of minutes"
		case "lte":
			fields[field] = field + " must be less than or equal to " + e.Param()
		default:
			fields[field] = field + " is invalid"
		}
	}
	return fields
}

// optionalTime parses a timestamp that already passed validation.
func optionalTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := validatedTime(s)
	return &t
}

func validatedTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

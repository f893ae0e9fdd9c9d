package appointments

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for malformed requests before any remote call.
	ErrInvalidInput = errors.New("appointments: invalid input")

	// ErrMissingIdentification is returned when a booking lacks a name plus phone or email.
	ErrMissingIdentification = errors.New("appointments: missing caller identification (name + phone/email)")

	// ErrNotFound is returned when no appointment matches a lookup key.
	ErrNotFound = errors.New("appointments: appointment not found")

	// ErrUpstream matches every *UpstreamError.
	ErrUpstream = errors.New("appointments: upstream failure")
)

// UpstreamError wraps a failed call to a remote collaborator. The
// collaborator's message is kept intact for diagnostics.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUpstream) true for any UpstreamError.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

// Outcome classifies an operation result for metrics and status mapping.
type Outcome string

const (
	OutcomeSuccess               Outcome = "success"
	OutcomeInvalidInput          Outcome = "invalid_input"
	OutcomeMissingIdentification Outcome = "missing_identification"
	OutcomeNotFound              Outcome = "not_found"
	OutcomeUpstream              Outcome = "upstream_failure"
	OutcomeInternal              Outcome = "internal_error"
)

// Classify maps err onto the error taxonomy. Unrecognised errors are internal.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrMissingIdentification):
		return OutcomeMissingIdentification
	case errors.Is(err, ErrInvalidInput):
		return OutcomeInvalidInput
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrUpstream):
		return OutcomeUpstream
	default:
		return OutcomeInternal
	}
}

// Package appointments implements the booking workflow on top of the calendar:
// availability checks, booking, rescheduling, cancellation and lookup.
//
// The service holds no locks. A free slot reported by CheckAvailability can
// be booked by another caller before Book runs, and Book does not re-check;
// two overlapping bookings are possible. Closing that gap needs a
// provider-side conditional create or an idempotency token.
package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/pharmacy-assistant/internal/auditlog"
	"github.com/wolfman30/pharmacy-assistant/internal/availability"
	"github.com/wolfman30/pharmacy-assistant/internal/calendar"
	"github.com/wolfman30/pharmacy-assistant/internal/notify"
	"github.com/wolfman30/pharmacy-assistant/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ResolveLimit is how many matches a lookup asks the calendar for.
	ResolveLimit = 5

	sideEffectTimeout = 15 * time.Second
)

var tracer = otel.Tracer("pharmacy.internal.appointments")

// Options tunes the service. Zero values take the defaults below.
type Options struct {
	StepMinutes   int // 15
	MaxSlots      int // 10
	WindowDays    int // 14
	MaxWindowDays int // 90; caps the span of caller-supplied windows
	Location      *time.Location
	Now           func() time.Time
}

// Deps are the collaborators of the service. Audit, Notifier and Metrics are optional.
type Deps struct {
	Calendar calendar.Gateway
	Audit    auditlog.Sink
	Notifier notify.EmailSender
	Metrics  *metrics.AppointmentMetrics
	Logger   *logging.Logger
}

// Service implements the appointment operations.
type Service struct {
	calendar calendar.Gateway
	audit    auditlog.Sink
	notifier notify.EmailSender
	metrics  *metrics.AppointmentMetrics
	logger   *logging.Logger
	opts     Options
}

// NewService wires a Service.
func NewService(deps Deps, opts Options) *Service {
	if deps.Calendar == nil {
		panic("appointments: calendar gateway cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Audit == nil {
		deps.Audit = auditlog.NewLogSink(deps.Logger)
	}
	if opts.StepMinutes <= 0 {
		opts.StepMinutes = availability.DefaultStepMinutes
	}
	if opts.MaxSlots <= 0 {
		opts.MaxSlots = 10
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = 14
	}
	if opts.MaxWindowDays <= 0 {
		opts.MaxWindowDays = 90
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		calendar: deps.Calendar,
		audit:    deps.Audit,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		opts:     opts,
	}
}

// CheckAvailability returns the first free slots in the requested window.
// It has no side effects.
func (s *Service) CheckAvailability(ctx context.Context, req AvailabilityRequest) (res *AvailabilityResult, err error) {
	ctx, span := tracer.Start(ctx, "appointments.check_availability")
	defer span.End()
	defer s.observe(span, "check_availability", time.Now(), &err)

	window, err := s.window(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("window.from", window.From.Format(time.RFC3339)),
		attribute.String("window.to", window.To.Format(time.RFC3339)),
		attribute.Int("window.duration_minutes", window.DurationMinutes),
	)

	busy, err := s.calendar.FreeBusy(ctx, window.From, window.To)
	if err != nil {
		return nil, upstream("calendar freebusy", err)
	}

	slots, err := availability.ComputeFreeSlots(busy, window, s.opts.StepMinutes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	total := len(slots)
	s.metrics.ObserveSlots(total)
	if len(slots) > s.opts.MaxSlots {
		slots = slots[:s.opts.MaxSlots]
	}

	return &AvailabilityResult{
		Slots:   slots,
		Total:   total,
		Message: availabilityMessage(total),
	}, nil
}

// Book creates an appointment at req.SlotStart. The slot is trusted to be
// free; it is not re-checked against the calendar.
func (s *Service) Book(ctx context.Context, req BookRequest) (appt *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointments.book")
	defer span.End()
	defer s.observe(span, "book", time.Now(), &err)

	if !req.Patient.Identified() {
		return nil, ErrMissingIdentification
	}
	if req.SlotStart.IsZero() {
		return nil, fmt.Errorf("%w: slot start is required", ErrInvalidInput)
	}
	duration, err := s.duration(req.DurationMinutes, DefaultDuration(req.AppointmentType))
	if err != nil {
		return nil, err
	}

	interval := availability.Interval{Start: req.SlotStart, End: req.SlotStart.Add(duration)}
	in := calendar.EventInput{
		Summary:     eventSummary(req.AppointmentType, req.Patient.Name),
		Description: eventDescription(req.Notes, req.Patient),
		Interval:    interval,
		Properties: map[string]string{
			calendar.PropAppointmentType: req.AppointmentType,
			calendar.PropPatientName:     req.Patient.Name,
			calendar.PropPatientPhone:    req.Patient.Phone,
			calendar.PropPatientEmail:    req.Patient.Email,
		},
	}
	if email := strings.TrimSpace(req.Patient.Email); email != "" {
		in.Attendees = []calendar.Attendee{{Email: email, DisplayName: req.Patient.Name}}
	}

	ev, err := s.calendar.CreateEvent(ctx, in)
	if err != nil {
		return nil, upstream("calendar create event", err)
	}
	appt = fromEvent(*ev)
	appt.Patient = appt.Patient.Or(req.Patient)
	if appt.AppointmentType == "" {
		appt.AppointmentType = req.AppointmentType
	}
	span.SetAttributes(attribute.String("event.id", appt.ID))

	s.recordAudit(ctx, auditlog.KindBook, appt, req.Notes)
	s.confirm(ctx, appt, false)
	return appt, nil
}

// Reschedule moves the first appointment matching the lookup key. The new
// interval is not checked against other busy intervals.
func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (appt *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointments.reschedule")
	defer span.End()
	defer s.observe(span, "reschedule", time.Now(), &err)

	if req.NewStart.IsZero() {
		return nil, fmt.Errorf("%w: new start is required", ErrInvalidInput)
	}
	if req.DurationMinutes < 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidInput, req.DurationMinutes)
	}

	res, err := s.Resolve(ctx, ResolutionKey(req.LookupKey, req.Patient))
	if err != nil {
		return nil, err
	}
	current := res.Appointment

	fallback := int(current.End.Sub(current.Start) / time.Minute)
	if fallback <= 0 {
		fallback = DefaultDuration(current.AppointmentType)
	}
	duration, err := s.duration(req.DurationMinutes, fallback)
	if err != nil {
		return nil, err
	}

	ev, err := s.calendar.PatchEventTime(ctx, current.ID, availability.Interval{Start: req.NewStart, End: req.NewStart.Add(duration)})
	if err != nil {
		if errors.Is(err, calendar.ErrEventNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, upstream("calendar patch event", err)
	}
	appt = fromEvent(*ev)
	appt.Patient = appt.Patient.Or(current.Patient).Or(req.Patient)
	if appt.AppointmentType == "" {
		appt.AppointmentType = current.AppointmentType
	}

	s.recordAudit(ctx, auditlog.KindReschedule, appt, "")
	s.confirm(ctx, appt, true)
	return appt, nil
}

// Cancel deletes the first appointment matching the lookup key and returns
// its last known state.
func (s *Service) Cancel(ctx context.Context, req CancelRequest) (appt *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointments.cancel")
	defer span.End()
	defer s.observe(span, "cancel", time.Now(), &err)

	res, err := s.Resolve(ctx, ResolutionKey(req.LookupKey, req.Patient))
	if err != nil {
		return nil, err
	}
	appt = res.Appointment

	if err := s.calendar.DeleteEvent(ctx, appt.ID); err != nil {
		if errors.Is(err, calendar.ErrEventNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, upstream("calendar delete event", err)
	}
	appt.Patient = appt.Patient.Or(req.Patient)

	s.recordAudit(ctx, auditlog.KindCancel, appt, "")
	return appt, nil
}

// Lookup returns the first appointment matching the lookup key. A miss is
// reported as Found=false, not as an error.
func (s *Service) Lookup(ctx context.Context, req LookupRequest) (res *LookupResult, err error) {
	ctx, span := tracer.Start(ctx, "appointments.lookup")
	defer span.End()
	defer s.observe(span, "lookup", time.Now(), &err)

	resolution, err := s.Resolve(ctx, ResolutionKey(req.LookupKey, req.Patient))
	if errors.Is(err, ErrNotFound) {
		return &LookupResult{Found: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &LookupResult{Found: true, Appointment: resolution.Appointment, Matches: resolution.Matches}, nil
}

// Resolve asks the calendar for up to ResolveLimit appointments matching key,
// ordered by start time, and selects the first. Appointments that ended
// before today are not considered.
func (s *Service) Resolve(ctx context.Context, key string) (*Resolution, error) {
	ctx, span := tracer.Start(ctx, "appointments.resolve")
	defer span.End()

	events, err := s.calendar.SearchEvents(ctx, calendar.SearchQuery{
		Text:  key,
		Since: s.startOfDay(s.now()),
		Max:   ResolveLimit,
	})
	if err != nil {
		span.RecordError(err)
		return nil, upstream("calendar search events", err)
	}
	span.SetAttributes(attribute.Int("resolve.matches", len(events)))
	if len(events) == 0 {
		return nil, ErrNotFound
	}

	res := &Resolution{Key: key, Appointment: fromEvent(events[0]), Matches: len(events)}
	if res.Ambiguous() {
		s.logger.Warn("lookup key matched several appointments; using the earliest",
			"matches", res.Matches,
			"event_id", res.Appointment.ID,
		)
	}
	return res, nil
}

func (s *Service) window(req AvailabilityRequest) (availability.Window, error) {
	now := s.now()

	from := s.nextGridTime(now)
	if req.From != nil {
		from = *req.From
	}
	to := s.startOfDay(now).AddDate(0, 0, s.opts.WindowDays+1)
	if req.To != nil {
		to = *req.To
	}

	if req.DurationMinutes < 0 {
		return availability.Window{}, fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidInput, req.DurationMinutes)
	}
	durationMinutes := req.DurationMinutes
	if durationMinutes == 0 {
		durationMinutes = DefaultDuration(req.AppointmentType)
	}

	w := availability.Window{From: from, To: to, DurationMinutes: durationMinutes}
	if err := w.Validate(); err != nil {
		return availability.Window{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if limit := time.Duration(s.opts.MaxWindowDays) * 24 * time.Hour; to.Sub(from) > limit {
		return availability.Window{}, fmt.Errorf("%w: window spans more than %d days", ErrInvalidInput, s.opts.MaxWindowDays)
	}
	return w, nil
}

func (s *Service) duration(requested, fallback int) (time.Duration, error) {
	if requested < 0 {
		return 0, fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidInput, requested)
	}
	if requested == 0 {
		requested = fallback
	}
	return time.Duration(requested) * time.Minute, nil
}

func (s *Service) now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

func (s *Service) startOfDay(t time.Time) time.Time {
	t = t.In(s.opts.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.opts.Location)
}

// nextGridTime rounds t up to the next step boundary of its day.
func (s *Service) nextGridTime(t time.Time) time.Time {
	midnight := s.startOfDay(t)
	step := time.Duration(s.opts.StepMinutes) * time.Minute
	elapsed := t.Sub(midnight)
	if rem := elapsed % step; rem != 0 {
		elapsed += step - rem
	}
	return midnight.Add(elapsed)
}

func (s *Service) recordAudit(ctx context.Context, kind auditlog.Kind, appt *Appointment, notes string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	entry := auditlog.Entry{
		Timestamp:       s.opts.Now().UTC(),
		Kind:            kind,
		EventID:         appt.ID,
		Start:           appt.Start,
		End:             appt.End,
		PatientName:     appt.Patient.Name,
		PatientPhone:    appt.Patient.Phone,
		PatientEmail:    appt.Patient.Email,
		AppointmentType: appt.AppointmentType,
		Notes:           notes,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.metrics.ObserveAuditFailure()
		s.logger.Error("audit append failed", "error", err, "kind", kind, "event_id", appt.ID)
	}
}

func (s *Service) confirm(ctx context.Context, appt *Appointment, rescheduled bool) {
	if s.notifier == nil {
		return
	}
	msg, ok := notify.Confirmation{
		PatientName:     appt.Patient.Name,
		PatientEmail:    appt.Patient.Email,
		AppointmentType: appt.AppointmentType,
		Start:           appt.Start,
		Location:        s.opts.Location,
		Rescheduled:     rescheduled,
	}.Message()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("confirmation email failed", "error", err, "event_id", appt.ID)
	}
}

func (s *Service) observe(span trace.Span, operation string, started time.Time, errp *error) {
	outcome := Classify(*errp)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if *errp != nil {
		span.RecordError(*errp)
		s.logger.Warn("appointment operation failed", "operation", operation, "outcome", outcome, "error", *errp)
	}
	s.metrics.ObserveOperation(operation, string(outcome), time.Since(started).Seconds())
}

func availabilityMessage(total int) string {
	if total == 0 {
		return "Found 0 available slots."
	}
	return fmt.Sprintf("Found %d available slots. Here are the next available times:", total)
}

func eventSummary(appointmentType, patientName string) string {
	kind := strings.TrimSpace(appointmentType)
	if kind == "" {
		kind = "Appointment"
	}
	return strings.TrimSpace(fmt.Sprintf("Pharmacy %s - %s", kind, strings.TrimSpace(patientName)))
}

func eventDescription(notes string, p Patient) string {
	return fmt.Sprintf("Notes: %s\nPatient Phone: %s\nPatient Email: %s", notes, p.Phone, p.Email)
}

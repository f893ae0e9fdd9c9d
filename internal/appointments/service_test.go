package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/pharmacy-assistant/internal/auditlog"
	"github.com/wolfman30/pharmacy-assistant/internal/availability"
	"github.com/wolfman30/pharmacy-assistant/internal/calendar"
	"github.com/wolfman30/pharmacy-assistant/internal/notify"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
)

// fakeCalendar counts calls and can inject failures on top of the in-memory calendar.
type fakeCalendar struct {
	*calendar.MemoryGateway
	mu         sync.Mutex
	calls      map[string]int
	failOn     map[string]error
	lastSearch calendar.SearchQuery
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{
		MemoryGateway: calendar.NewMemoryGateway(),
		calls:         make(map[string]int),
		failOn:        make(map[string]error),
	}
}

func (f *fakeCalendar) hit(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.failOn[op]
}

func (f *fakeCalendar) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeCalendar) FreeBusy(ctx context.Context, timeMin, timeMax time.Time) ([]availability.Interval, error) {
	if err := f.hit("freebusy"); err != nil {
		return nil, err
	}
	return f.MemoryGateway.FreeBusy(ctx, timeMin, timeMax)
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, in calendar.EventInput) (*calendar.Event, error) {
	if err := f.hit("create"); err != nil {
		return nil, err
	}
	return f.MemoryGateway.CreateEvent(ctx, in)
}

func (f *fakeCalendar) PatchEventTime(ctx context.Context, id string, iv availability.Interval) (*calendar.Event, error) {
	if err := f.hit("patch"); err != nil {
		return nil, err
	}
	return f.MemoryGateway.PatchEventTime(ctx, id, iv)
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, id string) error {
	if err := f.hit("delete"); err != nil {
		return err
	}
	return f.MemoryGateway.DeleteEvent(ctx, id)
}

func (f *fakeCalendar) SearchEvents(ctx context.Context, q calendar.SearchQuery) ([]calendar.Event, error) {
	if err := f.hit("search"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.lastSearch = q
	f.mu.Unlock()
	return f.MemoryGateway.SearchEvents(ctx, q)
}

type recordingSink struct {
	mu      sync.Mutex
	entries []auditlog.Entry
	err     error
}

func (r *recordingSink) Append(_ context.Context, e auditlog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

type recordingSender struct {
	sent []notify.EmailMessage
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg notify.EmailMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

var testNow = time.Date(2026, 3, 2, 8, 7, 0, 0, time.UTC)

type harness struct {
	svc    *Service
	cal    *fakeCalendar
	audit  *recordingSink
	sender *recordingSender
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{cal: newFakeCalendar(), audit: &recordingSink{}, sender: &recordingSender{}}
	h.svc = NewService(Deps{
		Calendar: h.cal,
		Audit:    h.audit,
		Notifier: h.sender,
		Logger:   logging.New("error"),
	}, Options{Now: func() time.Time { return testNow }})
	return h
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 3, day, hour, minute, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func (h *harness) seed(t *testing.T, summary string, start time.Time, minutes int, props map[string]string) *calendar.Event {
	t.Helper()
	ev, err := h.cal.MemoryGateway.CreateEvent(context.Background(), calendar.EventInput{
		Summary:    summary,
		Interval:   availability.Interval{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)},
		Properties: props,
	})
	require.NoError(t, err)
	return ev
}

func TestCheckAvailability_ExplicitWindow(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "busy", at(2, 9, 15), 15, nil)

	res, err := h.svc.CheckAvailability(context.Background(), AvailabilityRequest{
		From:            ptr(at(2, 9, 0)),
		To:              ptr(at(2, 10, 0)),
		DurationMinutes: 15,
	})
	require.NoError(t, err)

	require.Len(t, res.Slots, 3)
	assert.Equal(t, at(2, 9, 0), res.Slots[0].Start)
	assert.Equal(t, at(2, 9, 30), res.Slots[1].Start)
	assert.Equal(t, at(2, 9, 45), res.Slots[2].Start)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, "Found 3 available slots. Here are the next available times:", res.Message)
}

func TestCheckAvailability_DefaultsAndCap(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.CheckAvailability(context.Background(), AvailabilityRequest{AppointmentType: "medication_review"})
	require.NoError(t, err)

	require.Len(t, res.Slots, 10)
	assert.Greater(t, res.Total, 10)
	// 08:07 rounds up to the 08:15 grid point.
	assert.Equal(t, at(2, 8, 15), res.Slots[0].Start)
	assert.Equal(t, 30*time.Minute, res.Slots[0].End.Sub(res.Slots[0].Start))
	// Window runs to the end of the 14th day ahead.
	last := at(2, 8, 15).Add(time.Duration(res.Total-1) * 15 * time.Minute)
	assert.Equal(t, at(17, 0, 0).Add(-30*time.Minute), last)
}

func TestCheckAvailability_InvalidWindow(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CheckAvailability(context.Background(), AvailabilityRequest{
		From: ptr(at(2, 10, 0)),
		To:   ptr(at(2, 9, 0)),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.True(t, errors.Is(err, availability.ErrInvalidWindow))
	assert.Zero(t, h.cal.count("freebusy"))

	_, err = h.svc.CheckAvailability(context.Background(), AvailabilityRequest{DurationMinutes: -10})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestCheckAvailability_RejectsOversizedWindow(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CheckAvailability(context.Background(), AvailabilityRequest{
		From: ptr(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)),
		To:   ptr(time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	require.Error(t, err)
	assert.Equal(t, OutcomeInvalidInput, Classify(err))
	assert.Zero(t, h.cal.count("freebusy"))

	// Exactly the limit is still accepted.
	res, err := h.svc.CheckAvailability(context.Background(), AvailabilityRequest{
		From: ptr(at(2, 9, 0)),
		To:   ptr(at(2, 9, 0).AddDate(0, 0, 90)),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Slots)
}

func TestCheckAvailability_UpstreamFailure(t *testing.T) {
	h := newHarness(t)
	h.cal.failOn["freebusy"] = context.DeadlineExceeded

	_, err := h.svc.CheckAvailability(context.Background(), AvailabilityRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, OutcomeUpstream, Classify(err))
}

func TestBook_CreatesEventAndAudits(t *testing.T) {
	h := newHarness(t)

	appt, err := h.svc.Book(context.Background(), BookRequest{
		AppointmentType: "flu_shot",
		SlotStart:       at(3, 14, 0),
		Patient:         Patient{Name: "Ana Lopez", Phone: "555-0100", Email: "ana@example.com"},
		Notes:           "first visit",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, appt.ID)
	assert.Equal(t, "Pharmacy flu_shot - Ana Lopez", appt.Summary)
	assert.Equal(t, "Notes: first visit\nPatient Phone: 555-0100\nPatient Email: ana@example.com", appt.Description)
	assert.Equal(t, at(3, 14, 20), appt.End)
	assert.Equal(t, "flu_shot", appt.AppointmentType)

	found, err := h.cal.MemoryGateway.SearchEvents(context.Background(), calendar.SearchQuery{Text: "ana@example.com"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Len(t, found[0].Attendees, 1)
	assert.Equal(t, "Ana Lopez", found[0].Attendees[0].DisplayName)

	require.Len(t, h.audit.entries, 1)
	entry := h.audit.entries[0]
	assert.Equal(t, auditlog.KindBook, entry.Kind)
	assert.Equal(t, appt.ID, entry.EventID)
	assert.Equal(t, "first visit", entry.Notes)
	assert.Equal(t, "555-0100", entry.PatientPhone)

	require.Len(t, h.sender.sent, 1)
	assert.Equal(t, "ana@example.com", h.sender.sent[0].To)
}

func TestBook_NoEmailMeansNoAttendeeAndNoConfirmation(t *testing.T) {
	h := newHarness(t)

	appt, err := h.svc.Book(context.Background(), BookRequest{
		SlotStart:       at(3, 14, 0),
		DurationMinutes: 45,
		Patient:         Patient{Name: "Sam", Phone: "555-0101"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Pharmacy Appointment - Sam", appt.Summary)
	assert.Equal(t, at(3, 14, 45), appt.End)
	assert.Empty(t, h.sender.sent)
}

func TestBook_MissingIdentification(t *testing.T) {
	tests := []struct {
		name    string
		patient Patient
	}{
		{name: "name only", patient: Patient{Name: "X"}},
		{name: "contact only", patient: Patient{Phone: "555-0100", Email: "x@example.com"}},
		{name: "blank", patient: Patient{Name: "  ", Phone: " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.svc.Book(context.Background(), BookRequest{SlotStart: at(3, 9, 0), Patient: tt.patient})
			assert.True(t, errors.Is(err, ErrMissingIdentification))
			assert.Equal(t, OutcomeMissingIdentification, Classify(err))
			assert.Zero(t, h.cal.count("create"))
			assert.Empty(t, h.audit.entries)
		})
	}
}

func TestBook_DoesNotRecheckSlot(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "already booked", at(3, 9, 0), 20, nil)

	_, err := h.svc.Book(context.Background(), BookRequest{SlotStart: at(3, 9, 0), Patient: Patient{Name: "B", Phone: "1"}})
	require.NoError(t, err)
	assert.Zero(t, h.cal.count("freebusy"))
	assert.Equal(t, 2, h.cal.Len())
}

func TestBook_AuditFailureDoesNotFailBooking(t *testing.T) {
	h := newHarness(t)
	h.audit.err = errors.New("sheets unavailable")
	h.sender.err = errors.New("sendgrid down")

	appt, err := h.svc.Book(context.Background(), BookRequest{
		SlotStart: at(3, 9, 0),
		Patient:   Patient{Name: "Ana", Email: "ana@example.com"},
	})
	require.NoError(t, err)
	require.NotNil(t, appt)
	assert.Equal(t, 1, h.cal.Len())
}

func TestBook_UpstreamFailurePassesMessageThrough(t *testing.T) {
	h := newHarness(t)
	h.cal.failOn["create"] = errors.New("quota exceeded")

	_, err := h.svc.Book(context.Background(), BookRequest{SlotStart: at(3, 9, 0), Patient: Patient{Name: "A", Phone: "1"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, 1, h.cal.count("create"))
	assert.Empty(t, h.audit.entries)
}

func TestReschedule_NotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Reschedule(context.Background(), RescheduleRequest{LookupKey: "nobody", NewStart: at(4, 10, 0)})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Zero(t, h.cal.count("patch"))
	assert.Empty(t, h.audit.entries)
}

func TestReschedule_MovesFirstMatchKeepingLength(t *testing.T) {
	h := newHarness(t)
	first := h.seed(t, "Pharmacy medication_review - Ana", at(3, 9, 0), 30, map[string]string{
		calendar.PropAppointmentType: "medication_review",
		calendar.PropPatientName:     "Ana",
		calendar.PropPatientPhone:    "555-0100",
	})
	h.seed(t, "Pharmacy flu_shot - Ana", at(5, 9, 0), 20, nil)

	appt, err := h.svc.Reschedule(context.Background(), RescheduleRequest{LookupKey: "ana", NewStart: at(4, 11, 0)})
	require.NoError(t, err)

	assert.Equal(t, first.ID, appt.ID)
	assert.Equal(t, at(4, 11, 0), appt.Start)
	assert.Equal(t, at(4, 11, 30), appt.End)

	require.Len(t, h.audit.entries, 1)
	assert.Equal(t, auditlog.KindReschedule, h.audit.entries[0].Kind)
	assert.Equal(t, "medication_review", h.audit.entries[0].AppointmentType)
	assert.Equal(t, "555-0100", h.audit.entries[0].PatientPhone)
}

func TestReschedule_ExplicitDurationAndPatientKey(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Pharmacy flu_shot - Bo", at(3, 9, 0), 20, map[string]string{calendar.PropPatientEmail: "bo@example.com"})

	appt, err := h.svc.Reschedule(context.Background(), RescheduleRequest{
		NewStart:        at(6, 15, 0),
		DurationMinutes: 45,
		Patient:         Patient{Name: "Bo"},
	})
	require.NoError(t, err)
	assert.Equal(t, at(6, 15, 45), appt.End)
	assert.Equal(t, "Bo", h.cal.lastSearch.Text)
}

func TestReschedule_MissingNewStart(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Reschedule(context.Background(), RescheduleRequest{LookupKey: "x"})
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Zero(t, h.cal.count("search"))
}

func TestCancel_DeletesAndReturnsLastKnown(t *testing.T) {
	h := newHarness(t)
	ev := h.seed(t, "Pharmacy vaccination - Cy", at(3, 10, 0), 20, map[string]string{calendar.PropAppointmentType: "vaccination"})

	appt, err := h.svc.Cancel(context.Background(), CancelRequest{LookupKey: "cy"})
	require.NoError(t, err)
	assert.Equal(t, ev.ID, appt.ID)
	assert.Equal(t, at(3, 10, 0), appt.Start)
	assert.Zero(t, h.cal.Len())

	require.Len(t, h.audit.entries, 1)
	assert.Equal(t, auditlog.KindCancel, h.audit.entries[0].Kind)
	assert.Equal(t, "vaccination", h.audit.entries[0].AppointmentType)
}

func TestCancel_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Cancel(context.Background(), CancelRequest{LookupKey: "nobody"})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Zero(t, h.cal.count("delete"))
}

func TestCancel_UpstreamDeleteFailure(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Dee", at(3, 10, 0), 20, nil)
	h.cal.failOn["delete"] = errors.New("backend error")

	_, err := h.svc.Cancel(context.Background(), CancelRequest{LookupKey: "dee"})
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.Empty(t, h.audit.entries)
}

func TestLookup_FoundAndNotFound(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Eve", at(3, 10, 0), 20, nil)
	h.seed(t, "Eve", at(4, 10, 0), 20, nil)

	res, err := h.svc.Lookup(context.Background(), LookupRequest{LookupKey: "eve"})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 2, res.Matches)
	assert.Equal(t, at(3, 10, 0), res.Appointment.Start)

	res, err = h.svc.Lookup(context.Background(), LookupRequest{LookupKey: "zed"})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Nil(t, res.Appointment)
}

func TestLookup_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Fay", at(3, 10, 0), 20, nil)

	first, err := h.svc.Lookup(context.Background(), LookupRequest{LookupKey: "fay"})
	require.NoError(t, err)
	second, err := h.svc.Lookup(context.Background(), LookupRequest{LookupKey: "fay"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.cal.Len())
}

func TestLookup_UpstreamFailureIsAnError(t *testing.T) {
	h := newHarness(t)
	h.cal.failOn["search"] = errors.New("boom")

	_, err := h.svc.Lookup(context.Background(), LookupRequest{LookupKey: "fay"})
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestResolve_AmbiguityIsExplicit(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Gus", at(4, 10, 0), 20, nil)
	h.seed(t, "Gus", at(3, 10, 0), 20, nil)
	h.seed(t, "Gus", at(1, 10, 0), 20, nil) // ended before today

	res, err := h.svc.Resolve(context.Background(), "gus")
	require.NoError(t, err)
	assert.True(t, res.Ambiguous())
	assert.Equal(t, 2, res.Matches)
	assert.Equal(t, at(3, 10, 0), res.Appointment.Start)

	assert.Equal(t, ResolveLimit, h.cal.lastSearch.Max)
	assert.Equal(t, at(2, 0, 0), h.cal.lastSearch.Since)
}

func TestResolutionKey(t *testing.T) {
	p := Patient{Name: "Ana", Phone: "555", Email: "ana@example.com"}

	assert.Equal(t, "key", ResolutionKey("key", p))
	assert.Equal(t, "ana@example.com", ResolutionKey(" ", p))
	assert.Equal(t, "555", ResolutionKey("", Patient{Name: "Ana", Phone: "555"}))
	assert.Equal(t, "Ana", ResolutionKey("", Patient{Name: "Ana"}))
	assert.Equal(t, "", ResolutionKey("", Patient{}))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, Classify(nil))
	assert.Equal(t, OutcomeNotFound, Classify(ErrNotFound))
	assert.Equal(t, OutcomeInternal, Classify(errors.New("panic-ish")))
	assert.Equal(t, OutcomeUpstream, Classify(upstream("op", errors.New("x"))))
}

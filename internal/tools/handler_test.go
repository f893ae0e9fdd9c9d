package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/pharmacy-assistant/internal/appointments"
	"github.com/wolfman30/pharmacy-assistant/internal/availability"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
)

type fakeOps struct {
	err error

	availability *appointments.AvailabilityRequest
	book         *appointments.BookRequest
	reschedule   *appointments.RescheduleRequest
	cancel       *appointments.CancelRequest
	lookup       *appointments.LookupRequest
	lookupResult *appointments.LookupResult
}

var sampleAppointment = &appointments.Appointment{
	ID:      "evt1",
	Summary: "Pharmacy flu_shot - Ana",
	Start:   time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC),
	End:     time.Date(2026, 3, 3, 14, 20, 0, 0, time.UTC),
}

func (f *fakeOps) CheckAvailability(_ context.Context, req appointments.AvailabilityRequest) (*appointments.AvailabilityResult, error) {
	f.availability = &req
	if f.err != nil {
		return nil, f.err
	}
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	return &appointments.AvailabilityResult{
		Slots:   []availability.Slot{{Start: start, End: start.Add(20 * time.Minute)}},
		Total:   1,
		Message: "Found 1 available slots. Here are the next available times:",
	}, nil
}

func (f *fakeOps) Book(_ context.Context, req appointments.BookRequest) (*appointments.Appointment, error) {
	f.book = &req
	if f.err != nil {
		return nil, f.err
	}
	return sampleAppointment, nil
}

func (f *fakeOps) Reschedule(_ context.Context, req appointments.RescheduleRequest) (*appointments.Appointment, error) {
	f.reschedule = &req
	if f.err != nil {
		return nil, f.err
	}
	return sampleAppointment, nil
}

func (f *fakeOps) Cancel(_ context.Context, req appointments.CancelRequest) (*appointments.Appointment, error) {
	f.cancel = &req
	if f.err != nil {
		return nil, f.err
	}
	return sampleAppointment, nil
}

func (f *fakeOps) Lookup(_ context.Context, req appointments.LookupRequest) (*appointments.LookupResult, error) {
	f.lookup = &req
	if f.err != nil {
		return nil, f.err
	}
	if f.lookupResult != nil {
		return f.lookupResult, nil
	}
	return &appointments.LookupResult{Found: true, Appointment: sampleAppointment, Matches: 1}, nil
}

func postTools(t *testing.T, ops Operations, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	h := NewHandler(ops, nil, logging.New("error"))
	req := httptest.NewRequest(http.MethodPost, "/tools", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec, out
}

func TestHandler_CheckAvailability(t *testing.T) {
	ops := &fakeOps{}
	rec, out := postTools(t, ops, `{"action":"check_availability","data":{"appointmentType":"flu_shot"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["slots"], 1)
	assert.EqualValues(t, 1, out["total"])
	assert.Contains(t, out["message"], "Found 1")
	require.NotNil(t, ops.availability)
	assert.Equal(t, "flu_shot", ops.availability.AppointmentType)
}

func TestHandler_BookUsesCaller(t *testing.T) {
	ops := &fakeOps{}
	rec, out := postTools(t, ops, `{
		"action": "book",
		"data": {"appointmentType": "flu_shot", "slotStartIso": "2026-03-03T14:00:00Z", "notes": "n"},
		"caller": {"name": "Ana", "phone": "555-0100"}
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	event := out["event"].(map[string]any)
	assert.Equal(t, "evt1", event["id"])
	require.NotNil(t, ops.book)
	assert.Equal(t, appointments.Patient{Name: "Ana", Phone: "555-0100"}, ops.book.Patient)
}

func TestHandler_LookupMissReturnsNullEvent(t *testing.T) {
	ops := &fakeOps{lookupResult: &appointments.LookupResult{Found: false}}
	rec, out := postTools(t, ops, `{"action":"lookup","data":{"lookupKey":"nobody"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	v, ok := out["event"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestHandler_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		label  string
	}{
		{name: "malformed body", body: `{`, status: http.StatusBadRequest, label: "Invalid payload"},
		{name: "unknown action", body: `{"action":"refund"}`, status: http.StatusBadRequest, label: "Unsupported action"},
		{name: "bad arguments", body: `{"action":"book","data":{}}`, status: http.StatusBadRequest, label: "Invalid payload"},
		{name: "missing identification", body: `{"action":"book","data":{"slotStartIso":"2026-03-03T14:00:00Z"}}`, err: appointments.ErrMissingIdentification, status: http.StatusBadRequest, label: "Missing caller identification (name + phone/email)"},
		{name: "not found", body: `{"action":"cancel","data":{"lookupKey":"x"}}`, err: appointments.ErrNotFound, status: http.StatusNotFound, label: "Appointment not found"},
		{name: "upstream", body: `{"action":"reschedule","data":{"newStartIso":"2026-03-03T14:00:00Z"}}`, err: &appointments.UpstreamError{Op: "calendar patch event", Err: errors.New("rate limited")}, status: http.StatusBadGateway, label: "Upstream failure"},
		{name: "internal", body: `{"action":"lookup"}`, err: errors.New("nil map"), status: http.StatusInternalServerError, label: "Internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := postTools(t, &fakeOps{err: tt.err}, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.label, out["error"])
		})
	}
}

func TestHandler_UpstreamMessagePassedThrough(t *testing.T) {
	ops := &fakeOps{err: &appointments.UpstreamError{Op: "calendar freebusy", Err: errors.New("quota exceeded")}}
	rec, out := postTools(t, ops, `{"action":"check_availability"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, out["message"], "quota exceeded")
}

func TestHandler_InternalErrorHidesDetails(t *testing.T) {
	rec, out := postTools(t, &fakeOps{err: errors.New("secret stack")}, `{"action":"lookup"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret stack")
	assert.NotContains(t, out, "message")
}

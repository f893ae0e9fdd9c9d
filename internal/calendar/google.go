package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/pharmacy-assistant/internal/availability"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	defaultTimeout = 20 * time.Second
	googleTokenURI = "https://oauth2.googleapis.com/token"
)

// GoogleConfig configures the Google Calendar gateway.
type GoogleConfig struct {
	CalendarID          string
	ServiceAccountEmail string
	// PrivateKey is the PEM key; literal "\n" sequences are restored to newlines.
	PrivateKey string
	TimeZone   string
	Timeout    time.Duration
}

// GoogleGateway implements Gateway on the Google Calendar v3 API.
type GoogleGateway struct {
	svc        *calendarapi.Service
	calendarID string
	timeZone   string
	timeout    time.Duration
	logger     *logging.Logger
}

// NewGoogleGateway authenticates with a service account and returns a gateway
// bound to cfg.CalendarID.
func NewGoogleGateway(ctx context.Context, cfg GoogleConfig, logger *logging.Logger) (*GoogleGateway, error) {
	if strings.TrimSpace(cfg.CalendarID) == "" {
		return nil, errors.New("calendar: calendar id is required")
	}
	creds, err := ServiceAccountJSON(cfg.ServiceAccountEmail, cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	svc, err := calendarapi.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(calendarapi.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to create google client: %w", err)
	}
	return NewGoogleGatewayWithService(svc, cfg, logger), nil
}

// NewGoogleGatewayWithService wraps an existing API client.
func NewGoogleGatewayWithService(svc *calendarapi.Service, cfg GoogleConfig, logger *logging.Logger) *GoogleGateway {
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &GoogleGateway{
		svc:        svc,
		calendarID: cfg.CalendarID,
		timeZone:   cfg.TimeZone,
		timeout:    timeout,
		logger:     logger,
	}
}

// ServiceAccountJSON builds a service-account credentials document from an
// e-mail and private key pair as they are usually stored in environment files.
func ServiceAccountJSON(email, privateKey string) ([]byte, error) {
	email = strings.TrimSpace(email)
	privateKey = strings.ReplaceAll(privateKey, `\n`, "\n")
	if email == "" || strings.TrimSpace(privateKey) == "" {
		return nil, errors.New("calendar: missing google service account credentials")
	}
	return json.Marshal(map[string]string{
		"type":         "service_account",
		"client_email": email,
		"private_key":  privateKey,
		"token_uri":    googleTokenURI,
	})
}

func (g *GoogleGateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

// FreeBusy returns the busy intervals of the bound calendar inside [timeMin, timeMax].
func (g *GoogleGateway) FreeBusy(ctx context.Context, timeMin, timeMax time.Time) ([]availability.Interval, error) {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	resp, err := g.svc.Freebusy.Query(&calendarapi.FreeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   []*calendarapi.FreeBusyRequestItem{{Id: g.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: freebusy query failed: %w", err)
	}

	cal, ok := resp.Calendars[g.calendarID]
	if !ok {
		return nil, fmt.Errorf("calendar: freebusy response has no entry for %q", g.calendarID)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("calendar: freebusy query failed: %s", cal.Errors[0].Reason)
	}

	busy := make([]availability.Interval, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("calendar: invalid busy start %q: %w", period.Start, err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("calendar: invalid busy end %q: %w", period.End, err)
		}
		busy = append(busy, availability.Interval{Start: start, End: end})
	}
	return busy, nil
}

// CreateEvent inserts a new event.
func (g *GoogleGateway) CreateEvent(ctx context.Context, in EventInput) (*Event, error) {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	ev := &calendarapi.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Start:       g.dateTime(in.Interval.Start),
		End:         g.dateTime(in.Interval.End),
	}
	for _, a := range in.Attendees {
		ev.Attendees = append(ev.Attendees, &calendarapi.EventAttendee{Email: a.Email, DisplayName: a.DisplayName})
	}
	if len(in.Properties) > 0 {
		ev.ExtendedProperties = &calendarapi.EventExtendedProperties{Private: in.Properties}
	}

	created, err := g.svc.Events.Insert(g.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: create event failed: %w", err)
	}
	g.logger.Info("calendar event created", "event_id", created.Id, "start", in.Interval.Start)
	return fromGoogleEvent(created)
}

// PatchEventTime moves an event to interval.
func (g *GoogleGateway) PatchEventTime(ctx context.Context, eventID string, interval availability.Interval) (*Event, error) {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	updated, err := g.svc.Events.Patch(g.calendarID, eventID, &calendarapi.Event{
		Start: g.dateTime(interval.Start),
		End:   g.dateTime(interval.End),
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: patch event %s failed: %w", eventID, mapGoogleError(err))
	}
	return fromGoogleEvent(updated)
}

// DeleteEvent removes an event.
func (g *GoogleGateway) DeleteEvent(ctx context.Context, eventID string) error {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	if err := g.svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: delete event %s failed: %w", eventID, mapGoogleError(err))
	}
	return nil
}

// SearchEvents runs a free-text search over the calendar.
func (g *GoogleGateway) SearchEvents(ctx context.Context, q SearchQuery) ([]Event, error) {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	call := g.svc.Events.List(g.calendarID).
		Q(q.Text).
		MaxResults(int64(searchLimit(q))).
		SingleEvents(true).
		OrderBy("startTime")
	if !q.Since.IsZero() {
		call = call.TimeMin(q.Since.Format(time.RFC3339))
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: list events failed: %w", err)
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		ev, err := fromGoogleEvent(item)
		if err != nil {
			g.logger.Warn("skipping calendar event with unreadable times", "event_id", item.Id, "error", err)
			continue
		}
		events = append(events, *ev)
	}
	return events, nil
}

func (g *GoogleGateway) dateTime(t time.Time) *calendarapi.EventDateTime {
	return &calendarapi.EventDateTime{DateTime: t.Format(time.RFC3339), TimeZone: g.timeZone}
}

func mapGoogleError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && (gErr.Code == http.StatusNotFound || gErr.Code == http.StatusGone) {
		return fmt.Errorf("%w: %s", ErrEventNotFound, gErr.Message)
	}
	return err
}

func fromGoogleEvent(ev *calendarapi.Event) (*Event, error) {
	if ev == nil {
		return nil, errors.New("calendar: empty event")
	}
	start, err := parseEventTime(ev.Start)
	if err != nil {
		return nil, err
	}
	end, err := parseEventTime(ev.End)
	if err != nil {
		return nil, err
	}
	out := &Event{
		ID:          ev.Id,
		Summary:     ev.Summary,
		Description: ev.Description,
		Status:      ev.Status,
		HTMLLink:    ev.HtmlLink,
		Start:       start,
		End:         end,
	}
	for _, a := range ev.Attendees {
		if a == nil {
			continue
		}
		out.Attendees = append(out.Attendees, Attendee{Email: a.Email, DisplayName: a.DisplayName})
	}
	if ev.ExtendedProperties != nil && len(ev.ExtendedProperties.Private) > 0 {
		out.Properties = make(map[string]string, len(ev.ExtendedProperties.Private))
		for k, v := range ev.ExtendedProperties.Private {
			out.Properties[k] = v
		}
	}
	return out, nil
}

func parseEventTime(dt *calendarapi.EventDateTime) (time.Time, error) {
	if dt == nil {
		return time.Time{}, errors.New("calendar: event has no time")
	}
	if dt.DateTime != "" {
		return time.Parse(time.RFC3339, dt.DateTime)
	}
	if dt.Date != "" {
		// All-day events only carry a date.
		return time.Parse("2006-01-02", dt.Date)
	}
	return time.Time{}, errors.New("calendar: event has no time")
}

package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/pharmacy-assistant/internal/availability"
)

// MemoryGateway is an in-process calendar used for local development and tests.
type MemoryGateway struct {
	mu     sync.RWMutex
	events map[string]Event
}

// NewMemoryGateway returns an empty in-memory calendar.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{events: make(map[string]Event)}
}

// FreeBusy returns the intervals of all events overlapping [timeMin, timeMax].
func (m *MemoryGateway) FreeBusy(_ context.Context, timeMin, timeMax time.Time) ([]availability.Interval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	window := availability.Interval{Start: timeMin, End: timeMax}
	busy := make([]availability.Interval, 0)
	for _, ev := range m.sorted() {
		if ev.Interval().Overlaps(window) {
			busy = append(busy, ev.Interval())
		}
	}
	return busy, nil
}

// CreateEvent stores a new event with a generated id.
func (m *MemoryGateway) CreateEvent(_ context.Context, in EventInput) (*Event, error) {
	if !in.Interval.Start.Before(in.Interval.End) {
		return nil, fmt.Errorf("calendar: event end must be after start")
	}
	ev := Event{
		ID:          strings.ReplaceAll(uuid.NewString(), "-", ""),
		Summary:     in.Summary,
		Description: in.Description,
		Status:      "confirmed",
		Start:       in.Interval.Start,
		End:         in.Interval.End,
		Attendees:   append([]Attendee(nil), in.Attendees...),
		Properties:  copyProps(in.Properties),
	}

	m.mu.Lock()
	m.events[ev.ID] = ev
	m.mu.Unlock()

	out := ev
	return &out, nil
}

// PatchEventTime moves an existing event.
func (m *MemoryGateway) PatchEventTime(_ context.Context, eventID string, interval availability.Interval) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	ev.Start = interval.Start
	ev.End = interval.End
	m.events[eventID] = ev

	out := ev
	return &out, nil
}

// DeleteEvent removes an event.
func (m *MemoryGateway) DeleteEvent(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; !ok {
		return fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	delete(m.events, eventID)
	return nil
}

// SearchEvents matches q.Text case-insensitively against summary,
// description and attendees. An empty text matches every event.
func (m *MemoryGateway) SearchEvents(_ context.Context, q SearchQuery) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(q.Text))
	limit := searchLimit(q)
	out := make([]Event, 0, limit)
	for _, ev := range m.sorted() {
		if !q.Since.IsZero() && !ev.End.After(q.Since) {
			continue
		}
		if needle != "" && !strings.Contains(searchText(ev), needle) {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Len reports how many events are stored.
func (m *MemoryGateway) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

func (m *MemoryGateway) sorted() []Event {
	events := make([]Event, 0, len(m.events))
	for _, ev := range m.events {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].ID < events[j].ID
		}
		return events[i].Start.Before(events[j].Start)
	})
	return events
}

func searchText(ev Event) string {
	var b strings.Builder
	b.WriteString(ev.Summary)
	b.WriteByte('\n')
	b.WriteString(ev.Description)
	for _, a := range ev.Attendees {
		b.WriteByte('\n')
		b.WriteString(a.Email)
		b.WriteByte(' ')
		b.WriteString(a.DisplayName)
	}
	return strings.ToLower(b.String())
}

func copyProps(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

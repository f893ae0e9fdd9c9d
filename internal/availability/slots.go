// Package availability turns a calendar's busy intervals into bookable slots.
package availability

import (
	"errors"
	"fmt"
	"time"
)

// DefaultStepMinutes is the grid granularity used when scanning a window.
const DefaultStepMinutes = 15

// ErrInvalidWindow is returned for a malformed window or step.
var ErrInvalidWindow = errors.New("availability: invalid window")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the two half-open intervals share any instant.
// Intervals that only touch at an endpoint do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Window bounds an availability search. To is inclusive for slot ends.
type Window struct {
	From            time.Time
	To              time.Time
	DurationMinutes int
}

// Validate rejects non-positive durations and inverted bounds.
func (w Window) Validate() error {
	if w.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidWindow, w.DurationMinutes)
	}
	if w.From.After(w.To) {
		return fmt.Errorf("%w: from %s is after to %s", ErrInvalidWindow, w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
	}
	return nil
}

// Slot is a free interval of exactly the requested duration.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Interval returns the slot as an Interval.
func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// ComputeFreeSlots scans w from w.From in stepMinutes increments and returns
// every candidate [cursor, cursor+duration) that ends no later than w.To and
// overlaps none of busy. busy may be unsorted and may contain overlapping
// entries. The result is ordered by start time.
func ComputeFreeSlots(busy []Interval, w Window, stepMinutes int) ([]Slot, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if stepMinutes <= 0 {
		return nil, fmt.Errorf("%w: step must be positive, got %d", ErrInvalidWindow, stepMinutes)
	}

	duration := time.Duration(w.DurationMinutes) * time.Minute
	step := time.Duration(stepMinutes) * time.Minute

	slots := make([]Slot, 0)
	for cursor := w.From; !cursor.Add(duration).After(w.To); cursor = cursor.Add(step) {
		candidate := Interval{Start: cursor, End: cursor.Add(duration)}
		if conflicts(candidate, busy) {
			continue
		}
		slots = append(slots, Slot{Start: candidate.Start, End: candidate.End})
	}
	return slots, nil
}

func conflicts(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if b.Overlaps(candidate) {
			return true
		}
	}
	return false
}

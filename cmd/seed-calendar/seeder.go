package main

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/pharmacy-assistant/internal/availability"
	"github.com/wolfman30/pharmacy-assistant/internal/calendar"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
)

type demoEvent struct {
	start, end string // HH:MM clinic time
	title      string
	kind       string
}

// demoWeek holds the busy schedule per weekday.
var demoWeek = map[time.Weekday][]demoEvent{
	time.Monday: {
		{"09:00", "09:30", "Consultation - Dr. Smith", "consultation"},
		{"10:15", "10:45", "Flu Shot - John Doe", "flu_shot"},
		{"11:30", "12:00", "Medication Review - Jane Smith", "medication_review"},
		{"14:00", "14:30", "Vaccination - Mike Johnson", "vaccination"},
		{"15:45", "16:15", "Consultation - Sarah Wilson", "consultation"},
	},
	time.Tuesday: {
		{"08:30", "09:00", "Flu Shot - Robert Brown", "flu_shot"},
		{"09:45", "10:15", "Consultation - Lisa Davis", "consultation"},
		{"11:00", "11:30", "Medication Review - Tom Miller", "medication_review"},
		{"13:30", "14:00", "Vaccination - Emily Garcia", "vaccination"},
		{"15:00", "15:30", "Flu Shot - David Martinez", "flu_shot"},
	},
	time.Wednesday: {
		{"09:30", "10:00", "Consultation - Anna Rodriguez", "consultation"},
		{"11:15", "11:45", "Medication Review - Chris Lee", "medication_review"},
		{"14:30", "15:00", "Vaccination - Maria Gonzalez", "vaccination"},
	},
	time.Thursday: {
		{"08:00", "08:30", "Flu Shot - James Wilson", "flu_shot"},
		{"09:15", "09:45", "Consultation - Jennifer Taylor", "consultation"},
		{"10:30", "11:00", "Medication Review - Michael Anderson", "medication_review"},
		{"11:45", "12:15", "Vaccination - Amanda Thomas", "vaccination"},
		{"13:00", "13:30", "Flu Shot - Daniel Jackson", "flu_shot"},
		{"14:15", "14:45", "Consultation - Rachel White", "consultation"},
		{"15:30", "16:00", "Medication Review - Kevin Harris", "medication_review"},
	},
	time.Friday: {
		{"09:00", "09:30", "Flu Shot - Nicole Clark", "flu_shot"},
		{"10:45", "11:15", "Consultation - Brandon Lewis", "consultation"},
		{"12:30", "13:00", "Vaccination - Stephanie Walker", "vaccination"},
		{"14:45", "15:15", "Medication Review - Tyler Hall", "medication_review"},
	},
}

type seeder struct {
	gateway  calendar.Gateway
	location *time.Location
	logger   *logging.Logger
}

// Run seeds days calendar days starting at from. Weekends are skipped, as is
// any demo slot that already overlaps a busy interval. Individual failures are
// logged and do not stop the run.
func (s *seeder) Run(ctx context.Context, from time.Time, days int) (created, skipped int) {
	day := from.In(s.location)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.location)

	for i := 0; i < days; i++ {
		current := day.AddDate(0, 0, i)
		for _, ev := range demoWeek[current.Weekday()] {
			interval, err := ev.interval(current)
			if err != nil {
				s.logger.Error("invalid demo event", "title", ev.title, "error", err)
				continue
			}
			busy, err := s.gateway.FreeBusy(ctx, interval.Start, interval.End)
			if err != nil {
				s.logger.Error("free/busy lookup failed", "title", ev.title, "error", err)
				continue
			}
			if len(busy) > 0 {
				s.logger.Info("skipping existing slot", "title", ev.title, "start", interval.Start)
				skipped++
				continue
			}
			if _, err := s.gateway.CreateEvent(ctx, calendar.EventInput{
				Summary:     ev.title,
				Description: "Demo appointment created by seed-calendar",
				Interval:    interval,
				Properties:  map[string]string{calendar.PropAppointmentType: ev.kind},
			}); err != nil {
				s.logger.Error("failed to create demo event", "title", ev.title, "error", err)
				continue
			}
			s.logger.Info("created demo event", "title", ev.title, "start", interval.Start)
			created++
		}
	}
	return created, skipped
}

func (e demoEvent) interval(day time.Time) (availability.Interval, error) {
	start, err := clock(day, e.start)
	if err != nil {
		return availability.Interval{}, err
	}
	end, err := clock(day, e.end)
	if err != nil {
		return availability.Interval{}, err
	}
	return availability.Interval{Start: start, End: end}, nil
}

func clock(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", hhmm, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

package config

import (
	"fmt"
	"time"

	"invitecal/internal/timeline"
)

// Timeline builds the countdown timeline from Events in the configured
// timezone. Any parse or ordering problem is a configuration error.
func (c *Config) Timeline() (*timeline.Timeline, error) {
	loc := c.Location()
	events := make([]timeline.Event, 0, len(c.Events))
	for i, ec := range c.Events {
		ev, err := ec.toEvent(loc)
		if err != nil {
			return nil, fmt.Errorf("config: events[%d] (%s): %w", i, ec.Name, err)
		}
		events = append(events, ev)
	}
	tl, err := timeline.New(events...)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return tl, nil
}

func (ec EventConfig) toEvent(loc *time.Location) (timeline.Event, error) {
	day, err := timeline.ParseDayKey(ec.Date)
	if err != nil {
		return timeline.Event{}, err
	}
	sh, sm, err := parseClock(ec.Start)
	if err != nil {
		return timeline.Event{}, fmt.Errorf("start: %w", err)
	}
	eh, em, err := parseClock(ec.End)
	if err != nil {
		return timeline.Event{}, fmt.Errorf("end: %w", err)
	}

	start := day.At(sh, sm, loc)
	end := day.At(eh, em, loc)
	if !end.After(start) {
		end = time.Date(end.Year(), end.Month(), end.Day()+1, eh, em, 0, 0, loc)
	}

	return timeline.Event{
		Name:        ec.Name,
		Day:         day,
		WindowStart: start,
		WindowEnd:   end,
		Venue:       ec.Venue,
		Address:     ec.Address,
	}, nil
}

func parseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return t.Hour(), t.Minute(), nil
}

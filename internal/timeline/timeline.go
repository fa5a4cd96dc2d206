// Package timeline maps "now" onto the wedding's fixed list of dated
// occasions and answers what the countdown should display at that instant.
package timeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyTimeline is returned by New when no events are given.
	ErrEmptyTimeline = errors.New("timeline: no events")
	// ErrInvalidWindow is returned when an event's window ends before it starts.
	ErrInvalidWindow = errors.New("timeline: window ends before it starts")
	// ErrUnordered is returned when events overlap or are not earliest first.
	ErrUnordered = errors.New("timeline: events out of order or overlapping")
)

// DayKey is a calendar date independent of time of day.
type DayKey struct {
	Year  int
	Month time.Month
	Day   int
}

// KeyOf returns the calendar date of t in t's own location.
func KeyOf(t time.Time) DayKey {
	y, m, d := t.Date()
	return DayKey{Year: y, Month: m, Day: d}
}

// ParseDayKey parses a YYYY-MM-DD date.
func ParseDayKey(s string) (DayKey, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return DayKey{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return KeyOf(t), nil
}

func (k DayKey) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", k.Year, int(k.Month), k.Day)
}

// At returns the given wall clock time on this day in loc.
func (k DayKey) At(hour, minute int, loc *time.Location) time.Time {
	return time.Date(k.Year, k.Month, k.Day, hour, minute, 0, 0, loc)
}

// Event is one dated occasion of the wedding.
type Event struct {
	Name string

	// WindowStart and WindowEnd bound the "happening" window.
	WindowStart time.Time
	WindowEnd   time.Time

	// Day is the date used for the coarse "is today" check.
	Day DayKey

	// Display only.
	Venue   string
	Address string
}

// Timeline is an immutable, earliest-first sequence of events.
type Timeline struct {
	events []Event
}

// New validates events and returns a Timeline owning a copy of them.
func New(events ...Event) (*Timeline, error) {
	if len(events) == 0 {
		return nil, ErrEmptyTimeline
	}
	for i, ev := range events {
		if ev.WindowEnd.Before(ev.WindowStart) {
			return nil, fmt.Errorf("event %d (%s): %w", i, ev.Name, ErrInvalidWindow)
		}
		if i > 0 && !events[i-1].WindowEnd.Before(ev.WindowStart) {
			return nil, fmt.Errorf("event %d (%s) starts before %s ends: %w",
				i, ev.Name, events[i-1].Name, ErrUnordered)
		}
	}
	owned := make([]Event, len(events))
	copy(owned, events)
	return &Timeline{events: owned}, nil
}

// MustNew is New for fixtures known to be valid. It panics on error.
func MustNew(events ...Event) *Timeline {
	tl, err := New(events...)
	if err != nil {
		panic(err)
	}
	return tl
}

// Events returns a copy of the events in order.
func (tl *Timeline) Events() []Event {
	out := make([]Event, len(tl.events))
	copy(out, tl.events)
	return out
}

// Len reports the number of events.
func (tl *Timeline) Len() int { return len(tl.events) }

// First returns the earliest event.
func (tl *Timeline) First() Event { return tl.events[0] }

// Last returns the latest event.
func (tl *Timeline) Last() Event { return tl.events[len(tl.events)-1] }

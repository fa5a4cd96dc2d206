package ics

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "invitecal/internal/log"
	"invitecal/internal/timeline"
)

// ParseTimeline reads an organiser calendar and returns its VEVENTs as
// timeline events in loc, earliest first.
//
//   - All-day events (VALUE=DATE or a date without time) span their whole day.
//   - A recurring definition collapses to its first occurrence that is not
//     removed by EXDATE; the countdown only knows single dated occasions.
//   - VEVENTs without a usable DTSTART are skipped and logged.
//
// The result still has to pass timeline.New.
func ParseTimeline(body []byte, loc *time.Location) ([]timeline.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", err)
	}

	events := make([]timeline.Event, 0)
	for _, ve := range cal.Events() {
		ev, err := toEvent(ve, loc)
		if err != nil {
			appLog.Error("ics vevent skipped", err, "uid", propValue(ve, ical.ComponentPropertyUniqueId))
			continue
		}
		events = append(events, ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].WindowStart.Before(events[j].WindowStart)
	})
	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func toEvent(ve *ical.VEvent, loc *time.Location) (timeline.Event, error) {
	start, err := ve.GetStartAt()
	if err != nil {
		return timeline.Event{}, fmt.Errorf("DTSTART: %w", err)
	}
	end, err := ve.GetEndAt()
	if err != nil || end.Before(start) {
		end = start
	}
	allDay := isAllDay(ve.GetProperty(ical.ComponentPropertyDtStart))

	if rule := propValue(ve, ical.ComponentPropertyRrule); rule != "" {
		first, err := firstOccurrence(rule, start, exDates(ve, start.Location()))
		if err != nil {
			return timeline.Event{}, err
		}
		end = first.Add(end.Sub(start))
		start = first
	}

	var ev timeline.Event
	if allDay {
		// Take the calendar date as written, not as an instant.
		day := timeline.DayKey{Year: start.Year(), Month: start.Month(), Day: start.Day()}
		ev.Day = day
		ev.WindowStart = day.At(0, 0, loc)
		ev.WindowEnd = day.At(0, 0, loc).AddDate(0, 0, 1).Add(-time.Second)
	} else {
		ev.WindowStart = start.In(loc)
		ev.WindowEnd = end.In(loc)
		ev.Day = timeline.KeyOf(ev.WindowStart)
	}

	ev.Name = propValue(ve, ical.ComponentPropertySummary)
	if ev.Name == "" {
		ev.Name = "Untitled"
	}
	ev.Venue = propValue(ve, ical.ComponentPropertyLocation)
	return ev, nil
}

// firstOccurrence returns the first instance of rule at or after dtstart
// that EXDATE does not exclude.
func firstOccurrence(rule string, dtstart time.Time, exdates []time.Time) (time.Time, error) {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return time.Time{}, fmt.Errorf("RRULE %q: %w", rule, err)
	}
	r.DTStart(dtstart)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exdates {
		set.ExDate(ex)
	}

	first := set.After(dtstart, true)
	if first.IsZero() {
		return time.Time{}, fmt.Errorf("RRULE %q has no occurrences", rule)
	}
	return first, nil
}

func exDates(ve *ical.VEvent, loc *time.Location) []time.Time {
	var out []time.Time
	for _, p := range ve.Properties {
		if p.IANAToken != string(ical.ComponentPropertyExdate) {
			continue
		}
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(strings.TrimSpace(part), loc); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

func isAllDay(p *ical.IANAProperty) bool {
	if p == nil {
		return false
	}
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

// parseICSTime handles the basic DATE / DATE-TIME / UTC forms used by EXDATE.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

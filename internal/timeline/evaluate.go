package timeline

import "time"

const (
	millisPerSecond = 1000
	millisPerMinute = 60 * millisPerSecond
	millisPerHour   = 60 * millisPerMinute
	millisPerDay    = 24 * millisPerHour
)

// Kind names a Result variant. It is also the wire value in JSON payloads.
type Kind string

const (
	KindCounting  Kind = "counting"
	KindToday     Kind = "today"
	KindConcluded Kind = "concluded"
)

// Result is what the countdown shows at one instant. The variants are
// Counting, HappeningToday and Concluded; no other type implements it.
type Result interface {
	Kind() Kind
	result()
}

// Remaining is a whole-unit decomposition of the time left.
type Remaining struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// TotalSeconds recombines the units.
func (r Remaining) TotalSeconds() int64 {
	return int64(r.Days)*86400 + int64(r.Hours)*3600 + int64(r.Minutes)*60 + int64(r.Seconds)
}

// Decompose floors d into days, hours, minutes and seconds. Negative
// durations decompose to zero.
func Decompose(d time.Duration) Remaining {
	ms := d.Milliseconds()
	if ms <= 0 {
		return Remaining{}
	}
	return Remaining{
		Days:    int(ms / millisPerDay),
		Hours:   int(ms / millisPerHour % 24),
		Minutes: int(ms / millisPerMinute % 60),
		Seconds: int(ms / millisPerSecond % 60),
	}
}

// Counting means Target has not started yet.
type Counting struct {
	Target    Event
	Remaining Remaining
}

// HappeningToday means it is Event's calendar day, or its window is open.
type HappeningToday struct {
	Event Event
}

// Concluded means every window has closed.
type Concluded struct{}

func (Counting) Kind() Kind       { return KindCounting }
func (HappeningToday) Kind() Kind { return KindToday }
func (Concluded) Kind() Kind      { return KindConcluded }

func (Counting) result()       {}
func (HappeningToday) result() {}
func (Concluded) result()      {}

// Evaluate is shorthand for Evaluate(tl, now).
func (tl *Timeline) Evaluate(now time.Time) Result {
	return Evaluate(tl, now)
}

// Evaluate decides what to display at now. The day check runs first and
// wins over the precise windows: any moment on an event's calendar day is
// "today" for that event, so a later event is never counted down to while an
// earlier event's day is still running.
func Evaluate(tl *Timeline, now time.Time) Result {
	today := KeyOf(now)
	for _, ev := range tl.events {
		if ev.Day == today {
			return HappeningToday{Event: ev}
		}
	}

	for _, ev := range tl.events {
		if ev.WindowEnd.Before(now) {
			continue
		}
		if now.Before(ev.WindowStart) {
			return Counting{
				Target:    ev,
				Remaining: Decompose(ev.WindowStart.Sub(now)),
			}
		}
		return HappeningToday{Event: ev}
	}

	return Concluded{}
}

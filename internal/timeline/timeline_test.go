package timeline

import (
	"errors"
	"testing"
	"time"
)

func weddingTimeline(t *testing.T) *Timeline {
	t.Helper()
	loc := time.Local
	dayA := DayKey{Year: 2026, Month: time.April, Day: 16}
	dayB := DayKey{Year: 2026, Month: time.April, Day: 18}
	tl, err := New(
		Event{Name: "Welcome dinner", Day: dayA, WindowStart: dayA.At(19, 0, loc), WindowEnd: dayA.At(21, 0, loc)},
		Event{Name: "Ceremony", Day: dayB, WindowStart: dayB.At(16, 30, loc), WindowEnd: dayB.At(23, 59, loc)},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tl
}

func at(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.Local)
}

func TestNewRejectsBadTimelines(t *testing.T) {
	day := DayKey{Year: 2026, Month: time.May, Day: 1}
	start := day.At(10, 0, time.UTC)

	tests := []struct {
		name   string
		events []Event
		want   error
	}{
		{name: "empty", events: nil, want: ErrEmptyTimeline},
		{
			name:   "inverted window",
			events: []Event{{Name: "x", Day: day, WindowStart: start, WindowEnd: start.Add(-time.Minute)}},
			want:   ErrInvalidWindow,
		},
		{
			name: "out of order",
			events: []Event{
				{Name: "late", Day: day, WindowStart: start.Add(2 * time.Hour), WindowEnd: start.Add(3 * time.Hour)},
				{Name: "early", Day: day, WindowStart: start, WindowEnd: start.Add(time.Hour)},
			},
			want: ErrUnordered,
		},
		{
			name: "overlapping",
			events: []Event{
				{Name: "a", Day: day, WindowStart: start, WindowEnd: start.Add(2 * time.Hour)},
				{Name: "b", Day: day, WindowStart: start.Add(time.Hour), WindowEnd: start.Add(3 * time.Hour)},
			},
			want: ErrUnordered,
		},
		{
			name: "touching",
			events: []Event{
				{Name: "a", Day: day, WindowStart: start, WindowEnd: start.Add(time.Hour)},
				{Name: "b", Day: day, WindowStart: start.Add(time.Hour), WindowEnd: start.Add(2 * time.Hour)},
			},
			want: ErrUnordered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.events...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewCopiesEvents(t *testing.T) {
	day := DayKey{Year: 2026, Month: time.May, Day: 1}
	events := []Event{{Name: "orig", Day: day, WindowStart: day.At(10, 0, time.UTC), WindowEnd: day.At(11, 0, time.UTC)}}
	tl := MustNew(events...)
	events[0].Name = "mutated"

	if got := tl.First().Name; got != "orig" {
		t.Errorf("timeline shares caller slice: got %q", got)
	}
	out := tl.Events()
	out[0].Name = "mutated"
	if got := tl.First().Name; got != "orig" {
		t.Errorf("Events() exposes internal slice: got %q", got)
	}
}

func TestEvaluateScenario(t *testing.T) {
	tl := weddingTimeline(t)

	tests := []struct {
		name      string
		now       time.Time
		wantKind  Kind
		wantEvent string
		wantDays  int
	}{
		{name: "day before first event", now: at(2026, 4, 15, 10, 0, 0), wantKind: KindCounting, wantEvent: "Welcome dinner", wantDays: 1},
		{name: "first event day before window", now: at(2026, 4, 16, 8, 0, 0), wantKind: KindToday, wantEvent: "Welcome dinner"},
		{name: "first event inside window", now: at(2026, 4, 16, 20, 0, 0), wantKind: KindToday, wantEvent: "Welcome dinner"},
		{name: "first event day after window", now: at(2026, 4, 16, 23, 30, 0), wantKind: KindToday, wantEvent: "Welcome dinner"},
		{name: "between events", now: at(2026, 4, 17, 0, 0, 0), wantKind: KindCounting, wantEvent: "Ceremony", wantDays: 1},
		{name: "ceremony morning", now: at(2026, 4, 18, 9, 0, 0), wantKind: KindToday, wantEvent: "Ceremony"},
		{name: "after everything", now: at(2026, 4, 19, 0, 0, 0), wantKind: KindConcluded},
		{name: "long after", now: at(2027, 1, 1, 12, 0, 0), wantKind: KindConcluded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(tl, tt.now)
			if res.Kind() != tt.wantKind {
				t.Fatalf("Kind() = %s, want %s (%#v)", res.Kind(), tt.wantKind, res)
			}
			switch r := res.(type) {
			case Counting:
				if r.Target.Name != tt.wantEvent {
					t.Errorf("target = %q, want %q", r.Target.Name, tt.wantEvent)
				}
				if r.Remaining.Days != tt.wantDays {
					t.Errorf("days = %d, want %d", r.Remaining.Days, tt.wantDays)
				}
			case HappeningToday:
				if r.Event.Name != tt.wantEvent {
					t.Errorf("event = %q, want %q", r.Event.Name, tt.wantEvent)
				}
			case Concluded:
			default:
				t.Fatalf("unexpected result type %T", res)
			}
		})
	}
}

func TestEvaluateCountingIdentity(t *testing.T) {
	tl := weddingTimeline(t)
	start := tl.First().WindowStart

	for _, before := range []time.Duration{
		1500 * time.Millisecond,
		59 * time.Second,
		time.Hour + 1,
		25*time.Hour + 17*time.Minute + 3*time.Second + 999*time.Millisecond,
		90 * 24 * time.Hour,
	} {
		now := start.Add(-before)
		if KeyOf(now) == tl.First().Day {
			continue
		}
		res, ok := Evaluate(tl, now).(Counting)
		if !ok {
			t.Fatalf("%v before start: want Counting, got %#v", before, Evaluate(tl, now))
		}
		want := int64(start.Sub(now) / time.Second)
		if got := res.Remaining.TotalSeconds(); got != want {
			t.Errorf("%v before start: total seconds %d, want %d (%+v)", before, got, want, res.Remaining)
		}
		r := res.Remaining
		if r.Days < 0 || r.Hours < 0 || r.Hours > 23 || r.Minutes < 0 || r.Minutes > 59 || r.Seconds < 0 || r.Seconds > 59 {
			t.Errorf("units out of range: %+v", r)
		}
	}
}

func TestEvaluateTicksDownWithBorrow(t *testing.T) {
	tl := weddingTimeline(t)
	// 2026-04-14 18:59:59 is exactly 2 days and 1 second before the dinner.
	now := at(2026, 4, 14, 18, 59, 59)

	first := Evaluate(tl, now).(Counting).Remaining
	if first != (Remaining{Days: 2, Seconds: 1}) {
		t.Fatalf("first = %+v", first)
	}
	second := Evaluate(tl, now.Add(time.Second)).(Counting).Remaining
	if second != (Remaining{Days: 2}) {
		t.Fatalf("second = %+v", second)
	}
	third := Evaluate(tl, now.Add(2*time.Second)).(Counting).Remaining
	if third != (Remaining{Days: 1, Hours: 23, Minutes: 59, Seconds: 59}) {
		t.Fatalf("third = %+v", third)
	}

	prev := first.TotalSeconds()
	for i := 1; i <= 3*3600; i++ {
		r := Evaluate(tl, now.Add(time.Duration(i)*time.Second)).(Counting).Remaining
		if got := r.TotalSeconds(); got != prev-1 {
			t.Fatalf("step %d: total %d, want %d", i, got, prev-1)
		}
		prev = r.TotalSeconds()
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	tl := weddingTimeline(t)
	now := at(2026, 3, 1, 12, 34, 56)
	if a, b := Evaluate(tl, now), Evaluate(tl, now); a != b {
		t.Errorf("Evaluate not idempotent: %#v vs %#v", a, b)
	}
}

func TestEvaluateDayKeyWinsOverLaterEvent(t *testing.T) {
	loc := time.UTC
	day := DayKey{Year: 2026, Month: time.June, Day: 6}
	next := DayKey{Year: 2026, Month: time.June, Day: 7}
	tl := MustNew(
		Event{Name: "brunch", Day: day, WindowStart: day.At(10, 0, loc), WindowEnd: day.At(12, 0, loc)},
		Event{Name: "farewell", Day: next, WindowStart: next.At(10, 0, loc), WindowEnd: next.At(12, 0, loc)},
	)

	res := Evaluate(tl, day.At(18, 0, loc))
	today, ok := res.(HappeningToday)
	if !ok || today.Event.Name != "brunch" {
		t.Fatalf("want HappeningToday(brunch), got %#v", res)
	}
}

func TestEvaluateOpenWindowOnOtherDay(t *testing.T) {
	loc := time.UTC
	day := DayKey{Year: 2026, Month: time.June, Day: 6}
	// The party runs past midnight; 01:00 on the next day is inside the
	// window but no longer on the event's day.
	tl := MustNew(Event{Name: "party", Day: day, WindowStart: day.At(20, 0, loc), WindowEnd: day.At(20, 0, loc).Add(8 * time.Hour)})

	res := Evaluate(tl, day.At(20, 0, loc).Add(5*time.Hour))
	if got, ok := res.(HappeningToday); !ok || got.Event.Name != "party" {
		t.Fatalf("want HappeningToday(party), got %#v", res)
	}
	if res := Evaluate(tl, day.At(20, 0, loc).Add(9*time.Hour)); res.Kind() != KindConcluded {
		t.Fatalf("want Concluded after window, got %#v", res)
	}
}

func TestDecompose(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want Remaining
	}{
		{d: 0, want: Remaining{}},
		{d: -time.Hour, want: Remaining{}},
		{d: 999 * time.Millisecond, want: Remaining{}},
		{d: 61 * time.Second, want: Remaining{Minutes: 1, Seconds: 1}},
		{d: 24*time.Hour - time.Millisecond, want: Remaining{Hours: 23, Minutes: 59, Seconds: 59}},
		{d: 49*time.Hour + 30*time.Minute, want: Remaining{Days: 2, Hours: 1, Minutes: 30}},
	}
	for _, tt := range tests {
		if got := Decompose(tt.d); got != tt.want {
			t.Errorf("Decompose(%v) = %+v, want %+v", tt.d, got, tt.want)
		}
	}
}

func TestDayKey(t *testing.T) {
	k, err := ParseDayKey("2026-04-18")
	if err != nil {
		t.Fatalf("ParseDayKey: %v", err)
	}
	if k.String() != "2026-04-18" {
		t.Errorf("String() = %s", k)
	}
	if _, err := ParseDayKey("18.04.2026"); err == nil {
		t.Error("expected error for non ISO date")
	}
	seoul := time.FixedZone("KST", 9*3600)
	instant := time.Date(2026, 4, 17, 20, 0, 0, 0, time.UTC)
	if got := KeyOf(instant.In(seoul)); got != (DayKey{2026, time.April, 18}) {
		t.Errorf("KeyOf in +09:00 = %s, want 2026-04-18", got)
	}
}

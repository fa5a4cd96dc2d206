package ics

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	ical "github.com/arran4/golang-ical"

	"invitecal/internal/timeline"
)

const defaultProductID = "-//invitecal//Wedding Invitation//EN"

// ExportOptions tweaks the generated calendar.
type ExportOptions struct {
	// ProductID defaults to "-//invitecal//Wedding Invitation//EN".
	ProductID string
	// Title prefixes every summary, e.g. "Jiwoo & Sam".
	Title string
	// URL links each event back to the invitation page.
	URL string
	// UIDDomain scopes event UIDs. Defaults to the host of URL, then
	// "invitecal".
	UIDDomain string
	// Now stamps DTSTAMP. Defaults to time.Now().
	Now time.Time
}

// Export renders the timeline as an iCalendar document guests can import.
// UIDs are derived from the event day and name so re-downloads update the
// same entries instead of duplicating them.
func Export(tl *timeline.Timeline, opts ExportOptions) string {
	if opts.ProductID == "" {
		opts.ProductID = defaultProductID
	}
	if opts.UIDDomain == "" {
		opts.UIDDomain = hostOf(opts.URL)
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(opts.ProductID)

	for _, ev := range tl.Events() {
		vev := cal.AddEvent(eventUID(ev, opts.UIDDomain))
		vev.SetDtStampTime(opts.Now.UTC())
		vev.SetStartAt(ev.WindowStart.UTC())
		vev.SetEndAt(ev.WindowEnd.UTC())

		summary := ev.Name
		if opts.Title != "" {
			summary = opts.Title + " - " + ev.Name
		}
		vev.SetSummary(summary)

		if loc := joinNonEmpty(", ", ev.Venue, ev.Address); loc != "" {
			vev.SetLocation(loc)
		}
		if opts.URL != "" {
			vev.SetURL(opts.URL)
		}
	}

	return cal.Serialize()
}

// eventUID is <day>-<slug>@<domain>. Names with no letters or digits fall
// back to the start time so same-day events never share a UID.
func eventUID(ev timeline.Event, domain string) string {
	slug := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '-'
	}, ev.Name)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = ev.WindowStart.UTC().Format("150405")
	}
	return fmt.Sprintf("%s-%s@%s", ev.Day, slug, domain)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "invitecal"
	}
	return u.Hostname()
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

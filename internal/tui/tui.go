// Package tui is the terminal countdown shown by `invitecal countdown`.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"invitecal/internal/countdown"
	"invitecal/internal/gallery"
	"invitecal/internal/model"
	"invitecal/internal/timeline"
)

const (
	defaultWidth     = 72
	guestbookRows    = 8
	minGuestbookWrap = 20
)

// Options wires the model. Guestbook may be nil.
type Options struct {
	Title     string
	Holder    *countdown.Holder
	Clock     countdown.Clock
	Guestbook GuestbookLister
	// Interval between ticks; zero means countdown.DefaultInterval.
	Interval time.Duration
}

// GuestbookLister is the read half of store.Guestbook.
type GuestbookLister interface {
	List(ctx context.Context) ([]model.GuestbookEntry, error)
}

// Model owns Bubble Tea state for the countdown screen.
type Model struct {
	ctx       context.Context
	title     string
	holder    *countdown.Holder
	clock     countdown.Clock
	guestbook GuestbookLister
	interval  time.Duration

	snap countdown.Snapshot

	entries  []model.GuestbookEntry
	lines    []string
	offset   int
	gbErr    error
	width    int
	quitting bool

	styles styles
}

type tickMsg time.Time

type guestbookMsg struct {
	entries []model.GuestbookEntry
	err     error
}

type styles struct {
	title  lipgloss.Style
	digit  lipgloss.Style
	unit   lipgloss.Style
	banner lipgloss.Style
	muted  lipgloss.Style
	author lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		digit: lipgloss.NewStyle().
			Bold(true).
			Width(6).
			Align(lipgloss.Center).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("212")),
		unit:   lipgloss.NewStyle().Width(8).Align(lipgloss.Center).Foreground(lipgloss.Color("245")),
		banner: lipgloss.NewStyle().Bold(true).Padding(1, 4).Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("212")),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		author: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111")),
	}
}

// NewModel seeds the model with an evaluation of the current instant so the
// first frame is never empty.
func NewModel(ctx context.Context, opts Options) Model {
	clock := opts.Clock
	if clock == nil {
		clock = countdown.SystemClock{}
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = countdown.DefaultInterval
	}
	now := clock.Now()
	return Model{
		ctx:       ctx,
		title:     opts.Title,
		holder:    opts.Holder,
		clock:     clock,
		guestbook: opts.Guestbook,
		interval:  interval,
		snap:      countdown.Snapshot{At: now, Result: opts.Holder.Load().Evaluate(now)},
		width:     defaultWidth,
		styles:    defaultStyles(),
	}
}

// Init starts the tick and loads the guestbook.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), m.loadGuestbookCmd())
}

// Update wires state transitions from ticks, window size and keys.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.quitting {
			return m, nil
		}
		now := m.clock.Now()
		m.snap = countdown.Snapshot{At: now, Result: m.holder.Load().Evaluate(now)}
		return m, m.tickCmd()
	case guestbookMsg:
		m.entries, m.gbErr = msg.entries, msg.err
		m.rewrap()
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.rewrap()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case "down", "j":
		if m.offset < m.maxOffset() {
			m.offset++
		}
	case "up", "k":
		if m.offset > 0 {
			m.offset--
		}
	case "r":
		return m, m.loadGuestbookCmd()
	}
	return m, nil
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) loadGuestbookCmd() tea.Cmd {
	if m.guestbook == nil {
		return nil
	}
	gb := m.guestbook
	ctx := m.ctx
	return func() tea.Msg {
		entries, err := gb.List(ctx)
		return guestbookMsg{entries: entries, err: err}
	}
}

// rewrap re-flows guestbook entries for the current width.
func (m *Model) rewrap() {
	wrap := m.width - 4
	if wrap < minGuestbookWrap {
		wrap = minGuestbookWrap
	}
	var lines []string
	for _, e := range m.entries {
		lines = append(lines, m.styles.author.Render(e.Author))
		for _, l := range strings.Split(wordwrap.String(e.Text, wrap), "\n") {
			lines = append(lines, "  "+l)
		}
	}
	m.lines = lines
	if m.offset > m.maxOffset() {
		m.offset = m.maxOffset()
	}
}

func (m Model) maxOffset() int {
	if n := len(m.lines) - guestbookRows; n > 0 {
		return n
	}
	return 0
}

// Snapshot returns the result currently on screen.
func (m Model) Snapshot() countdown.Snapshot { return m.snap }

// View renders the frame.
func (m Model) View() string {
	var b strings.Builder

	if m.title != "" {
		b.WriteString(m.styles.title.Render(m.title))
		b.WriteString("\n\n")
	}
	b.WriteString(m.renderResult())
	b.WriteString("\n\n")
	b.WriteString(m.renderGuestbook())
	b.WriteString("\n")
	b.WriteString(m.styles.muted.Render("j/k scroll  r reload guestbook  q quit"))
	b.WriteByte('\n')
	return b.String()
}

func (m Model) renderResult() string {
	switch r := m.snap.Result.(type) {
	case timeline.Counting:
		rem := r.Remaining
		cells := []string{
			m.cell(rem.Days, "days"),
			m.cell(rem.Hours, "hours"),
			m.cell(rem.Minutes, "minutes"),
			m.cell(rem.Seconds, "seconds"),
		}
		grid := lipgloss.JoinHorizontal(lipgloss.Top, cells...)
		until := m.styles.muted.Render(fmt.Sprintf("until %s, %s", r.Target.Name, r.Target.WindowStart.Format("Mon Jan 2 15:04")))
		return lipgloss.JoinVertical(lipgloss.Left, grid, until)
	case timeline.HappeningToday:
		text := "Today is the day! " + r.Event.Name
		if r.Event.Venue != "" {
			text += " at " + r.Event.Venue
		}
		return m.styles.banner.Render(text)
	default:
		return m.styles.banner.Render("Thank you for celebrating with us")
	}
}

func (m Model) cell(n int, unit string) string {
	return lipgloss.JoinVertical(lipgloss.Center,
		m.styles.digit.Render(fmt.Sprintf("%02d", n)),
		m.styles.unit.Render(unit),
	)
}

func (m Model) renderGuestbook() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("Guestbook"))
	b.WriteByte('\n')

	switch {
	case m.gbErr != nil:
		b.WriteString(m.styles.muted.Render("guestbook unavailable"))
		b.WriteByte('\n')
		return b.String()
	case len(m.lines) == 0:
		b.WriteString(m.styles.muted.Render("(no messages yet)"))
		b.WriteByte('\n')
		return b.String()
	}

	end := m.offset + guestbookRows
	if end > len(m.lines) {
		end = len(m.lines)
	}
	for _, l := range m.lines[m.offset:end] {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if len(m.lines) > guestbookRows {
		pct := gallery.Progress(m.offset, len(m.lines), guestbookRows)
		b.WriteString(m.styles.muted.Render(fmt.Sprintf("%s %3d%%", progressBar(pct, 20), pct)))
		b.WriteByte('\n')
	}
	return b.String()
}

func progressBar(pct, width int) string {
	filled := pct * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Describe renders a one-line plain text summary of r, used by
// `countdown --once`.
func Describe(r timeline.Result) string {
	switch r := r.(type) {
	case timeline.Counting:
		rem := r.Remaining
		return fmt.Sprintf("%dd %02dh %02dm %02ds until %s (%s)",
			rem.Days, rem.Hours, rem.Minutes, rem.Seconds,
			r.Target.Name, r.Target.WindowStart.Format(time.RFC3339))
	case timeline.HappeningToday:
		s := "today: " + r.Event.Name
		if r.Event.Venue != "" {
			s += " at " + r.Event.Venue
		}
		return s
	default:
		return "concluded: thank you"
	}
}

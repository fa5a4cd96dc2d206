package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"invitecal/internal/config"
	"invitecal/internal/gallery"
	appLog "invitecal/internal/log"
	"invitecal/internal/model"
	"invitecal/internal/timeline"
)

var templateFuncs = template.FuncMap{
	"pad2":  func(n int) string { return fmt.Sprintf("%02d", n) },
	"date":  func(t time.Time) string { return t.Format("Monday, January 2, 2006") },
	"clock": func(t time.Time) string { return t.Format("15:04") },
	"stamp": func(t time.Time) string { return t.Format("2006-01-02") },
}

type photoView struct {
	URL   string
	Index int
	Count int
	Prev  int
	Next  int
}

// pageData is what both themes render.
type pageData struct {
	Theme     string
	Title     string
	Couple    config.CoupleConfig
	PublicURL string
	Preview   bool

	Countdown countdownResponse
	Events    []timeline.Event

	Photo *photoView

	Guestbook            []model.GuestbookEntry
	GuestbookUnavailable bool
	Moderated            bool
	Sent                 string
}

// handleIndex renders the invitation page.
//
// GET /?theme=garden&photo=3
//   - theme: "classic" or "garden"; anything else uses the configured theme.
//   - photo: carousel position, wrapped into the gallery size.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	cfg := s.config()
	q := r.URL.Query()

	theme := cfg.Theme
	switch t := q.Get("theme"); t {
	case config.ThemeClassic, config.ThemeGarden:
		theme = t
	}

	data := pageData{
		Theme:     theme,
		Title:     cfg.Couple.Title(),
		Couple:    cfg.Couple,
		PublicURL: cfg.BaseURL(),
		Preview:   cfg.Preview.Enabled,
		Countdown: toCountdownResponse(s.runner.Latest()),
		Events:    s.holder.Load().Events(),
		Moderated: cfg.Store.Moderate,
		Sent:      q.Get("sent"),
	}

	if n := len(cfg.Gallery); n > 0 {
		start, _ := strconv.Atoi(q.Get("photo"))
		c := gallery.NewCarousel(n, start)
		prev, next := c, c
		data.Photo = &photoView{
			URL:   cfg.Gallery[c.Index],
			Index: c.Index,
			Count: n,
			Prev:  prev.Prev(),
			Next:  next.Next(),
		}
	}

	entries, err := s.guestbook.List(r.Context())
	if err != nil {
		// The page and countdown still render without messages.
		appLog.Error("guestbook list failed", err)
		data.GuestbookUnavailable = true
	}
	data.Guestbook = entries

	s.render(w, theme+".html", data)
}

// handleSignage renders the bare countdown captured for the e-paper sign.
func (s *Server) handleSignage(w http.ResponseWriter, _ *http.Request) {
	cfg := s.config()
	s.render(w, "signage.html", pageData{
		Theme:     cfg.Theme,
		Title:     cfg.Couple.Title(),
		Couple:    cfg.Couple,
		Countdown: toCountdownResponse(s.runner.Latest()),
	})
}

// render executes into a buffer first so a template error never produces a
// half-written page.
func (s *Server) render(w http.ResponseWriter, name string, data pageData) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		appLog.Error("template render failed", err, "template", name)
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

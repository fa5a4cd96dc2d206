package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"invitecal/internal/auth"
	"invitecal/internal/battery"
	"invitecal/internal/config"
	"invitecal/internal/countdown"
	"invitecal/internal/ics"
	appLog "invitecal/internal/log"
	"invitecal/internal/store"
)

// embeddedStatic holds the CSS/JS shared by both themes.
//
//go:embed all:static
var embeddedStatic embed.FS

//go:embed templates/*.html
var embeddedTemplates embed.FS

const adminRealm = "invitecal admin"

// Options wires a Server to the rest of the application. Guestbook and
// RSVPs are required; Battery may be nil when no sign is attached.
type Options struct {
	Config    *config.Config
	Holder    *countdown.Holder
	Runner    *countdown.Runner
	Guestbook store.Guestbook
	RSVPs     store.RSVPs
	Battery   battery.Reader
}

// Server serves the invitation page, the countdown APIs and the guestbook
// and RSVP endpoints.
type Server struct {
	cfg atomic.Pointer[config.Config]

	holder    *countdown.Holder
	runner    *countdown.Runner
	guestbook store.Guestbook
	rsvps     store.RSVPs
	moderator store.Moderator
	responses store.ResponseReader
	battery   battery.Reader

	pages *template.Template
	mux   *http.ServeMux

	// In-memory cache for battery status. This avoids hitting I2C on every
	// single HTTP call.
	batteryMu    sync.RWMutex
	batteryCache *batteryCache
}

// NewServer constructs a new Server. Templates are parsed once here, so a
// broken template fails at startup.
func NewServer(opts Options) (*Server, error) {
	pages, err := template.New("").Funcs(templateFuncs).ParseFS(embeddedTemplates, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		holder:    opts.Holder,
		runner:    opts.Runner,
		guestbook: opts.Guestbook,
		rsvps:     opts.RSVPs,
		battery:   opts.Battery,
		pages:     pages,
		mux:       http.NewServeMux(),
	}
	s.cfg.Store(opts.Config)
	s.moderator, _ = opts.Guestbook.(store.Moderator)
	s.responses, _ = opts.RSVPs.(store.ResponseReader)

	s.registerRoutes()
	return s, nil
}

// SetConfig swaps the configuration used for rendering (theme, couple,
// gallery, admin credentials) after a reload.
func (s *Server) SetConfig(cfg *config.Config) {
	if cfg != nil {
		s.cfg.Store(cfg)
	}
}

func (s *Server) config() *config.Config { return s.cfg.Load() }

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /signage", s.handleSignage)

	s.mux.HandleFunc("GET /api/countdown", s.handleCountdown)
	s.mux.HandleFunc("GET /api/countdown/stream", s.handleCountdownStream)

	s.mux.HandleFunc("GET /api/guestbook", s.handleGuestbookList)
	s.mux.HandleFunc("POST /api/guestbook", s.handleGuestbookSubmit)
	s.mux.HandleFunc("POST /api/rsvp", s.handleRSVP)

	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.HandleFunc("GET /api/signage/battery", s.handleBattery)

	s.mux.Handle("GET /api/admin/guestbook/pending", s.admin(s.handlePending))
	s.mux.Handle("POST /api/admin/guestbook/{id}/approve", s.admin(s.handleApprove))
	s.mux.Handle("POST /api/admin/guestbook/{id}/reject", s.admin(s.handleReject))
	s.mux.Handle("GET /api/admin/rsvps", s.admin(s.handleResponses))

	s.mux.Handle("GET /static/", s.staticFileServer())
}

// admin wraps h with Basic Auth using the credentials of the current config.
func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var creds auth.Credentials
		if a := s.config().Admin; a != nil {
			creds = auth.Credentials{Username: a.Username, PasswordHash: a.PasswordHash}
		}
		auth.Require(creds, adminRealm, h).ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// staticFileServer serves the embedded CSS/JS under /static/.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static assets not available", http.StatusServiceUnavailable)
		})
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// handleCalendar lets guests add every event to their own calendar.
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	cfg := s.config()
	body := ics.Export(s.holder.Load(), ics.ExportOptions{
		Title: cfg.Couple.Title(),
		URL:   cfg.BaseURL(),
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="wedding.ics"`)
	_, _ = w.Write([]byte(body))
}

// handlePreview serves the last rendered share image from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	cfg := s.config()
	if !cfg.Preview.Enabled {
		http.NotFound(w, r)
		return
	}
	// http.ServeFile answers 404 for a preview not rendered yet.
	http.ServeFile(w, r, cfg.Preview.Path)
}

// batteryCache holds the last known battery status and its timestamp.
type batteryCache struct {
	status    battery.Status
	updatedAt time.Time
}

const batteryCacheTTL = 30 * time.Second

// handleBattery exposes the sign's battery level. Battery status does not
// need sub-second precision, so a short cache is enough.
func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	if s.battery == nil {
		writeError(w, http.StatusServiceUnavailable, "battery reader unavailable")
		return
	}

	s.batteryMu.RLock()
	bc := s.batteryCache
	s.batteryMu.RUnlock()
	if bc != nil && time.Since(bc.updatedAt) < batteryCacheTTL {
		writeJSON(w, http.StatusOK, bc.status)
		return
	}

	status, err := s.battery.Read(r.Context())
	if err != nil {
		appLog.Error("battery read failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read battery")
		return
	}

	s.batteryMu.Lock()
	s.batteryCache = &batteryCache{status: status, updatedAt: time.Now()}
	s.batteryMu.Unlock()

	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

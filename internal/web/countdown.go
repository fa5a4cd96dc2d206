package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"invitecal/internal/countdown"
	appLog "invitecal/internal/log"
	"invitecal/internal/timeline"
)

// countdownResponse is the JSON shape of one snapshot. Remaining is set only
// while counting; Event is the target (counting) or the current event
// (today).
type countdownResponse struct {
	Kind      timeline.Kind `json:"kind"`
	At        time.Time     `json:"at"`
	Remaining *remainingDTO `json:"remaining,omitempty"`
	Event     *eventDTO     `json:"event,omitempty"`
}

type remainingDTO struct {
	Days         int   `json:"days"`
	Hours        int   `json:"hours"`
	Minutes      int   `json:"minutes"`
	Seconds      int   `json:"seconds"`
	TotalSeconds int64 `json:"total_seconds"`
}

type eventDTO struct {
	Name    string    `json:"name"`
	Day     string    `json:"day"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Venue   string    `json:"venue,omitempty"`
	Address string    `json:"address,omitempty"`
}

func toEventDTO(ev timeline.Event) *eventDTO {
	return &eventDTO{
		Name:    ev.Name,
		Day:     ev.Day.String(),
		Start:   ev.WindowStart,
		End:     ev.WindowEnd,
		Venue:   ev.Venue,
		Address: ev.Address,
	}
}

func toCountdownResponse(snap countdown.Snapshot) countdownResponse {
	resp := countdownResponse{Kind: snap.Result.Kind(), At: snap.At}
	switch r := snap.Result.(type) {
	case timeline.Counting:
		resp.Event = toEventDTO(r.Target)
		resp.Remaining = &remainingDTO{
			Days:         r.Remaining.Days,
			Hours:        r.Remaining.Hours,
			Minutes:      r.Remaining.Minutes,
			Seconds:      r.Remaining.Seconds,
			TotalSeconds: r.Remaining.TotalSeconds(),
		}
	case timeline.HappeningToday:
		resp.Event = toEventDTO(r.Event)
	}
	return resp
}

// handleCountdown returns the latest snapshot.
//
// GET /api/countdown?at=2026-04-15T12:00:00+09:00
//   - at: evaluate this instant instead (RFC 3339), for previews and tests.
func (s *Server) handleCountdown(w http.ResponseWriter, r *http.Request) {
	if at := r.URL.Query().Get("at"); at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			writeError(w, http.StatusBadRequest, "at must be an RFC 3339 timestamp")
			return
		}
		t = t.In(s.config().Location())
		writeJSON(w, http.StatusOK, toCountdownResponse(s.runner.Evaluate(t)))
		return
	}
	writeJSON(w, http.StatusOK, toCountdownResponse(s.runner.Latest()))
}

// handleCountdownStream pushes one Server-Sent Event per tick until the
// client goes away or the runner stops.
func (s *Server) handleCountdownStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch, unsubscribe := s.runner.Subscribe()
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, s.runner.Latest()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, snap); err != nil {
				appLog.Debug("countdown stream closed", "remote", r.RemoteAddr, "err", err.Error())
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, snap countdown.Snapshot) error {
	data, err := json.Marshal(toCountdownResponse(snap))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: countdown\ndata: %s\n\n", data)
	return err
}

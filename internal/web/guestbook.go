package web

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	appLog "invitecal/internal/log"
	"invitecal/internal/model"
	"invitecal/internal/store"
)

// maxBodyBytes bounds guestbook and RSVP request bodies.
const maxBodyBytes = 64 << 10

const tryAgain = "please try again"

type guestbookRequest struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

type rsvpRequest struct {
	Name      string `json:"name"`
	Ceremony  bool   `json:"ceremony"`
	Reception bool   `json:"reception"`
	Toast     bool   `json:"toast"`
}

func (s *Server) handleGuestbookList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.guestbook.List(r.Context())
	if err != nil {
		s.storeFailure(w, err, "guestbook list")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleGuestbookSubmit accepts JSON ({"author","text"}) or a form post
// from the page. Form posts are redirected back to the page.
func (s *Server) handleGuestbookSubmit(w http.ResponseWriter, r *http.Request) {
	var req guestbookRequest
	form, err := decodeRequest(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if form {
		req.Author = r.PostForm.Get("author")
		req.Text = r.PostForm.Get("text")
	}

	entry, err := s.guestbook.Submit(r.Context(), req.Author, req.Text)
	if err != nil {
		s.storeFailure(w, err, "guestbook submit")
		return
	}
	if form {
		http.Redirect(w, r, "/?sent=guestbook#guestbook", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleRSVP(w http.ResponseWriter, r *http.Request) {
	var req rsvpRequest
	form, err := decodeRequest(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if form {
		req.Name = r.PostForm.Get("name")
		req.Ceremony = checked(r.PostForm.Get("ceremony"))
		req.Reception = checked(r.PostForm.Get("reception"))
		req.Toast = checked(r.PostForm.Get("toast"))
	}

	saved, err := s.rsvps.SubmitRSVP(r.Context(), model.RSVP{
		Name:      req.Name,
		Ceremony:  req.Ceremony,
		Reception: req.Reception,
		Toast:     req.Toast,
	})
	if err != nil {
		s.storeFailure(w, err, "rsvp submit")
		return
	}
	if form {
		http.Redirect(w, r, "/?sent=rsvp#rsvp", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if s.moderator == nil {
		writeError(w, http.StatusNotFound, "moderation not available for this store")
		return
	}
	entries, err := s.moderator.Pending(r.Context())
	if err != nil {
		s.storeFailure(w, err, "guestbook pending")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.moderate(w, r, "approve")
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.moderate(w, r, "reject")
}

func (s *Server) moderate(w http.ResponseWriter, r *http.Request, action string) {
	if s.moderator == nil {
		writeError(w, http.StatusNotFound, "moderation not available for this store")
		return
	}
	id := r.PathValue("id")

	var err error
	if action == "approve" {
		err = s.moderator.Approve(r.Context(), id)
	} else {
		err = s.moderator.Reject(r.Context(), id)
	}
	if err != nil {
		s.storeFailure(w, err, "guestbook "+action)
		return
	}
	appLog.Info("guestbook entry moderated", "id", id, "action", action)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResponses(w http.ResponseWriter, r *http.Request) {
	if s.responses == nil {
		writeError(w, http.StatusNotFound, "responses not available for this store")
		return
	}
	all, err := s.responses.Responses(r.Context())
	if err != nil {
		s.storeFailure(w, err, "rsvp list")
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// storeFailure maps store errors to responses. Guest mistakes get their
// message back; everything else is logged and reported as retryable.
func (s *Server) storeFailure(w http.ResponseWriter, err error, op string) {
	switch {
	case store.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		appLog.Error("store operation failed", err, "op", op)
		writeError(w, http.StatusBadGateway, tryAgain)
	}
}

// decodeRequest decodes a JSON body into dst, or parses a form body and
// reports form=true so the caller reads r.PostForm.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) (form bool, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return false, errors.New("invalid JSON body")
		}
		return false, nil
	}
	if err := r.ParseForm(); err != nil {
		return true, errors.New("invalid form body")
	}
	return true, nil
}

func checked(v string) bool {
	if v == "on" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

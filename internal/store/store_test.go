package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"invitecal/internal/model"
)

func openTestStore(t *testing.T, moderate bool) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := OpenFile(path, moderate)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	return s, path
}

func TestFileStoreModeration(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t, true)

	entry, err := s.Submit(ctx, "  Grandma ", " Congratulations! ")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if entry.Author != "Grandma" || entry.Text != "Congratulations!" {
		t.Errorf("submission not trimmed: %+v", entry)
	}
	if entry.ID == "" || entry.Approved {
		t.Errorf("moderated entry should have id and be unapproved: %+v", entry)
	}

	visible, _ := s.List(ctx)
	if len(visible) != 0 {
		t.Fatalf("unapproved entry visible: %+v", visible)
	}
	pending, _ := s.Pending(ctx)
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	if err := s.Approve(ctx, entry.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	visible, _ = s.List(ctx)
	if len(visible) != 1 || !visible[0].Approved {
		t.Fatalf("approved entry not listed: %+v", visible)
	}

	// Reopen from disk: state survives.
	reopened, err := OpenFile(path, true)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	visible, _ = reopened.List(ctx)
	if len(visible) != 1 || visible[0].ID != entry.ID {
		t.Errorf("persisted entries = %+v", visible)
	}

	if err := s.Approve(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Approve(missing) = %v, want ErrNotFound", err)
	}
}

func TestFileStoreReject(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, true)

	spam, _ := s.Submit(ctx, "bot", "buy now")
	keep, _ := s.Submit(ctx, "Ana", "So happy for you")

	if err := s.Reject(ctx, spam.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	pending, _ := s.Pending(ctx)
	if len(pending) != 1 || pending[0].ID != keep.ID {
		t.Errorf("pending after reject = %+v", pending)
	}
	if err := s.Reject(ctx, spam.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Reject = %v, want ErrNotFound", err)
	}
}

func TestFileStoreUnmoderatedNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, false)
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	s.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}

	for _, who := range []string{"first", "second", "third"} {
		if _, err := s.Submit(ctx, who, "hello"); err != nil {
			t.Fatalf("Submit(%s): %v", who, err)
		}
	}
	list, _ := s.List(ctx)
	if len(list) != 3 || list[0].Author != "third" || list[2].Author != "first" {
		t.Errorf("List order = %+v", list)
	}
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, false)

	tests := []struct {
		name   string
		author string
		text   string
		want   error
	}{
		{name: "missing author", author: "  ", text: "hi", want: ErrMissingName},
		{name: "missing text", author: "Bo", text: "\n", want: ErrMissingMessage},
		{name: "long author", author: strings.Repeat("a", MaxNameRunes+1), text: "hi", want: ErrTooLong},
		{name: "long text", author: "Bo", text: strings.Repeat("가", MaxMessageRunes+1), want: ErrTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Submit(ctx, tt.author, tt.text)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Submit error = %v, want %v", err, tt.want)
			}
			if !IsValidation(err) {
				t.Errorf("IsValidation(%v) = false", err)
			}
		})
	}

	if _, err := s.Submit(ctx, "Bo", strings.Repeat("가", MaxMessageRunes)); err != nil {
		t.Errorf("message at the limit rejected: %v", err)
	}
}

func TestFileStoreRSVP(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, false)

	if _, err := s.SubmitRSVP(ctx, model.RSVP{Name: " "}); !errors.Is(err, ErrMissingName) {
		t.Errorf("empty name = %v, want ErrMissingName", err)
	}

	declined, err := s.SubmitRSVP(ctx, model.RSVP{Name: "Uncle Jo"})
	if err != nil {
		t.Fatalf("declining RSVP rejected: %v", err)
	}
	if declined.Attending() {
		t.Error("declined RSVP reports attending")
	}
	yes, err := s.SubmitRSVP(ctx, model.RSVP{Name: "Mina", Ceremony: true, Toast: true})
	if err != nil {
		t.Fatalf("SubmitRSVP: %v", err)
	}
	if yes.ID == "" || yes.SubmittedAt.IsZero() {
		t.Errorf("RSVP missing id/time: %+v", yes)
	}

	all, _ := s.Responses(ctx)
	if len(all) != 2 || all[1].Name != "Mina" {
		t.Errorf("Responses = %+v", all)
	}
}

func TestFileStoreSaveFailureIsUnavailable(t *testing.T) {
	// A path under a regular file cannot be created.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	s, _ := OpenFile(filepath.Join(blocker, "store.json"), false)
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := s.Submit(context.Background(), "Bo", "hi")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Submit = %v, want ErrUnavailable", err)
	}
	list, _ := s.List(context.Background())
	if len(list) != 0 {
		t.Errorf("failed submission left in memory: %+v", list)
	}
}

func TestRemoteStore(t *testing.T) {
	var gotRSVP model.RSVP
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/guestbook":
			_ = json.NewEncoder(w).Encode([]model.GuestbookEntry{{ID: "1", Author: "Ana", Text: "yay", Approved: true}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/guestbook":
			var in struct{ Author, Text string }
			_ = json.NewDecoder(r.Body).Decode(&in)
			_ = json.NewEncoder(w).Encode(model.GuestbookEntry{ID: "2", Author: in.Author, Text: in.Text})
		case r.Method == http.MethodPost && r.URL.Path == "/api/rsvp":
			_ = json.NewDecoder(r.Body).Decode(&gotRSVP)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	s := NewRemote(srv.URL + "/api/")
	submitted := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return submitted }

	list, err := s.List(ctx)
	if err != nil || len(list) != 1 || list[0].Author != "Ana" {
		t.Fatalf("List = %+v, %v", list, err)
	}
	entry, err := s.Submit(ctx, "Bo", "congrats")
	if err != nil || entry.ID != "2" || entry.Text != "congrats" {
		t.Fatalf("Submit = %+v, %v", entry, err)
	}
	r, err := s.SubmitRSVP(ctx, model.RSVP{Name: "Mina", Reception: true})
	if err != nil {
		t.Fatalf("SubmitRSVP: %v", err)
	}
	if r.Name != "Mina" || !gotRSVP.Reception {
		t.Errorf("rsvp = %+v, backend saw %+v", r, gotRSVP)
	}
	if !r.SubmittedAt.Equal(submitted) || r.ID != "" {
		t.Errorf("bodyless rsvp reply: submitted_at = %v, id = %q", r.SubmittedAt, r.ID)
	}
}

func TestRemoteStoreFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	s := NewRemote(srv.URL)

	if _, err := s.List(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("List on 503 = %v, want ErrUnavailable", err)
	}
	srv.Close()
	if _, err := s.Submit(context.Background(), "Bo", "hi"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Submit on closed server = %v, want ErrUnavailable", err)
	}
	if _, err := s.Submit(context.Background(), "", "hi"); !errors.Is(err, ErrMissingName) {
		t.Errorf("validation should run before the request: %v", err)
	}
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"invitecal/internal/config"
	appLog "invitecal/internal/log"
	"invitecal/internal/model"
)

// document is the on-disk layout of a FileStore.
type document struct {
	Guestbook []model.GuestbookEntry `json:"guestbook"`
	RSVPs     []model.RSVP           `json:"rsvps"`
}

// FileStore keeps everything in one JSON file, rewritten atomically on
// every change. It implements Guestbook, RSVPs and Moderator.
type FileStore struct {
	path     string
	moderate bool
	now      func() time.Time

	mu  sync.RWMutex
	doc document
}

// OpenFile loads path (a missing file is an empty store).
func OpenFile(path string, moderate bool) (*FileStore, error) {
	s := &FileStore{path: path, moderate: moderate, now: time.Now}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		appLog.Info("store file not found; starting empty", "path", path)
	case err != nil:
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &s.doc); err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", path, err)
		}
	}
	return s, nil
}

func (s *FileStore) Submit(_ context.Context, author, text string) (model.GuestbookEntry, error) {
	author, text, err := cleanEntry(author, text)
	if err != nil {
		return model.GuestbookEntry{}, err
	}

	entry := model.GuestbookEntry{
		ID:          uuid.New().String(),
		Author:      author,
		Text:        text,
		SubmittedAt: s.now().UTC(),
		Approved:    !s.moderate,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Guestbook = append(s.doc.Guestbook, entry)
	if err := s.saveLocked(); err != nil {
		s.doc.Guestbook = s.doc.Guestbook[:len(s.doc.Guestbook)-1]
		return model.GuestbookEntry{}, err
	}

	appLog.Info("guestbook entry stored", "id", entry.ID, "approved", entry.Approved)
	return entry, nil
}

func (s *FileStore) List(_ context.Context) ([]model.GuestbookEntry, error) {
	return s.filter(true), nil
}

func (s *FileStore) Pending(_ context.Context) ([]model.GuestbookEntry, error) {
	return s.filter(false), nil
}

func (s *FileStore) Approve(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Guestbook {
		if s.doc.Guestbook[i].ID != id {
			continue
		}
		if s.doc.Guestbook[i].Approved {
			return nil
		}
		s.doc.Guestbook[i].Approved = true
		if err := s.saveLocked(); err != nil {
			s.doc.Guestbook[i].Approved = false
			return err
		}
		appLog.Info("guestbook entry approved", "id", id)
		return nil
	}
	return ErrNotFound
}

func (s *FileStore) Reject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.doc.Guestbook {
		if e.ID != id {
			continue
		}
		prev := s.doc.Guestbook
		next := make([]model.GuestbookEntry, 0, len(prev)-1)
		next = append(next, prev[:i]...)
		next = append(next, prev[i+1:]...)
		s.doc.Guestbook = next
		if err := s.saveLocked(); err != nil {
			s.doc.Guestbook = prev
			return err
		}
		appLog.Info("guestbook entry rejected", "id", id)
		return nil
	}
	return ErrNotFound
}

func (s *FileStore) SubmitRSVP(_ context.Context, r model.RSVP) (model.RSVP, error) {
	r, err := cleanRSVP(r)
	if err != nil {
		return model.RSVP{}, err
	}
	r.ID = uuid.New().String()
	r.SubmittedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.RSVPs = append(s.doc.RSVPs, r)
	if err := s.saveLocked(); err != nil {
		s.doc.RSVPs = s.doc.RSVPs[:len(s.doc.RSVPs)-1]
		return model.RSVP{}, err
	}

	appLog.Info("rsvp stored", "id", r.ID, "attending", r.Attending())
	return r, nil
}

// Responses returns every stored answer in submission order.
func (s *FileStore) Responses(_ context.Context) ([]model.RSVP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.RSVP, len(s.doc.RSVPs))
	copy(out, s.doc.RSVPs)
	return out, nil
}

func (s *FileStore) filter(approved bool) []model.GuestbookEntry {
	s.mu.RLock()
	out := make([]model.GuestbookEntry, 0, len(s.doc.Guestbook))
	for _, e := range s.doc.Guestbook {
		if e.Approved == approved {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out
}

// saveLocked persists the document. Caller must hold s.mu.
func (s *FileStore) saveLocked() error {
	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return err
	}
	if err := config.WriteFileAtomic(s.path, data, 0o600); err != nil {
		appLog.Error("store save failed", err, "path", s.path)
		return fmt.Errorf("%w: save: %v", ErrUnavailable, err)
	}
	return nil
}

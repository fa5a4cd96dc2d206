// Package store keeps guestbook messages and RSVP answers, either in a local
// JSON file or in an external backend reached over HTTP.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"invitecal/internal/model"
)

const (
	MaxNameRunes    = 80
	MaxMessageRunes = 1000
)

var (
	ErrMissingName    = errors.New("name is required")
	ErrMissingMessage = errors.New("message is required")
	ErrTooLong        = errors.New("input too long")
	ErrNotFound       = errors.New("entry not found")
	// ErrUnavailable wraps transport and backend failures. Callers show a
	// generic "please try again" notice for it.
	ErrUnavailable = errors.New("store unavailable")
)

// Guestbook accepts messages and lists the ones visible on the page.
type Guestbook interface {
	Submit(ctx context.Context, author, text string) (model.GuestbookEntry, error)
	// List returns approved entries, newest first.
	List(ctx context.Context) ([]model.GuestbookEntry, error)
}

// RSVPs accepts attendance answers. There is no read API for the page.
type RSVPs interface {
	SubmitRSVP(ctx context.Context, r model.RSVP) (model.RSVP, error)
}

// ResponseReader lists RSVPs for the couple. Only the admin API uses it.
type ResponseReader interface {
	Responses(ctx context.Context) ([]model.RSVP, error)
}

// Moderator approves or rejects guestbook entries awaiting review.
type Moderator interface {
	Pending(ctx context.Context) ([]model.GuestbookEntry, error)
	Approve(ctx context.Context, id string) error
	Reject(ctx context.Context, id string) error
}

// IsValidation reports whether err is caused by bad guest input rather
// than by the store itself.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingName) || errors.Is(err, ErrMissingMessage) || errors.Is(err, ErrTooLong)
}

// cleanEntry trims and validates a guestbook submission.
func cleanEntry(author, text string) (string, string, error) {
	author = strings.TrimSpace(author)
	text = strings.TrimSpace(text)
	if author == "" {
		return "", "", ErrMissingName
	}
	if text == "" {
		return "", "", ErrMissingMessage
	}
	if utf8.RuneCountInString(author) > MaxNameRunes {
		return "", "", fmt.Errorf("name longer than %d characters: %w", MaxNameRunes, ErrTooLong)
	}
	if utf8.RuneCountInString(text) > MaxMessageRunes {
		return "", "", fmt.Errorf("message longer than %d characters: %w", MaxMessageRunes, ErrTooLong)
	}
	return author, text, nil
}

// cleanRSVP trims and validates an RSVP. Declining every part is a valid
// answer; a missing name is not.
func cleanRSVP(r model.RSVP) (model.RSVP, error) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return r, ErrMissingName
	}
	if utf8.RuneCountInString(r.Name) > MaxNameRunes {
		return r, fmt.Errorf("name longer than %d characters: %w", MaxNameRunes, ErrTooLong)
	}
	return r, nil
}

package model

import "time"

// GuestbookEntry is one message left by a guest.
// Entries start unapproved when moderation is enabled and are only shown on
// the page once approved.
type GuestbookEntry struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Text   string `json:"text"`

	SubmittedAt time.Time `json:"submitted_at"`
	Approved    bool      `json:"approved"`
}

// RSVP is a guest's answer for the three parts of the day.
type RSVP struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Ceremony  bool `json:"ceremony"`
	Reception bool `json:"reception"`
	Toast     bool `json:"toast"`

	SubmittedAt time.Time `json:"submitted_at"`
}

// Attending reports whether the guest accepted any part of the day.
func (r RSVP) Attending() bool {
	return r.Ceremony || r.Reception || r.Toast
}

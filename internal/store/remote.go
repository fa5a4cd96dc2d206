package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "invitecal/internal/log"
	"invitecal/internal/model"
)

// RemoteStore talks to an external guestbook/RSVP backend:
//
//	POST {base}/guestbook  {"author","text"}        -> entry
//	GET  {base}/guestbook                           -> [entry]
//	POST {base}/rsvp       {"name","ceremony",...}  -> rsvp
//
// Moderation happens on the backend, so a submitted entry may not show up
// in List right away. Failed calls are not retried.
type RemoteStore struct {
	base   string
	client *http.Client
	now    func() time.Time
}

func NewRemote(baseURL string) *RemoteStore {
	return &RemoteStore{
		base: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		now: time.Now,
	}
}

func (s *RemoteStore) Submit(ctx context.Context, author, text string) (model.GuestbookEntry, error) {
	author, text, err := cleanEntry(author, text)
	if err != nil {
		return model.GuestbookEntry{}, err
	}
	req := struct {
		Author string `json:"author"`
		Text   string `json:"text"`
	}{author, text}

	var out model.GuestbookEntry
	if err := s.do(ctx, http.MethodPost, "/guestbook", req, &out); err != nil {
		return model.GuestbookEntry{}, err
	}
	return out, nil
}

func (s *RemoteStore) List(ctx context.Context) ([]model.GuestbookEntry, error) {
	var out []model.GuestbookEntry
	if err := s.do(ctx, http.MethodGet, "/guestbook", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.GuestbookEntry{}
	}
	return out, nil
}

func (s *RemoteStore) SubmitRSVP(ctx context.Context, r model.RSVP) (model.RSVP, error) {
	r, err := cleanRSVP(r)
	if err != nil {
		return model.RSVP{}, err
	}
	var out model.RSVP
	if err := s.do(ctx, http.MethodPost, "/rsvp", r, &out); err != nil {
		return model.RSVP{}, err
	}
	if out.Name == "" {
		// Backends that answer 201/204 without a body. The id stays empty:
		// only the backend can assign one.
		out = r
		out.SubmittedAt = s.now().UTC()
	}
	return out, nil
}

func (s *RemoteStore) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.base+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		appLog.Error("remote store request failed", err, "method", method, "path", path)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		appLog.Error("remote store non-2xx", fmt.Errorf("%s", resp.Status), "method", method, "path", path)
		return fmt.Errorf("%w: %s %s: %s", ErrUnavailable, method, path, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if len(bytes.TrimSpace(data)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode body: %v", ErrUnavailable, err)
	}
	return nil
}

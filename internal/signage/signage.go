// Package signage refreshes the e-paper countdown sign at the venue from
// the /signage page.
package signage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"sync"
	"time"

	"invitecal/internal/capture"
	"invitecal/internal/convert"
	"invitecal/internal/epd"
	appLog "invitecal/internal/log"
)

// ErrBusy is returned when a refresh is already running.
var ErrBusy = errors.New("signage: refresh already in progress")

// ScreenshotFunc renders a URL to PNG bytes. capture.Screenshot in
// production.
type ScreenshotFunc func(ctx context.Context, opts capture.Options) ([]byte, error)

// Refresher captures the signage page and pushes it to the panel.
type Refresher struct {
	URL   string
	Geom  convert.Geometry
	Panel epd.Panel
	Shoot ScreenshotFunc

	mu sync.Mutex
}

// NewRefresher builds a Refresher using headless Chromium.
func NewRefresher(url string, g convert.Geometry, panel epd.Panel) *Refresher {
	return &Refresher{URL: url, Geom: g, Panel: panel, Shoot: capture.Screenshot}
}

// Refresh runs one capture -> pack -> display -> sleep cycle. Overlapping
// calls return ErrBusy instead of queueing, a full e-paper refresh being
// slower than most schedules.
func (r *Refresher) Refresh(ctx context.Context) error {
	if !r.mu.TryLock() {
		return ErrBusy
	}
	defer r.mu.Unlock()

	start := time.Now()
	data, err := r.Shoot(ctx, capture.Options{URL: r.URL, Width: r.Geom.Width, Height: r.Geom.Height})
	if err != nil {
		return fmt.Errorf("signage: capture: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("signage: decode screenshot: %w", err)
	}
	black, red, err := convert.Pack(img, r.Geom)
	if err != nil {
		return fmt.Errorf("signage: pack: %w", err)
	}

	if err := r.Panel.Display(black, red); err != nil {
		return fmt.Errorf("signage: display: %w", err)
	}
	if err := r.Panel.Sleep(); err != nil {
		// The frame is already on the glass.
		appLog.Error("signage panel sleep failed", err)
	}

	appLog.Info("signage refreshed", "url", r.URL, "took", time.Since(start).Round(time.Millisecond).String())
	return nil
}

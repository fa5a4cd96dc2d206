package signage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"invitecal/internal/capture"
	"invitecal/internal/convert"
)

type recordingPanel struct {
	black, red []byte
	slept      bool
	displayErr error
}

func (p *recordingPanel) Display(black, red []byte) error {
	if p.displayErr != nil {
		return p.displayErr
	}
	p.black, p.red = black, red
	return nil
}

func (p *recordingPanel) Sleep() error {
	p.slept = true
	return nil
}

func (p *recordingPanel) Close() error { return nil }

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	img.SetNRGBA(0, 0, color.NRGBA{A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRefresh(t *testing.T) {
	g := convert.Geometry{Width: 16, Height: 4}
	panel := &recordingPanel{}
	var gotOpts capture.Options

	r := &Refresher{
		URL:   "http://127.0.0.1:8080/signage",
		Geom:  g,
		Panel: panel,
		Shoot: func(_ context.Context, opts capture.Options) ([]byte, error) {
			gotOpts = opts
			return pngOf(t, 16, 4), nil
		},
	}
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if gotOpts.URL != r.URL || gotOpts.Width != 16 || gotOpts.Height != 4 {
		t.Errorf("capture options = %+v", gotOpts)
	}
	if len(panel.black) != g.PlaneSize() || panel.black[0] != 0x7F {
		t.Errorf("black plane = % x", panel.black)
	}
	if !panel.slept {
		t.Error("panel not put to sleep")
	}
}

func TestRefreshErrors(t *testing.T) {
	g := convert.Geometry{Width: 16, Height: 4}
	boom := errors.New("boom")

	tests := []struct {
		name  string
		shoot ScreenshotFunc
		panel *recordingPanel
		want  error
	}{
		{
			name:  "capture fails",
			shoot: func(context.Context, capture.Options) ([]byte, error) { return nil, boom },
			panel: &recordingPanel{},
			want:  boom,
		},
		{
			name:  "display fails",
			shoot: func(context.Context, capture.Options) ([]byte, error) { return pngOf(t, 16, 4), nil },
			panel: &recordingPanel{displayErr: boom},
			want:  boom,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Refresher{URL: "x", Geom: g, Panel: tt.panel, Shoot: tt.shoot}
			if err := r.Refresh(context.Background()); !errors.Is(err, tt.want) {
				t.Fatalf("Refresh = %v, want %v", err, tt.want)
			}
		})
	}

	r := &Refresher{URL: "x", Geom: g, Panel: &recordingPanel{}, Shoot: func(context.Context, capture.Options) ([]byte, error) {
		return []byte("not a png"), nil
	}}
	if err := r.Refresh(context.Background()); err == nil {
		t.Error("expected decode error")
	}
}

func TestRefreshBusy(t *testing.T) {
	r := &Refresher{}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.Refresh(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("Refresh while locked = %v, want ErrBusy", err)
	}
}

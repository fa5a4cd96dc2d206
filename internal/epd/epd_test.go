package epd

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"

	"invitecal/internal/convert"
)

type txRecord struct {
	dc   gpio.Level
	data []byte
}

type fakeBus struct {
	dc  *fakePin
	txs []txRecord
}

func (b *fakeBus) Tx(w, _ []byte) error {
	b.txs = append(b.txs, txRecord{dc: b.dc.level, data: append([]byte(nil), w...)})
	return nil
}

type fakePin struct {
	level gpio.Level
	reads int
}

func (p *fakePin) Out(l gpio.Level) error {
	p.level = l
	return nil
}

// Read reports busy twice before going idle.
func (p *fakePin) Read() gpio.Level {
	p.reads++
	if p.reads%3 == 0 {
		return gpio.High
	}
	return gpio.Low
}

func newFakePanel(g convert.Geometry) (*SPIPanel, *fakeBus) {
	dc := &fakePin{}
	bus := &fakeBus{dc: dc}
	return &SPIPanel{
		geom:  g,
		conn:  bus,
		rst:   &fakePin{},
		dc:    dc,
		busy:  &fakePin{},
		sleep: func(time.Duration) {},
	}, bus
}

func TestSPIPanelDisplay(t *testing.T) {
	g := convert.Geometry{Width: 8, Height: 2}
	p, bus := newFakePanel(g)

	if err := p.Display([]byte{0x7F, 0xFF}, []byte{0xFF, 0x0F}); err != nil {
		t.Fatalf("Display: %v", err)
	}

	// cmd 0x10, black data, cmd 0x13, inverted red data, cmd 0x12, status polls.
	if len(bus.txs) < 5 {
		t.Fatalf("only %d transfers", len(bus.txs))
	}
	want := []txRecord{
		{gpio.Low, []byte{cmdDataBlack}},
		{gpio.High, []byte{0x7F, 0xFF}},
		{gpio.Low, []byte{cmdDataRed}},
		{gpio.High, []byte{0x00, 0xF0}},
		{gpio.Low, []byte{cmdDisplayRefresh}},
	}
	for i, w := range want {
		got := bus.txs[i]
		if got.dc != w.dc || !bytes.Equal(got.data, w.data) {
			t.Errorf("tx %d = %+v, want %+v", i, got, w)
		}
	}
	for _, tx := range bus.txs[5:] {
		if !bytes.Equal(tx.data, []byte{cmdGetStatus}) {
			t.Errorf("unexpected trailing tx %+v", tx)
		}
	}
}

func TestSPIPanelChunksLargeFrames(t *testing.T) {
	g := convert.Geometry{Width: 800, Height: 480}
	p, bus := newFakePanel(g)
	plane := bytes.Repeat([]byte{0xFF}, g.PlaneSize())

	if err := p.Display(plane, plane); err != nil {
		t.Fatalf("Display: %v", err)
	}
	for _, tx := range bus.txs {
		if len(tx.data) > maxChunk {
			t.Fatalf("transfer of %d bytes exceeds %d", len(tx.data), maxChunk)
		}
	}
}

func TestSPIPanelRejectsWrongSize(t *testing.T) {
	p, _ := newFakePanel(convert.Geometry{Width: 8, Height: 2})
	if err := p.Display([]byte{0}, []byte{0}); err == nil {
		t.Fatal("expected size error")
	}
}

func TestSPIPanelInitWritesResolution(t *testing.T) {
	p, bus := newFakePanel(convert.Geometry{Width: 800, Height: 480})
	if err := p.init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	for i, tx := range bus.txs {
		if tx.dc == gpio.Low && len(tx.data) == 1 && tx.data[0] == cmdResolution {
			got := bus.txs[i+1].data
			if !bytes.Equal(got, []byte{0x03, 0x20, 0x01, 0xE0}) {
				t.Errorf("resolution = % x", got)
			}
			return
		}
	}
	t.Fatal("resolution command not sent")
}

func TestFilePanel(t *testing.T) {
	dir := t.TempDir()
	g := convert.Geometry{Width: 8, Height: 1}
	p := NewFilePanel(dir, g)

	if err := p.Display([]byte{0x7F}, []byte{0xBF}); err != nil {
		t.Fatalf("Display: %v", err)
	}
	black, err := os.ReadFile(filepath.Join(dir, "black.bin"))
	if err != nil || !bytes.Equal(black, []byte{0x7F}) {
		t.Fatalf("black.bin = % x, %v", black, err)
	}

	f, err := os.Open(filepath.Join(dir, "frame.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	r0, _, _, _ := img.At(0, 0).RGBA()
	r1, g1, _, _ := img.At(1, 0).RGBA()
	r2, _, _, _ := img.At(2, 0).RGBA()
	if r0 != 0 {
		t.Errorf("pixel 0 should be black, r=%d", r0)
	}
	if r1 == 0 || g1 != 0 {
		t.Errorf("pixel 1 should be red, r=%d g=%d", r1, g1)
	}
	if r2 != 0xFFFF {
		t.Errorf("pixel 2 should be white, r=%d", r2)
	}

	if err := p.Display([]byte{0}, nil); err == nil {
		t.Error("expected size error")
	}
}

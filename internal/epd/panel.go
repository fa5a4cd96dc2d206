// Package epd drives the tri-color e-paper sign showing the countdown at
// the venue.
package epd

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"

	"invitecal/internal/config"
	"invitecal/internal/convert"
	appLog "invitecal/internal/log"
)

// Panel accepts packed planes from convert.Pack. A 1 bit is white; red is
// a separate plane with the same layout.
type Panel interface {
	Display(black, red []byte) error
	Sleep() error
	Close() error
}

// Open returns the panel configured by kind: "spi" for hardware, anything
// else dumps frames to dumpDir.
func Open(kind, dumpDir string, g convert.Geometry) (Panel, error) {
	if kind == "spi" {
		return OpenSPI(g)
	}
	return NewFilePanel(dumpDir, g), nil
}

// FilePanel writes every frame to a directory instead of hardware. It is
// used on development machines and keeps the last frame inspectable:
// black.bin, red.bin and frame.png.
type FilePanel struct {
	dir  string
	geom convert.Geometry
}

func NewFilePanel(dir string, g convert.Geometry) *FilePanel {
	return &FilePanel{dir: dir, geom: g}
}

func (p *FilePanel) Display(black, red []byte) error {
	if err := checkPlanes(black, red, p.geom); err != nil {
		return err
	}
	if err := config.WriteFileAtomic(filepath.Join(p.dir, "black.bin"), black, 0o644); err != nil {
		return err
	}
	if err := config.WriteFileAtomic(filepath.Join(p.dir, "red.bin"), red, 0o644); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Render(black, red, p.geom)); err != nil {
		return err
	}
	if err := config.WriteFileAtomic(filepath.Join(p.dir, "frame.png"), buf.Bytes(), 0o644); err != nil {
		return err
	}
	appLog.Debug("epd frame dumped", "dir", p.dir)
	return nil
}

func (p *FilePanel) Sleep() error { return nil }
func (p *FilePanel) Close() error { return nil }

// Render turns packed planes back into an image, red winning over black.
func Render(black, red []byte, g convert.Geometry) *image.Paletted {
	palette := color.Palette{
		color.White,
		color.Black,
		color.RGBA{R: 0xD0, A: 0xFF},
	}
	img := image.NewPaletted(image.Rect(0, 0, g.Width, g.Height), palette)
	stride := g.Stride()
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			i := y*stride + x>>3
			mask := byte(0x80 >> (x & 7))
			switch {
			case red[i]&mask == 0:
				img.SetColorIndex(x, y, 2)
			case black[i]&mask == 0:
				img.SetColorIndex(x, y, 1)
			}
		}
	}
	return img
}

func checkPlanes(black, red []byte, g convert.Geometry) error {
	if len(black) != g.PlaneSize() || len(red) != g.PlaneSize() {
		return fmt.Errorf("epd: invalid buffer size, expected %d bytes per plane", g.PlaneSize())
	}
	return nil
}

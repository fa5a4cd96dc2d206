// Package convert turns screenshots into the packed bit planes a tri-color
// e-paper panel consumes.
package convert

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// Geometry is a panel resolution in pixels.
type Geometry struct {
	Width  int
	Height int
}

// Stride is the number of bytes per packed row.
func (g Geometry) Stride() int { return (g.Width + 7) / 8 }

// PlaneSize is the number of bytes in one packed plane.
func (g Geometry) PlaneSize() int { return g.Stride() * g.Height }

// Pack converts img into packed 1bpp black and red planes for g.
//
//   - img must be at least g.Width x g.Height; a larger image is center
//     cropped on both axes.
//   - Transparent pixels (alpha < 128) stay white.
//   - Planes are y-major, MSB first: byte y*Stride + x/8, mask 0x80>>(x%8).
//     Every bit starts at 1 (white); ink clears it.
func Pack(img image.Image, g Geometry) (black, red []byte, err error) {
	if g.Width <= 0 || g.Height <= 0 {
		return nil, nil, fmt.Errorf("convert: invalid geometry %dx%d", g.Width, g.Height)
	}
	b := img.Bounds()
	if b.Dx() < g.Width || b.Dy() < g.Height {
		return nil, nil, fmt.Errorf("convert: image %dx%d smaller than panel %dx%d", b.Dx(), b.Dy(), g.Width, g.Height)
	}

	nrgba := toNRGBA(img)
	nb := nrgba.Bounds()
	startX := nb.Min.X + (nb.Dx()-g.Width)/2
	startY := nb.Min.Y + (nb.Dy()-g.Height)/2
	stride := g.Stride()

	black = make([]byte, g.PlaneSize())
	red = make([]byte, g.PlaneSize())
	for i := range black {
		black[i] = 0xFF
		red[i] = 0xFF
	}

	for py := 0; py < g.Height; py++ {
		rowOff := (startY + py - nb.Min.Y) * nrgba.Stride
		for px := 0; px < g.Width; px++ {
			i := rowOff + (startX+px-nb.Min.X)*4
			c := color.NRGBA{R: nrgba.Pix[i], G: nrgba.Pix[i+1], B: nrgba.Pix[i+2], A: nrgba.Pix[i+3]}
			if c.A < 128 {
				continue
			}

			byteIndex := py*stride + (px >> 3)
			mask := byte(0x80 >> (px & 7))
			switch classifyPixel(c) {
			case inkBlack:
				black[byteIndex] &^= mask
			case inkRed:
				red[byteIndex] &^= mask
			}
		}
	}
	return black, red, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	n := image.NewNRGBA(img.Bounds())
	draw.Draw(n, n.Bounds(), img, img.Bounds().Min, draw.Src)
	return n
}

type inkColor int

const (
	inkWhite inkColor = iota
	inkBlack
	inkRed
)

// classifyPixel picks the plane for a pixel: dark (luma < 64) is black,
// clearly red (R > 128 and R exceeds max(G, B) by 32) is red, the rest white.
func classifyPixel(c color.NRGBA) inkColor {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)

	y := 0.299*r + 0.587*g + 0.114*b

	maxGB := g
	if b > maxGB {
		maxGB = b
	}
	redness := r - maxGB

	if y < 64 {
		return inkBlack
	}
	if r > 128 && redness > 32 {
		return inkRed
	}
	return inkWhite
}

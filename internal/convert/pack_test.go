package convert

import (
	"image"
	"image/color"
	"testing"
)

func TestPackPlanes(t *testing.T) {
	g := Geometry{Width: 16, Height: 2}
	img := image.NewNRGBA(image.Rect(0, 0, 16, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	black0 := color.NRGBA{A: 255}
	red9 := color.NRGBA{R: 220, G: 20, B: 30, A: 255}
	img.SetNRGBA(0, 0, black0)
	img.SetNRGBA(9, 0, red9)
	img.SetNRGBA(15, 1, color.NRGBA{A: 10}) // transparent stays white

	black, red, err := Pack(img, g)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(black) != 4 || len(red) != 4 {
		t.Fatalf("plane sizes = %d/%d, want 4", len(black), len(red))
	}

	wantBlack := []byte{0x7F, 0xFF, 0xFF, 0xFF}
	wantRed := []byte{0xFF, 0xBF, 0xFF, 0xFF}
	for i := range wantBlack {
		if black[i] != wantBlack[i] {
			t.Errorf("black[%d] = %#02x, want %#02x", i, black[i], wantBlack[i])
		}
		if red[i] != wantRed[i] {
			t.Errorf("red[%d] = %#02x, want %#02x", i, red[i], wantRed[i])
		}
	}
}

func TestPackCenterCropAndGray(t *testing.T) {
	// 12x4 gray image, panel 8x2: crop starts at (2, 1).
	img := image.NewGray(image.Rect(0, 0, 12, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	img.SetGray(2, 1, color.Gray{Y: 0})
	img.SetGray(0, 0, color.Gray{Y: 0}) // outside the crop

	black, _, err := Pack(img, Geometry{Width: 8, Height: 2})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if black[0] != 0x7F || black[1] != 0xFF {
		t.Errorf("black = % x, want 7f ff", black)
	}
}

func TestPackRejectsSmallImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	if _, _, err := Pack(img, Geometry{Width: 8, Height: 4}); err == nil {
		t.Fatal("expected error for narrow image")
	}
	if _, _, err := Pack(img, Geometry{}); err == nil {
		t.Fatal("expected error for zero geometry")
	}
}

func TestGeometryStride(t *testing.T) {
	g := Geometry{Width: 1304, Height: 984}
	if g.Stride() != 163 || g.PlaneSize() != 163*984 {
		t.Errorf("stride/plane = %d/%d", g.Stride(), g.PlaneSize())
	}
	if (Geometry{Width: 9, Height: 1}).Stride() != 2 {
		t.Error("partial byte not rounded up")
	}
}

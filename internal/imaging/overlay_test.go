package imaging

import (
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func decodeOverlay(t *testing.T, result *OverlayResult) image.Image {
	t.Helper()
	decoded, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(strings.NewReader(string(decoded)))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	return img
}

func TestOverlay_Box(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{0, 0, 0, 255})

	result, err := Overlay(img, []image.Rectangle{image.Rect(20, 20, 60, 70)}, nil, "#FF0000", "")
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	if result.Width != 100 || result.Height != 100 || result.Boxes != 1 {
		t.Errorf("result: got %+v", result)
	}

	out := decodeOverlay(t, result)

	r, g, b, _ := out.At(20, 40).RGBA()
	if uint8(r>>8) != 255 || uint8(g>>8) != 0 || uint8(b>>8) != 0 {
		t.Errorf("box edge at (20,40): got (%d,%d,%d), want (255,0,0)", r>>8, g>>8, b>>8)
	}
	r, g, b, _ = out.At(40, 40).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("box interior should be untouched, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestOverlay_Marks(t *testing.T) {
	img := createInMemoryImage(60, 60, color.RGBA{0, 0, 0, 255})
	marks := []OverlayMark{
		{X: 30, Y: 30, Label: 7},
		{X: -1, Y: -1, Label: 3}, // unplaced
	}

	result, err := Overlay(img, nil, marks, "", "#00FF00")
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}

	out := decodeOverlay(t, result)
	_, g, _, _ := out.At(30, 27).RGBA()
	if uint8(g>>8) != 255 {
		t.Error("mark cross should be drawn in green")
	}
}

func TestOverlay_InvalidColorsFallBack(t *testing.T) {
	img := createInMemoryImage(40, 40, color.RGBA{0, 0, 0, 255})

	result, err := Overlay(img, []image.Rectangle{image.Rect(5, 5, 30, 30)}, nil, "invalid", "")
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}

	out := decodeOverlay(t, result)
	_, g, _, _ := out.At(5, 10).RGBA()
	if uint8(g>>8) != 255 {
		t.Error("default box color should be green")
	}
}

func TestOverlay_BoxOutsideImage(t *testing.T) {
	img := createInMemoryImage(20, 20, color.RGBA{0, 0, 0, 255})
	// Must not panic
	if _, err := Overlay(img, []image.Rectangle{image.Rect(-10, -10, 100, 100), image.Rect(50, 50, 60, 60)}, nil, "", ""); err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		hex     string
		wantR   uint8
		wantG   uint8
		wantB   uint8
		wantA   uint8
		wantErr bool
	}{
		{"#FF0000", 255, 0, 0, 255, false},
		{"#00FF00", 0, 255, 0, 255, false},
		{"FF0000", 255, 0, 0, 255, false},
		{"#FF000080", 255, 0, 0, 128, false},
		{"", 0, 0, 0, 0, true},
		{"#FFF", 0, 0, 0, 0, true},
		{"#GGGGGG", 0, 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.hex, func(t *testing.T) {
			c, err := parseHexColor(tt.hex)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if c.R != tt.wantR || c.G != tt.wantG || c.B != tt.wantB || c.A != tt.wantA {
				t.Errorf("got (%d,%d,%d,%d), want (%d,%d,%d,%d)",
					c.R, c.G, c.B, c.A, tt.wantR, tt.wantG, tt.wantB, tt.wantA)
			}
		})
	}
}

func TestDrawLabel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	fg := color.RGBA{255, 255, 255, 255}
	bg := color.RGBA{0, 0, 0, 180}

	drawLabel(img, 10, 10, "12", fg, bg)

	hasWhite := false
	for y := 9; y < 20; y++ {
		for x := 9; x < 30; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			if r > 200<<8 {
				hasWhite = true
			}
		}
	}
	if !hasWhite {
		t.Error("label should have white pixels (text)")
	}

	// Near and past the edges: must not panic
	drawLabel(img, 95, 95, "100", fg, bg)
	drawLabel(img, -5, -5, "-3", fg, bg)
	drawLabel(img, 10, 10, "", fg, bg)
}

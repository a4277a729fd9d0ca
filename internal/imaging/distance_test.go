package imaging

import (
	"image"
	"math"
	"testing"
)

func TestDistanceTransform(t *testing.T) {
	// All foreground except (0,0)
	m := maskWithRects(5, 5, image.Rect(0, 0, 5, 5))
	m.Pix[0] = 0

	dist, peak := DistanceTransform(m)

	tests := []struct {
		x, y int
		want float64
	}{
		{0, 0, 0},
		{1, 0, 1},
		{3, 4, 5},
		{4, 4, math.Sqrt(32)},
	}
	for _, tt := range tests {
		if got := dist[tt.y*5+tt.x]; math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("dist(%d,%d): got %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
	if math.Abs(peak-math.Sqrt(32)) > 1e-9 {
		t.Errorf("peak: got %v, want %v", peak, math.Sqrt(32))
	}
}

func TestDistanceTransform_Blob(t *testing.T) {
	m := maskWithRects(21, 21, image.Rect(5, 5, 16, 16))

	dist, peak := DistanceTransform(m)

	// Centre (10,10) is 6 pixels from the nearest background column (4)
	if got := dist[10*21+10]; got != 6 {
		t.Errorf("centre distance: got %v, want 6", got)
	}
	if peak != 6 {
		t.Errorf("peak: got %v, want 6", peak)
	}
	if dist[0] != 0 {
		t.Error("background distance should be 0")
	}
}

func TestDistanceTransform_NoBackground(t *testing.T) {
	m := maskWithRects(4, 4, image.Rect(0, 0, 4, 4))
	dist, peak := DistanceTransform(m)
	if peak != 0 {
		t.Errorf("peak: got %v, want 0", peak)
	}
	for i, d := range dist {
		if d != 0 {
			t.Fatalf("dist[%d]: got %v, want 0", i, d)
		}
	}
}

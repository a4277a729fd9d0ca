package detection

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestDetectSpecimens_TwoSpecimens(t *testing.T) {
	left := image.Rect(40, 60, 80, 100)
	right := image.Rect(200, 30, 240, 70)
	img := createSpecimenImage(300, 200, left, right)

	res := DetectSpecimens(img, testConfig())

	if res.NumDetections != 2 || len(res.Detections) != 2 {
		t.Fatalf("got %d detections, want 2: %+v", res.NumDetections, res.Detections)
	}
	if res.DetectionMethod != "contour" {
		t.Errorf("DetectionMethod: got %s, want contour", res.DetectionMethod)
	}
	if res.ImageWidth != 300 || res.ImageHeight != 200 {
		t.Errorf("image size: got %dx%d", res.ImageWidth, res.ImageHeight)
	}

	// Reading order: the right specimen sits higher, so it comes first
	first, second := res.Detections[0], res.Detections[1]
	if !right.In(first.Box.Rect()) {
		t.Errorf("first box %v should enclose %v", first.Box, right)
	}
	if !left.In(second.Box.Rect()) {
		t.Errorf("second box %v should enclose %v", second.Box, left)
	}

	for _, d := range res.Detections {
		if d.ClassID != 0 || d.ClassName != "specimen" {
			t.Errorf("class: got %d/%s", d.ClassID, d.ClassName)
		}
		if d.Confidence <= 0 || d.Confidence > 0.6 {
			t.Errorf("confidence %v outside the area window", d.Confidence)
		}
		if r := math.Round(d.Confidence*1e4) / 1e4; r != d.Confidence {
			t.Errorf("confidence %v not rounded to 4 decimals", d.Confidence)
		}
		if !d.Box.Valid(300, 200) {
			t.Errorf("box %v out of bounds", d.Box)
		}
	}
}

func TestDetectSpecimens_UniformIsEmpty(t *testing.T) {
	res := DetectSpecimens(createTestImage(200, 150, color.White), testConfig())

	if res.NumDetections != 0 || len(res.Detections) != 0 {
		t.Errorf("got %d detections on a blank image", res.NumDetections)
	}
	if res.Detections == nil {
		t.Error("Detections should be an empty slice, not nil")
	}
}

func TestDetectSpecimens_Deterministic(t *testing.T) {
	img := createSpecimenImage(240, 160, image.Rect(20, 20, 70, 70), image.Rect(120, 60, 200, 130))
	fillRect(img, image.Rect(140, 80, 180, 110), color.RGBA{200, 40, 40, 255})

	a := DetectSpecimens(img, testConfig())
	b := DetectSpecimens(img, testConfig())

	if len(a.Detections) != len(b.Detections) {
		t.Fatalf("runs disagree: %d vs %d", len(a.Detections), len(b.Detections))
	}
	for i := range a.Detections {
		if a.Detections[i] != b.Detections[i] {
			t.Errorf("detection %d: %+v vs %+v", i, a.Detections[i], b.Detections[i])
		}
	}
}

func TestDetectSpecimens_MaxSpecimens(t *testing.T) {
	var rects []image.Rectangle
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			x, y := 10+col*70, 10+row*60
			rects = append(rects, image.Rect(x, y, x+40, y+40))
		}
	}
	img := createSpecimenImage(290, 190, rects...)

	cfg := testConfig()
	cfg.MaxSpecimens = 5
	res := DetectSpecimens(img, cfg)

	if res.NumDetections > 5 {
		t.Errorf("got %d detections, cap is 5", res.NumDetections)
	}
}

func TestPlausible(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want bool
	}{
		{"square in window", Candidate{Box: WorkingBox{0, 0, 30, 30}, Area: 900}, true},
		{"too small", Candidate{Box: WorkingBox{0, 0, 5, 5}, Area: 25}, false},
		{"too large", Candidate{Box: WorkingBox{0, 0, 100, 100}, Area: 7000}, false},
		{"sliver", Candidate{Box: WorkingBox{0, 0, 110, 10}, Area: 1100}, false},
		{"aspect exactly 10", Candidate{Box: WorkingBox{0, 0, 100, 10}, Area: 1000}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 100x100 image: window is 200-6000 px
			if got := plausible(tt.c, 200, 6000, 10); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSaturationMask(t *testing.T) {
	img := createTestImage(20, 10, color.RGBA{128, 128, 128, 255})
	fillRect(img, image.Rect(10, 0, 20, 10), color.RGBA{200, 40, 40, 255})

	mask := saturationMask(img, 30)

	if mask.GrayAt(5, 5).Y != 0 {
		t.Error("gray pixel should not be saturated")
	}
	if mask.GrayAt(15, 5).Y != 255 {
		t.Error("red pixel should be saturated")
	}
}

func TestWatershedRegions_SplitsTouchingDiscs(t *testing.T) {
	const w, h = 120, 100
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d1 := math.Hypot(float64(x-40), float64(y-50))
			d2 := math.Hypot(float64(x-78), float64(y-50))
			if d1 <= 20 || d2 <= 20 {
				mask.Pix[y*mask.Stride+x] = 255
			}
		}
	}

	regions := watershedRegions(mask, 0.4)

	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(regions))
	}
	lc := (regions[0].Bounds.Min.X + regions[0].Bounds.Max.X) / 2
	rc := (regions[1].Bounds.Min.X + regions[1].Bounds.Max.X) / 2
	if lc >= 59 || rc <= 59 {
		t.Errorf("regions should sit either side of the neck: centers %d and %d", lc, rc)
	}
}

func TestWatershedRegions_NoBackground(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range mask.Pix {
		mask.Pix[i] = 255
	}
	if got := watershedRegions(mask, 0.4); got != nil {
		t.Errorf("got %d regions, want none", len(got))
	}
}

func TestKMeansClusters(t *testing.T) {
	img := createTestImage(40, 20, color.RGBA{220, 30, 30, 255})
	fillRect(img, image.Rect(20, 0, 40, 20), color.RGBA{30, 30, 220, 255})

	labels, w, h := kmeansClusters(img, 2, 42)
	if w != 40 || h != 20 || len(labels) != w*h {
		t.Fatalf("shape: got %dx%d with %d labels", w, h, len(labels))
	}

	leftLabel, rightLabel := labels[0], labels[w-1]
	if leftLabel == rightLabel {
		t.Fatal("red and blue halves should fall into different clusters")
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			want := leftLabel
			if x >= 20 {
				want = rightLabel
			}
			if labels[y*w+x] != want {
				t.Fatalf("pixel (%d,%d): got cluster %d, want %d", x, y, labels[y*w+x], want)
			}
		}
	}

	again, _, _ := kmeansClusters(img, 2, 42)
	for i := range labels {
		if labels[i] != again[i] {
			t.Fatal("same seed should reproduce the same clustering")
		}
	}
}

func TestAvailable(t *testing.T) {
	a := Available()
	if !a.Available || a.PrimaryMethod != "contour" {
		t.Errorf("got %+v", a)
	}
	if len(a.Strategies) == 0 {
		t.Error("strategies should be listed")
	}
}

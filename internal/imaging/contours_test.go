package imaging

import (
	"image"
	"testing"
)

func TestExternalRegions_SeparateBlobs(t *testing.T) {
	m := maskWithRects(50, 50, image.Rect(5, 5, 15, 20), image.Rect(30, 10, 45, 40))

	regions := ExternalRegions(m)

	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(regions))
	}
	if regions[0].Bounds != image.Rect(5, 5, 15, 20) {
		t.Errorf("first bounds: got %v", regions[0].Bounds)
	}
	if regions[1].Bounds != image.Rect(30, 10, 45, 40) {
		t.Errorf("second bounds: got %v", regions[1].Bounds)
	}
	if regions[0].Area != 150 || regions[0].Pixels != 150 {
		t.Errorf("first area: got %d/%d, want 150", regions[0].Area, regions[0].Pixels)
	}
}

func TestExternalRegions_DiagonalConnectivity(t *testing.T) {
	m := maskWithRects(10, 10, image.Rect(2, 2, 3, 3), image.Rect(3, 3, 4, 4), image.Rect(4, 4, 5, 5))

	regions := ExternalRegions(m)

	if len(regions) != 1 {
		t.Fatalf("diagonal pixels should form one region, got %d", len(regions))
	}
	if regions[0].Bounds != image.Rect(2, 2, 5, 5) {
		t.Errorf("bounds: got %v", regions[0].Bounds)
	}
}

func TestExternalRegions_HoleAndNested(t *testing.T) {
	// 20x20 ring with a 2-pixel wall and a dot inside the hole
	m := maskWithRects(30, 30,
		image.Rect(5, 5, 25, 7), image.Rect(5, 23, 25, 25),
		image.Rect(5, 7, 7, 23), image.Rect(23, 7, 25, 23),
		image.Rect(14, 14, 16, 16),
	)

	regions := ExternalRegions(m)

	if len(regions) != 1 {
		t.Fatalf("nested dot should be dropped, got %d regions", len(regions))
	}
	r := regions[0]
	if r.Bounds != image.Rect(5, 5, 25, 25) {
		t.Errorf("bounds: got %v", r.Bounds)
	}
	if r.Area != 400 {
		t.Errorf("filled area: got %d, want 400", r.Area)
	}
	if r.Pixels != 400-16*16 {
		t.Errorf("pixels: got %d, want %d", r.Pixels, 400-16*16)
	}
}

func TestExternalRegions_TouchingBorder(t *testing.T) {
	m := maskWithRects(10, 10, image.Rect(0, 0, 10, 10))

	regions := ExternalRegions(m)

	if len(regions) != 1 || regions[0].Bounds != image.Rect(0, 0, 10, 10) || regions[0].Area != 100 {
		t.Errorf("full mask: got %+v", regions)
	}
}

func TestExternalRegions_Empty(t *testing.T) {
	if got := ExternalRegions(image.NewGray(image.Rect(0, 0, 10, 10))); len(got) != 0 {
		t.Errorf("empty mask: got %d regions", len(got))
	}
}

func TestExternalRegions_OffsetMask(t *testing.T) {
	m := image.NewGray(image.Rect(100, 200, 110, 210))
	for y := 202; y < 205; y++ {
		for x := 103; x < 107; x++ {
			m.Pix[(y-200)*m.Stride+(x-100)] = 255
		}
	}

	regions := ExternalRegions(m)

	if len(regions) != 1 || regions[0].Bounds != image.Rect(103, 202, 107, 205) {
		t.Errorf("offset mask: got %+v", regions)
	}
}

func TestLabelRegions(t *testing.T) {
	const w, h = 8, 4
	labels := []int32{
		2, 2, 0, 0, 3, 3, 3, 0,
		2, 2, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 1, 1, 0, 0, 0,
		0, 0, 0, 1, 1, 0, 0, 3,
	}

	bounds, keys := LabelBounds(labels, w, h)
	if len(keys) != 3 || keys[0] != 1 || keys[1] != 2 || keys[2] != 3 {
		t.Fatalf("keys: got %v", keys)
	}
	if bounds[2] != image.Rect(0, 0, 2, 2) {
		t.Errorf("label 2 bounds: got %v", bounds[2])
	}

	regions := LabelRegions(labels, w, bounds, keys)
	if got := regions[3]; len(got) != 2 {
		t.Errorf("label 3 should split into 2 regions, got %d", len(got))
	}
	if got := regions[1]; len(got) != 1 || got[0].Bounds != image.Rect(3, 2, 5, 4) {
		t.Errorf("label 1 regions: got %+v", got)
	}
}

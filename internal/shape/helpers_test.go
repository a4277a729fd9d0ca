package shape

import (
	"image"
	"math"
	"path/filepath"
	"testing"

	"github.com/ironsheep/specimen-tools-mcp/internal/dataset"
	"github.com/ironsheep/specimen-tools-mcp/internal/detection"
	"github.com/ironsheep/specimen-tools-mcp/internal/imaging"
)

func blankImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

// memoryImages serves every path with the same blank image.
func memoryImages(w, h int) ImageSource {
	img := blankImage(w, h)
	return func(string) (image.Image, error) { return img, nil }
}

// twoRecords is a training set whose mean shape is
// part 0 at (0.125, 0.2) and part 1 at (0.875, 0.8) of the box.
func twoRecords() []dataset.Record {
	return []dataset.Record{
		{
			ImagePath: "a.png",
			Box:       detection.Box{Left: 0, Top: 0, Right: 100, Bottom: 100},
			Parts:     []dataset.Part{{Index: 0, X: 10, Y: 20}, {Index: 1, X: 90, Y: 80}},
		},
		{
			ImagePath: "b.png",
			Box:       detection.Box{Left: 100, Top: 100, Right: 300, Bottom: 300},
			Parts:     []dataset.Part{{Index: 0, X: 130, Y: 140}, {Index: 1, X: 270, Y: 260}},
		},
	}
}

// writeDataset saves one PNG per record under dir and points the records at
// them.
func writeDataset(t *testing.T, dir string, records []dataset.Record) []dataset.Record {
	t.Helper()
	out := make([]dataset.Record, len(records))
	for i, r := range records {
		r.ImagePath = filepath.Join(dir, "corrected_images", filepath.Base(r.ImagePath))
		if err := imaging.SavePNG(r.ImagePath, blankImage(320, 320)); err != nil {
			t.Fatal(err)
		}
		out[i] = r
	}
	return out
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }


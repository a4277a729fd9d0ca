package dataset

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/specimen-tools-mcp/internal/config"
	"github.com/ironsheep/specimen-tools-mcp/internal/landmarks"
)

// labelFile describes one annotated photograph of a test project.
type labelFile struct {
	name   string
	points []landmarks.Point
}

// writeProject creates images/ and labels/ under a temp dir. Every image is a
// 300x200 white frame with a dark specimen block in the middle.
func writeProject(t *testing.T, files ...labelFile) Layout {
	t.Helper()
	root := t.TempDir()
	layout := Layout{Root: root}
	for _, dir := range []string{layout.Images(), layout.Labels()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	for _, s := range files {
		img := image.NewRGBA(image.Rect(0, 0, 300, 200))
		draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(90, 60, 210, 140), &image.Uniform{color.RGBA{30, 30, 30, 255}}, image.Point{}, draw.Src)

		f, err := os.Create(layout.Image(s.name + ".png"))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
		f.Close()

		writeLabel(t, layout, s.name+".json", Label{ImageFilename: s.name + ".png", Landmarks: s.points})
	}
	return layout
}

func writeLabel(t *testing.T, layout Layout, file string, l Label) {
	t.Helper()
	data, err := json.Marshal(l)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(layout.Labels(), file), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// facing returns landmarks 0..n-1 along the specimen with the head (id 0) at
// the left or right end.
func facing(o landmarks.Orientation, ids ...int) []landmarks.Point {
	out := make([]landmarks.Point, 0, len(ids))
	for i, id := range ids {
		x := 100 + float64(i)*20
		if o == landmarks.Right {
			x = 200 - float64(i)*20
		}
		out = append(out, landmarks.Point{ID: id, X: x, Y: 100})
	}
	return out
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Dataset.Workers = 2
	return cfg
}

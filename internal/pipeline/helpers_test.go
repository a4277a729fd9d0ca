package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/specimen-tools-mcp/internal/config"
	"github.com/ironsheep/specimen-tools-mcp/internal/dataset"
	"github.com/ironsheep/specimen-tools-mcp/internal/landmarks"
	"github.com/ironsheep/specimen-tools-mcp/internal/shape"
	"github.com/ironsheep/specimen-tools-mcp/internal/store"
)

// sparseIDs are the annotator ids used by every test label. Dense indices
// 0..2 map back to them.
var sparseIDs = []int{0, 2, 5}

// specimenPNG writes a 300x200 white frame with a dark block in the middle,
// every dimension multiplied by scale.
func specimenPNG(t *testing.T, path string, scale int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 300*scale, 200*scale))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	block := image.Rect(90*scale, 60*scale, 210*scale, 140*scale)
	draw.Draw(img, block, &image.Uniform{color.RGBA{30, 30, 30, 255}}, image.Point{}, draw.Src)

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// annotations places sparseIDs left to right along the specimen, head first.
func annotations() []landmarks.Point { return scaledAnnotations(1) }

func scaledAnnotations(scale int) []landmarks.Point {
	s := float64(scale)
	pts := make([]landmarks.Point, len(sparseIDs))
	for i, id := range sparseIDs {
		pts[i] = landmarks.Point{ID: id, X: (100 + float64(i)*40) * s, Y: 100 * s}
	}
	return pts
}

// writeProject creates a three-photograph project with labels.
func writeProject(t *testing.T) dataset.Layout {
	t.Helper()
	return writeScaledProject(t, 1)
}

// writeScaledProject is writeProject with photographs and annotations
// multiplied by scale.
func writeScaledProject(t *testing.T, scale int) dataset.Layout {
	t.Helper()
	layout := dataset.Layout{Root: t.TempDir()}
	for _, dir := range []string{layout.Images(), layout.Labels()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range []string{"a", "b", "c"} {
		specimenPNG(t, layout.Image(name+".png"), scale)
		data, err := json.Marshal(dataset.Label{ImageFilename: name + ".png", Landmarks: scaledAnnotations(scale)})
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(layout.Labels(), name+".json"), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return layout
}

// trainedProject prepares and trains tag "v1" on a fresh project.
func trainedProject(t *testing.T) dataset.Layout {
	t.Helper()
	return trainedScaledProject(t, 1)
}

func trainedScaledProject(t *testing.T, scale int) dataset.Layout {
	t.Helper()
	layout := writeScaledProject(t, scale)
	if _, err := dataset.NewPreparer(testConfig(), nil).Prepare(context.Background(), layout, "v1"); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if _, err := shape.TrainProject(layout, "v1", nil, nil, nil); err != nil {
		t.Fatalf("TrainProject failed: %v", err)
	}
	return layout
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Dataset.Workers = 2
	return cfg
}

// fakeRecorder collects predictions in memory.
type fakeRecorder struct {
	got  []*store.Prediction
	fail bool
}

func (f *fakeRecorder) RecordPrediction(_ context.Context, p *store.Prediction) error {
	if f.fail {
		return errors.New("disk full")
	}
	p.ID = "rec-1"
	f.got = append(f.got, p)
	return nil
}

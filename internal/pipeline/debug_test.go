package pipeline

import (
	"context"
	"testing"

	"github.com/ironsheep/specimen-tools-mcp/internal/dataset"
)

func TestDebug(t *testing.T) {
	layout := trainedProject(t)

	rep, err := New(testConfig(), nil, nil).Debug(context.Background(), layout, "v1", "")
	if err != nil {
		t.Fatalf("Debug failed: %v", err)
	}
	if !rep.ModelFound {
		t.Error("ModelFound should be true")
	}
	if len(rep.Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(rep.Entries))
	}

	e := rep.Entries[0]
	if e.Image != "a.png" {
		t.Errorf("first entry: got %s, want a.png", e.Image)
	}
	if e.ExifRotated {
		t.Error("PNG without EXIF reported as rotated")
	}
	if e.TrainingBox == nil || e.InferenceBox == nil || e.BoxesMatch == nil || !*e.BoxesMatch {
		t.Errorf("boxes should match: training %v inference %v", e.TrainingBox, e.InferenceBox)
	}
	if len(e.Landmarks) != 3 {
		t.Fatalf("got %d landmark checks, want 3", len(e.Landmarks))
	}
	for _, c := range e.Landmarks {
		if c.Annotated == nil || !c.OK {
			t.Errorf("landmark %d: annotated %v ok %v error %v", c.ID, c.Annotated, c.OK, c.Error)
		}
	}
	if len(e.Problems) != 0 {
		t.Errorf("unexpected problems: %v", e.Problems)
	}
}

func TestDebug_NoModel(t *testing.T) {
	layout := writeProject(t)

	rep, err := New(testConfig(), nil, nil).Debug(context.Background(), layout, "v1", "")
	if err != nil {
		t.Fatalf("Debug failed: %v", err)
	}
	if rep.ModelFound {
		t.Error("ModelFound should be false")
	}
	for _, e := range rep.Entries {
		if len(e.Landmarks) != 0 {
			t.Errorf("%s: landmark checks without a model", e.Image)
		}
		// No corrected image and no model.
		if len(e.Problems) != 2 {
			t.Errorf("%s: problems %v", e.Image, e.Problems)
		}
	}
}

func TestDebug_NoLabels(t *testing.T) {
	layout := dataset.Layout{Root: t.TempDir()}
	if _, err := New(testConfig(), nil, nil).Debug(context.Background(), layout, "v1", ""); err == nil {
		t.Fatal("expected error without labels")
	}
}

func TestDebug_DownscaledPhotographs(t *testing.T) {
	// 2400x1600 photographs normalize to the 1500 px dataset size.
	layout := trainedScaledProject(t, 8)

	rep, err := New(testConfig(), nil, nil).Debug(context.Background(), layout, "v1", "")
	if err != nil {
		t.Fatalf("Debug failed: %v", err)
	}
	if len(rep.Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(rep.Entries))
	}

	for _, e := range rep.Entries {
		if e.RawDimensions != (dataset.Dimensions{Width: 2400, Height: 1600}) {
			t.Errorf("%s: raw dimensions %+v", e.Image, e.RawDimensions)
		}
		if e.CorrectedDimensions == nil || *e.CorrectedDimensions != (dataset.Dimensions{Width: 1500, Height: 1000}) {
			t.Errorf("%s: corrected dimensions %+v, want 1500x1000", e.Image, e.CorrectedDimensions)
		}
		if e.BoxesMatch == nil || !*e.BoxesMatch {
			t.Errorf("%s: training box %v, inference box %v", e.Image, e.TrainingBox, e.InferenceBox)
		}
		if len(e.Landmarks) != 3 {
			t.Fatalf("%s: got %d landmark checks, want 3", e.Image, len(e.Landmarks))
		}
		for _, c := range e.Landmarks {
			if c.Error == nil || *c.Error > 2.5 {
				t.Errorf("%s: landmark %d error %v, want <= 2.5 px", e.Image, c.ID, c.Error)
			}
		}
		if len(e.Problems) != 0 {
			t.Errorf("%s: unexpected problems %v", e.Image, e.Problems)
		}
	}
}

package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ironsheep/specimen-tools-mcp/internal/dataset"
	"github.com/ironsheep/specimen-tools-mcp/internal/store"
)

func TestPredict_ModelMissing(t *testing.T) {
	layout := dataset.Layout{Root: t.TempDir()}
	p := New(testConfig(), nil, nil)

	// The image does not exist either; the model check must come first.
	_, err := p.Predict(context.Background(), layout, "v1", filepath.Join(layout.Root, "nope.png"))
	if !errors.Is(err, ErrModelMissing) {
		t.Fatalf("expected ErrModelMissing, got %v", err)
	}
}

func TestPredict_InvalidTag(t *testing.T) {
	layout := dataset.Layout{Root: t.TempDir()}
	if _, err := New(testConfig(), nil, nil).Predict(context.Background(), layout, "../x", "a.png"); err == nil {
		t.Fatal("expected error for invalid tag")
	}
}

func TestPredict(t *testing.T) {
	layout := trainedProject(t)
	rec := &fakeRecorder{}
	p := New(testConfig(), rec, nil)

	res, err := p.Predict(context.Background(), layout, "v1", layout.Image("a.png"))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if res.IdentityMapping {
		t.Error("IdentityMapping should be false with a mapping on disk")
	}
	if len(res.DebugHash) != 8 {
		t.Errorf("DebugHash: got %q, want 8 hex chars", res.DebugHash)
	}
	if res.ImageDimensions != (Dimensions{Width: 300, Height: 200}) {
		t.Errorf("ImageDimensions: got %+v", res.ImageDimensions)
	}
	if !res.DetectedBox.Valid(300, 200) {
		t.Errorf("DetectedBox %v not valid for 300x200", res.DetectedBox)
	}

	want := annotations()
	if len(res.Landmarks) != len(want) {
		t.Fatalf("got %d landmarks, want %d", len(res.Landmarks), len(want))
	}
	for i, lm := range res.Landmarks {
		if lm.ID != want[i].ID {
			t.Errorf("landmark %d: id %d, want %d", i, lm.ID, want[i].ID)
		}
		dx, dy := float64(lm.X)-want[i].X, float64(lm.Y)-want[i].Y
		if dx*dx+dy*dy > 4 {
			t.Errorf("landmark %d at (%d,%d), want near (%.0f,%.0f)", lm.ID, lm.X, lm.Y, want[i].X, want[i].Y)
		}
	}

	if len(rec.got) != 1 {
		t.Fatalf("recorded %d predictions, want 1", len(rec.got))
	}
	if res.RecordID != "rec-1" {
		t.Errorf("RecordID: got %q", res.RecordID)
	}
	if got := rec.got[0]; got.Tag != "v1" || got.NumLandmarks != 3 || got.ImageHash != res.DebugHash {
		t.Errorf("recorded prediction: %+v", got)
	}
}

func TestPredict_DownscaledPhotograph(t *testing.T) {
	layout := trainedScaledProject(t, 8)

	res, err := New(testConfig(), nil, nil).Predict(context.Background(), layout, "v1", layout.Image("a.png"))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if res.ImageDimensions != (Dimensions{Width: 2400, Height: 1600}) {
		t.Errorf("ImageDimensions: got %+v", res.ImageDimensions)
	}
	if res.Fallback {
		t.Errorf("unexpected fallback box %v", res.DetectedBox)
	}

	want := scaledAnnotations(8)
	if len(res.Landmarks) != len(want) {
		t.Fatalf("got %d landmarks, want %d", len(res.Landmarks), len(want))
	}
	for i, lm := range res.Landmarks {
		if lm.ID != want[i].ID {
			t.Errorf("landmark %d: id %d, want %d", i, lm.ID, want[i].ID)
		}
		if d := math.Hypot(float64(lm.X)-want[i].X, float64(lm.Y)-want[i].Y); d > 2.5 {
			t.Errorf("landmark %d at (%d,%d), %.1f px from (%.0f,%.0f)", lm.ID, lm.X, lm.Y, d, want[i].X, want[i].Y)
		}
	}
}

func TestPredict_Deterministic(t *testing.T) {
	layout := trainedProject(t)
	p := New(testConfig(), nil, nil)

	a, err := p.Predict(context.Background(), layout, "v1", layout.Image("b.png"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Predict(context.Background(), layout, "v1", layout.Image("b.png"))
	if err != nil {
		t.Fatal(err)
	}
	if a.DetectedBox != b.DetectedBox || a.DebugHash != b.DebugHash {
		t.Errorf("repeated predictions differ: %+v vs %+v", a, b)
	}
	for i := range a.Landmarks {
		if a.Landmarks[i] != b.Landmarks[i] {
			t.Errorf("landmark %d differs: %+v vs %+v", i, a.Landmarks[i], b.Landmarks[i])
		}
	}
}

func TestPredict_IdentityFallback(t *testing.T) {
	layout := trainedProject(t)
	if err := os.Remove(layout.IDMapping("v1")); err != nil {
		t.Fatal(err)
	}

	log, hook := test.NewNullLogger()
	res, err := New(testConfig(), nil, log).Predict(context.Background(), layout, "v1", layout.Image("a.png"))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if !res.IdentityMapping {
		t.Error("IdentityMapping should be set without a mapping file")
	}
	for i, lm := range res.Landmarks {
		if lm.ID != i {
			t.Errorf("landmark %d: id %d, want dense index", i, lm.ID)
		}
	}

	warned := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a warning about the missing mapping")
	}
}

func TestPredict_RecorderFailureIsLogged(t *testing.T) {
	layout := trainedProject(t)
	log, hook := test.NewNullLogger()

	res, err := New(testConfig(), &fakeRecorder{fail: true}, log).Predict(context.Background(), layout, "v1", layout.Image("a.png"))
	if err != nil {
		t.Fatalf("Predict should succeed when recording fails: %v", err)
	}
	if res.RecordID != "" {
		t.Errorf("RecordID: got %q, want empty", res.RecordID)
	}
	if e := hook.LastEntry(); e == nil || e.Level != logrus.WarnLevel {
		t.Error("expected a warning about the failed record")
	}
}

func TestPredict_Store(t *testing.T) {
	layout := trainedProject(t)
	db, err := store.New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	res, err := New(testConfig(), db, nil).Predict(context.Background(), layout, "v1", layout.Image("c.png"))
	if err != nil {
		t.Fatal(err)
	}
	recent, err := db.RecentPredictions(context.Background(), "v1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].ID != res.RecordID {
		t.Fatalf("history: got %+v, want one record %s", recent, res.RecordID)
	}
	if recent[0].Box != res.DetectedBox {
		t.Errorf("stored box %v, want %v", recent[0].Box, res.DetectedBox)
	}
}

func TestPredict_UnreadableImage(t *testing.T) {
	layout := trainedProject(t)
	_, err := New(testConfig(), nil, nil).Predict(context.Background(), layout, "v1", filepath.Join(layout.Root, "missing.png"))
	if err == nil {
		t.Fatal("expected error for missing image")
	}
	if errors.Is(err, ErrModelMissing) {
		t.Error("missing image reported as missing model")
	}
}

package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ironsheep/specimen-tools-mcp/internal/dataset"
	"github.com/ironsheep/specimen-tools-mcp/internal/shape"
	"github.com/ironsheep/specimen-tools-mcp/internal/store"
)

func TestPrepareAndTrainRun(t *testing.T) {
	prep := PrepareRun("v1", &dataset.Result{Train: 8, Test: 2, NumLandmarks: 5})
	if prep.Tag != "v1" || prep.Kind != store.KindPrepare || prep.Train != 8 || prep.Test != 2 || prep.NumLandmarks != 5 {
		t.Errorf("prepare run: %+v", prep)
	}
	if prep.TrainError != nil || prep.TestError != nil {
		t.Error("a preparation carries no errors")
	}

	testErr := 0.08
	res := &shape.TrainingResult{TrainError: 0.05, TestError: &testErr, NumImages: 8, NumLandmarks: 5}
	train := TrainRun("v1", res)
	if train.Kind != store.KindTrain || train.Train != 8 || train.NumLandmarks != 5 {
		t.Errorf("train run: %+v", train)
	}
	if train.TrainError == nil || *train.TrainError != 0.05 {
		t.Errorf("TrainError: got %v", train.TrainError)
	}
	res.TrainError = 1
	if *train.TrainError != 0.05 {
		t.Error("TrainError should not alias the result")
	}
	if train.TestError != &testErr {
		t.Error("TestError should carry the result's value")
	}
}

func TestRecordRun(t *testing.T) {
	tests := []struct {
		name     string
		details  interface{}
		wantRuns int
		wantWarn bool
	}{
		{"stores details", map[string]int{"train": 8}, 1, false},
		{"unencodable details", make(chan int), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := store.New(filepath.Join(t.TempDir(), "history.db"))
			if err != nil {
				t.Fatal(err)
			}
			defer db.Close()
			log, hook := test.NewNullLogger()

			RecordRun(context.Background(), db, PrepareRun("v1", &dataset.Result{Train: 8}), tt.details, log)

			runs, err := db.TrainingRuns(context.Background(), "v1")
			if err != nil {
				t.Fatal(err)
			}
			if len(runs) != tt.wantRuns {
				t.Fatalf("got %d runs, want %d", len(runs), tt.wantRuns)
			}
			if tt.wantRuns == 1 && string(runs[0].Details) != `{"train":8}` {
				t.Errorf("details: got %s", runs[0].Details)
			}
			warned := hook.LastEntry() != nil && hook.LastEntry().Level == logrus.WarnLevel
			if warned != tt.wantWarn {
				t.Errorf("warned = %v, want %v", warned, tt.wantWarn)
			}
		})
	}
}

func TestRecordRun_NilHistory(t *testing.T) {
	// Must not panic.
	RecordRun(context.Background(), nil, TrainRun("v1", &shape.TrainingResult{}), nil, nil)
}

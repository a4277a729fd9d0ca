package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/specimen-tools-mcp/internal/dataset"
	"github.com/ironsheep/specimen-tools-mcp/internal/logging"
	"github.com/ironsheep/specimen-tools-mcp/internal/shape"
	"github.com/ironsheep/specimen-tools-mcp/internal/store"
)

// PrepareRun is the history entry for a dataset preparation.
func PrepareRun(tag string, res *dataset.Result) *store.TrainingRun {
	return &store.TrainingRun{
		Tag:          tag,
		Kind:         store.KindPrepare,
		Train:        res.Train,
		Test:         res.Test,
		NumLandmarks: res.NumLandmarks,
	}
}

// TrainRun is the history entry for a training run.
func TrainRun(tag string, res *shape.TrainingResult) *store.TrainingRun {
	trainErr := res.TrainError
	return &store.TrainingRun{
		Tag:          tag,
		Kind:         store.KindTrain,
		Train:        res.NumImages,
		NumLandmarks: res.NumLandmarks,
		TrainError:   &trainErr,
		TestError:    res.TestError,
	}
}

// RecordRun appends run to history with details stored as JSON. A nil
// history disables recording. Failures are logged and never returned: the
// run itself already succeeded.
func RecordRun(ctx context.Context, history *store.Store, run *store.TrainingRun, details interface{}, log *logrus.Logger) {
	if history == nil {
		return
	}
	log = logging.OrDiscard(log)
	data, err := json.Marshal(details)
	if err != nil {
		log.WithError(err).Warn("failed to encode run details")
		return
	}
	run.Details = data
	if err := history.RecordTrainingRun(ctx, run); err != nil {
		log.WithError(err).WithField("tag", run.Tag).Warn("failed to record training run")
	}
}

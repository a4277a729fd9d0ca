package shape

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/specimen-tools-mcp/internal/dataset"
	"github.com/ironsheep/specimen-tools-mcp/internal/logging"
)

// TrainingParams is the training_params_<tag>.json report.
type TrainingParams struct {
	NumImages    int      `json:"num_images"`
	NumLandmarks int      `json:"num_landmarks"`
	Custom       []string `json:"custom_options,omitempty"`
	Options
}

// TrainingResult is the training_results_<tag>.json report.
type TrainingResult struct {
	ModelPath    string   `json:"model_path"`
	TrainError   float64  `json:"train_error"`
	TestError    *float64 `json:"test_error"`
	NumImages    int      `json:"num_images"`
	NumLandmarks int      `json:"num_landmarks"`
}

// TrainProject trains a model from xml/train_<tag>.xml and writes it to
// models/predictor_<tag>.json.
//
// Options start from DefaultOptions for the training-set size and are then
// overridden by overrides. Train and test errors are the mean normalized
// errors reported by Evaluate; the test error is nil when no test set
// exists. Both reports are written under debug/.
func TrainProject(layout dataset.Layout, tag string, trainer Trainer, overrides map[string]any, log *logrus.Logger) (*TrainingResult, error) {
	if err := dataset.ValidateTag(tag); err != nil {
		return nil, err
	}
	log = logging.OrDiscard(log)
	if trainer == nil {
		trainer = MeanShapeTrainer{}
	}

	trainPath := layout.TrainXML(tag)
	train, err := dataset.ReadXML(trainPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("train XML not found at %s: %w", trainPath, err)
	}
	if err != nil {
		return nil, err
	}

	numImages, numLandmarks := len(train), dataset.NumParts(train)
	opts := DefaultOptions(numImages)
	custom, err := opts.Apply(overrides)
	if err != nil {
		return nil, err
	}
	for _, k := range custom {
		log.WithFields(logrus.Fields{"option": k, "value": overrides[k]}).Info("custom training option")
	}

	params := TrainingParams{NumImages: numImages, NumLandmarks: numLandmarks, Custom: custom, Options: opts}
	if err := dataset.WriteReport(layout.Report("training_params", tag), params); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{"images": numImages, "landmarks": numLandmarks}).Info("training shape model")
	model, err := trainer.Train(train, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to train model: %w", err)
	}
	modelPath := layout.Model(tag)
	if err := model.Save(modelPath); err != nil {
		return nil, err
	}

	res := &TrainingResult{ModelPath: modelPath, NumImages: numImages, NumLandmarks: numLandmarks}
	trainRep, err := Evaluate(model, train, nil)
	if err != nil {
		return nil, err
	}
	res.TrainError = trainRep.Normalized.Mean

	testPath := layout.TestXML(tag)
	if _, err := os.Stat(testPath); err == nil {
		test, err := dataset.ReadXML(testPath)
		if err != nil {
			return nil, err
		}
		testRep, err := Evaluate(model, test, nil)
		if err != nil {
			return nil, err
		}
		res.TestError = &testRep.Normalized.Mean
	}

	if err := dataset.WriteReport(layout.Report("training_results", tag), res); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"train_error": res.TrainError, "model": modelPath}).Info("training finished")
	return res, nil
}

// EvaluateProject evaluates models/predictor_<tag>.json on
// xml/<split>_<tag>.xml, where split is "train" or "test".
func EvaluateProject(layout dataset.Layout, tag, split string) (*Report, error) {
	if err := dataset.ValidateTag(tag); err != nil {
		return nil, err
	}
	var path string
	switch split {
	case "train":
		path = layout.TrainXML(tag)
	case "test", "":
		path = layout.TestXML(tag)
	default:
		return nil, fmt.Errorf("invalid split %q: want train or test", split)
	}

	model, err := LoadModel(layout.Model(tag))
	if err != nil {
		return nil, err
	}
	records, err := dataset.ReadXML(path)
	if err != nil {
		return nil, err
	}
	return Evaluate(model, records, nil)
}

package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/specimen-tools-mcp/internal/config"
	"github.com/ironsheep/specimen-tools-mcp/internal/dataset"
	"github.com/ironsheep/specimen-tools-mcp/internal/detection"
	"github.com/ironsheep/specimen-tools-mcp/internal/imaging"
	"github.com/ironsheep/specimen-tools-mcp/internal/landmarks"
	"github.com/ironsheep/specimen-tools-mcp/internal/logging"
	"github.com/ironsheep/specimen-tools-mcp/internal/shape"
	"github.com/ironsheep/specimen-tools-mcp/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrModelMissing means no trained model exists for the requested tag.
var ErrModelMissing = errors.New("model not found")

// hashPrefix is how many leading file bytes go into the debug hash.
const hashPrefix = 1000

// Recorder persists predictions. *store.Store implements it.
type Recorder interface {
	RecordPrediction(ctx context.Context, p *store.Prediction) error
}

// Landmark is one predicted landmark in original image pixels.
type Landmark struct {
	ID int `json:"id"`
	X  int `json:"x"`
	Y  int `json:"y"`
}

// Dimensions is a width and height pair.
type Dimensions = dataset.Dimensions

// Prediction is the result of Predict.
type Prediction struct {
	Image           string           `json:"image"`
	Landmarks       []Landmark       `json:"landmarks"`
	DetectedBox     detection.Box    `json:"detected_box"`
	Method          detection.Method `json:"method"`
	Fallback        bool             `json:"fallback"`
	ImageDimensions Dimensions       `json:"image_dimensions"`
	DebugHash       string           `json:"debug_hash"`

	// IdentityMapping is true when no id mapping was found and Landmark IDs
	// are dense indices.
	IdentityMapping bool   `json:"identity_mapping"`
	RecordID        string `json:"record_id,omitempty"`
}

// Pipeline runs inference with one configuration.
type Pipeline struct {
	cfg      config.Config
	detector *detection.Detector
	history  Recorder
	log      *logrus.Logger
}

// New creates a Pipeline. history may be nil to disable the prediction log.
func New(cfg config.Config, history Recorder, log *logrus.Logger) *Pipeline {
	log = logging.OrDiscard(log)
	return &Pipeline{
		cfg:      cfg,
		detector: detection.New(cfg.Detection, log),
		history:  history,
		log:      log,
	}
}

// inference is one image taken through the training geometry.
type inference struct {
	loaded *imaging.Loaded
	scaled imaging.Scaled
	det    detection.Result
	hash   string
}

// prepare loads path and detects the specimen exactly as dataset
// preparation does.
func (p *Pipeline) prepare(path string) (*inference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &imaging.LoadError{Path: path, Err: err}
	}
	loaded, err := imaging.Decode(path, data)
	if err != nil {
		return nil, err
	}

	sum := md5.Sum(data[:min(len(data), hashPrefix)])
	scaled := imaging.Normalize(loaded.Image, p.cfg.Dataset.MaxDim)
	return &inference{
		loaded: loaded,
		scaled: scaled,
		det:    p.detector.Detect(scaled.Image),
		hash:   hex.EncodeToString(sum[:])[:8],
	}, nil
}

// loadModel checks for and reads the model of tag.
func loadModel(layout dataset.Layout, tag string) (*shape.Model, error) {
	path := layout.Model(tag)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelMissing, path)
	}
	return shape.LoadModel(path)
}

// Predict places the landmarks of model tag on the photograph at imagePath.
//
// The model file is checked before any image is read; a missing model
// returns ErrModelMissing. A missing id mapping is not an error: the
// landmarks then carry dense indices and IdentityMapping is set.
func (p *Pipeline) Predict(ctx context.Context, layout dataset.Layout, tag, imagePath string) (*Prediction, error) {
	if err := dataset.ValidateTag(tag); err != nil {
		return nil, err
	}
	model, err := loadModel(layout, tag)
	if err != nil {
		return nil, err
	}
	mapping, err := landmarks.LoadIDMapping(layout.IDMapping(tag), p.log)
	if err != nil {
		return nil, err
	}

	inf, err := p.prepare(imagePath)
	if err != nil {
		return nil, err
	}
	parts, err := model.Predict(inf.scaled.Image, inf.det.Box)
	if err != nil {
		return nil, fmt.Errorf("failed to predict landmarks: %w", err)
	}

	res := &Prediction{
		Image:           imagePath,
		Landmarks:       p.restore(parts, inf.scaled, mapping),
		DetectedBox:     detection.ToSource(inf.det.Box, inf.scaled),
		Method:          inf.det.Method,
		Fallback:        inf.det.Fallback,
		ImageDimensions: Dimensions{Width: inf.loaded.Width, Height: inf.loaded.Height},
		DebugHash:       inf.hash,
		IdentityMapping: mapping.Identity,
	}

	p.log.WithFields(logrus.Fields{
		"path":   imagePath,
		"hash":   res.DebugHash,
		"box":    res.DetectedBox.String(),
		"method": res.Method,
		"factor": inf.scaled.Factor,
	}).Debug("landmarks predicted")

	p.record(ctx, tag, res)
	return res, nil
}

// restore maps parts from the normalized image back to original pixels and
// dense indices back to annotator ids.
func (p *Pipeline) restore(parts []shape.Part, s imaging.Scaled, mapping *landmarks.IDMapping) []Landmark {
	out := make([]Landmark, len(parts))
	for i, part := range parts {
		x, y := s.ToOriginalPoint(part.X, part.Y)
		out[i] = Landmark{ID: mapping.Restore(part.Index), X: int(x), Y: int(y)}
	}
	return out
}

// record appends res to the prediction log. Failures are logged, not
// returned: the prediction itself succeeded.
func (p *Pipeline) record(ctx context.Context, tag string, res *Prediction) {
	if p.history == nil {
		return
	}
	lms, err := json.Marshal(res.Landmarks)
	if err != nil {
		p.log.WithError(err).Warn("failed to encode landmarks for history")
		return
	}
	rec := &store.Prediction{
		Tag:          tag,
		ImagePath:    res.Image,
		ImageHash:    res.DebugHash,
		Box:          res.DetectedBox,
		Method:       string(res.Method),
		Fallback:     res.Fallback,
		NumLandmarks: len(res.Landmarks),
		Landmarks:    lms,
	}
	if err := p.history.RecordPrediction(ctx, rec); err != nil {
		p.log.WithError(err).WithField("path", res.Image).Warn("failed to record prediction")
		return
	}
	res.RecordID = rec.ID
}


package shape

import (
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/ironsheep/specimen-tools-mcp/internal/dataset"
	"github.com/ironsheep/specimen-tools-mcp/internal/detection"
	"github.com/ironsheep/specimen-tools-mcp/internal/fsutil"
)

// ModelKind identifies the model implementation in a persisted model file.
const ModelKind = "mean_shape"

// ErrNoTrainingData means the training set had no record with parts.
var ErrNoTrainingData = errors.New("no training records with landmarks")

// Part is one predicted landmark by dense index, in the pixel space of the
// image given to Predict.
type Part struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Trainer fits a model to training records.
type Trainer interface {
	Train(records []dataset.Record, opts Options) (*Model, error)
}

// Predictor places the landmarks of one specimen.
type Predictor interface {
	Predict(img image.Image, box detection.Box) ([]Part, error)
	NumParts() int
}

// RelPoint is a position relative to a box: (0,0) is the top-left corner and
// (1,1) the bottom-right.
type RelPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Model is a trained mean-shape model.
type Model struct {
	Kind      string     `json:"kind"`
	Shape     []RelPoint `json:"shape"`
	NumImages int        `json:"num_images"`

	// Options are the options the model was trained with. They are a record
	// for reproducing the run with an external trainer; Predict does not
	// read them.
	Options   Options   `json:"options"`
	TrainedAt time.Time `json:"trained_at"`
}

// NumParts is the number of landmarks the model predicts.
func (m *Model) NumParts() int { return len(m.Shape) }

// Predict places the mean shape inside box. The box must lie within img.
func (m *Model) Predict(img image.Image, box detection.Box) ([]Part, error) {
	b := img.Bounds()
	if !box.Valid(b.Dx(), b.Dy()) {
		return nil, fmt.Errorf("box %s outside %dx%d image", box, b.Dx(), b.Dy())
	}

	w, h := float64(box.Width()), float64(box.Height())
	parts := make([]Part, len(m.Shape))
	for i, p := range m.Shape {
		parts[i] = Part{
			Index: i,
			X:     float64(box.Left) + p.X*w,
			Y:     float64(box.Top) + p.Y*h,
		}
	}
	return parts, nil
}

// Save writes the model as JSON, atomically.
func (m *Model) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return fsutil.WriteFile(path, data)
}

// LoadModel reads a model written by Save.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", path, err)
	}
	if m.Kind != ModelKind {
		return nil, fmt.Errorf("unsupported model kind %q in %s", m.Kind, path)
	}
	return &m, nil
}

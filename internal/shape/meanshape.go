package shape

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/specimen-tools-mcp/internal/dataset"
)

// MeanShapeTrainer learns, for each dense index, the mean position of the
// part relative to its record's box. It ignores the training Options apart
// from recording them on the Model.
type MeanShapeTrainer struct {
	// Now stamps the model; time.Now when nil.
	Now func() time.Time
}

// Train fits the mean shape. Records whose box is empty are skipped. A part
// index missing from some records is averaged over the records that have it.
func (t MeanShapeTrainer) Train(records []dataset.Record, opts Options) (*Model, error) {
	n := dataset.NumParts(records)
	if n == 0 {
		return nil, ErrNoTrainingData
	}
	maxIndex := 0
	for _, r := range records {
		for _, p := range r.Parts {
			maxIndex = max(maxIndex, p.Index)
		}
	}

	xs := make([][]float64, maxIndex+1)
	ys := make([][]float64, maxIndex+1)
	used := 0
	for _, r := range records {
		w, h := float64(r.Box.Width()), float64(r.Box.Height())
		if w <= 0 || h <= 0 {
			continue
		}
		used++
		for _, p := range r.Parts {
			xs[p.Index] = append(xs[p.Index], (float64(p.X)-float64(r.Box.Left))/w)
			ys[p.Index] = append(ys[p.Index], (float64(p.Y)-float64(r.Box.Top))/h)
		}
	}
	if used == 0 {
		return nil, ErrNoTrainingData
	}

	shape := make([]RelPoint, maxIndex+1)
	for i := range shape {
		if len(xs[i]) == 0 {
			continue
		}
		shape[i] = RelPoint{X: stat.Mean(xs[i], nil), Y: stat.Mean(ys[i], nil)}
	}

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	return &Model{
		Kind:      ModelKind,
		Shape:     shape,
		NumImages: used,
		Options:   opts,
		TrainedAt: now().UTC(),
	}, nil
}

package shape

import (
	"fmt"
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/specimen-tools-mcp/internal/dataset"
	"github.com/ironsheep/specimen-tools-mcp/internal/imaging"
)

// ImageSource loads the image a record refers to.
type ImageSource func(path string) (image.Image, error)

// FileImages loads records' images from disk with EXIF orientation applied.
func FileImages(path string) (image.Image, error) {
	l, err := imaging.Load(path)
	if err != nil {
		return nil, err
	}
	return l.Image, nil
}

// Stats summarizes a set of errors.
type Stats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func summarize(v []float64) Stats {
	if len(v) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	return Stats{
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
	}
}

// ImageError is the prediction error on one record.
type ImageError struct {
	ImagePath string `json:"image_path"`

	// Pixel is the mean Euclidean distance between predicted and annotated
	// parts, in pixels.
	Pixel float64 `json:"pixel"`

	// Normalized is Pixel divided by the box diagonal.
	Normalized float64 `json:"normalized"`
}

// Report is the evaluation of a predictor over a dataset.
type Report struct {
	NumImages   int           `json:"num_images"`
	Pixel       Stats         `json:"pixel"`
	Normalized  Stats         `json:"normalized"`
	PerImage    []ImageError  `json:"per_image"`
	PerLandmark map[int]Stats `json:"per_landmark"`
}

// Evaluate predicts every record with p and compares against its parts.
// Records without parts are skipped.
func Evaluate(p Predictor, records []dataset.Record, load ImageSource) (*Report, error) {
	if load == nil {
		load = FileImages
	}

	rep := &Report{PerLandmark: make(map[int]Stats)}
	byLandmark := make(map[int][]float64)
	var pixel, normalized []float64

	for _, r := range records {
		if len(r.Parts) == 0 {
			continue
		}
		img, err := load(r.ImagePath)
		if err != nil {
			return nil, err
		}
		pred, err := p.Predict(img, r.Box)
		if err != nil {
			return nil, fmt.Errorf("failed to predict %s: %w", r.ImagePath, err)
		}
		byIndex := make(map[int]Part, len(pred))
		for _, pp := range pred {
			byIndex[pp.Index] = pp
		}

		var sum float64
		var n int
		for _, truth := range r.Parts {
			pp, ok := byIndex[truth.Index]
			if !ok {
				continue
			}
			d := math.Hypot(pp.X-float64(truth.X), pp.Y-float64(truth.Y))
			byLandmark[truth.Index] = append(byLandmark[truth.Index], d)
			sum += d
			n++
		}
		if n == 0 {
			continue
		}

		mean := sum / float64(n)
		diag := math.Hypot(float64(r.Box.Width()), float64(r.Box.Height()))
		ie := ImageError{ImagePath: r.ImagePath, Pixel: mean}
		if diag > 0 {
			ie.Normalized = mean / diag
		}
		rep.PerImage = append(rep.PerImage, ie)
		pixel = append(pixel, ie.Pixel)
		normalized = append(normalized, ie.Normalized)
	}

	rep.NumImages = len(rep.PerImage)
	rep.Pixel = summarize(pixel)
	rep.Normalized = summarize(normalized)
	for idx, d := range byLandmark {
		rep.PerLandmark[idx] = summarize(d)
	}
	return rep, nil
}

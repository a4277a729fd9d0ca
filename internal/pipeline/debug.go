package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/specimen-tools-mcp/internal/dataset"
	"github.com/ironsheep/specimen-tools-mcp/internal/detection"
	"github.com/ironsheep/specimen-tools-mcp/internal/imaging"
	"github.com/ironsheep/specimen-tools-mcp/internal/landmarks"
	"github.com/ironsheep/specimen-tools-mcp/internal/shape"
)

// MatchTolerance is the pixel error under which a predicted landmark counts
// as agreeing with its annotation.
const MatchTolerance = 10.0

// LandmarkCheck compares one predicted landmark with its annotation.
type LandmarkCheck struct {
	ID        int              `json:"id"`
	Predicted Landmark         `json:"predicted"`
	Annotated *landmarks.Point `json:"annotated,omitempty"`
	Error     *float64         `json:"error_px,omitempty"`
	OK        bool             `json:"ok"`
}

// DebugEntry traces one labelled photograph through training and inference
// geometry.
type DebugEntry struct {
	Image       string            `json:"image"`
	Annotations []landmarks.Point `json:"annotations"`

	// RawDimensions are the stored pixel dimensions, ExifDimensions the
	// dimensions after the orientation transform.
	RawDimensions  Dimensions `json:"raw_dimensions"`
	ExifDimensions Dimensions `json:"exif_dimensions"`
	ExifRotated    bool       `json:"exif_rotated"`

	CorrectedDimensions *Dimensions    `json:"corrected_dimensions,omitempty"`
	TrainingBox         *detection.Box `json:"training_box,omitempty"`
	InferenceBox        *detection.Box `json:"inference_box,omitempty"`
	BoxesMatch          *bool          `json:"boxes_match,omitempty"`

	Landmarks []LandmarkCheck `json:"landmarks,omitempty"`
	Problems  []string        `json:"problems,omitempty"`
}

// DebugReport is the result of Debug.
type DebugReport struct {
	Tag        string       `json:"tag"`
	ModelFound bool         `json:"model_found"`
	Entries    []DebugEntry `json:"entries"`
}

// Debug traces every labelled photograph of the project through the
// training and inference paths and reports where their geometry diverges:
// EXIF rotation, training box versus inference box on the same normalized
// image, and per-landmark error of the prediction against the annotation.
//
// testImage, when set, replaces each label's photograph on the inference
// side. Problems with one photograph are reported in its entry; only a
// project without labels fails the call.
func (p *Pipeline) Debug(ctx context.Context, layout dataset.Layout, tag, testImage string) (*DebugReport, error) {
	if err := dataset.ValidateTag(tag); err != nil {
		return nil, err
	}
	paths, err := dataset.LabelPaths(layout)
	if err != nil {
		return nil, err
	}

	rep := &DebugReport{Tag: tag}
	model, modelErr := loadModel(layout, tag)
	rep.ModelFound = modelErr == nil
	mapping, err := landmarks.LoadIDMapping(layout.IDMapping(tag), p.log)
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := p.debugOne(layout, path, testImage, model, modelErr, mapping)
		p.log.WithFields(logrus.Fields{
			"image":    entry.Image,
			"problems": len(entry.Problems),
		}).Debug("pipeline traced")
		rep.Entries = append(rep.Entries, entry)
	}
	return rep, nil
}

func (p *Pipeline) debugOne(layout dataset.Layout, labelPath, testImage string, model *shape.Model, modelErr error, mapping *landmarks.IDMapping) DebugEntry {
	var entry DebugEntry
	problem := func(err error) { entry.Problems = append(entry.Problems, err.Error()) }

	label, err := dataset.ReadLabel(labelPath)
	if err != nil {
		entry.Image = filepath.Base(labelPath)
		problem(err)
		return entry
	}
	entry.Image = label.ImageFilename
	entry.Annotations = landmarks.Placed(label.Points())
	sort.SliceStable(entry.Annotations, func(i, j int) bool { return entry.Annotations[i].ID < entry.Annotations[j].ID })

	original := layout.Image(label.ImageFilename)
	orig, err := p.prepare(original)
	if err != nil {
		problem(err)
		return entry
	}
	entry.RawDimensions = Dimensions{Width: orig.loaded.RawWidth, Height: orig.loaded.RawHeight}
	entry.ExifDimensions = Dimensions{Width: orig.loaded.Width, Height: orig.loaded.Height}
	entry.ExifRotated = entry.RawDimensions != entry.ExifDimensions

	// Training side: the corrected PNG written by dataset preparation.
	corrected, err := imaging.Load(layout.CorrectedImage(label.ImageFilename))
	switch {
	case errors.Is(err, os.ErrNotExist):
		problem(errors.New("corrected image not found; prepare the dataset first"))
	case err != nil:
		problem(err)
	default:
		entry.CorrectedDimensions = &Dimensions{Width: corrected.Width, Height: corrected.Height}
		box := p.detector.Detect(corrected.Image).Box
		entry.TrainingBox = &box
	}

	// Inference side.
	inf := orig
	if testImage != "" {
		if inf, err = p.prepare(testImage); err != nil {
			problem(err)
			return entry
		}
	}
	entry.InferenceBox = &inf.det.Box
	if entry.TrainingBox != nil {
		match := *entry.TrainingBox == *entry.InferenceBox
		entry.BoxesMatch = &match
		if !match {
			problem(errors.New("training and inference boxes differ"))
		}
	}

	if modelErr != nil {
		problem(modelErr)
		return entry
	}
	parts, err := model.Predict(inf.scaled.Image, inf.det.Box)
	if err != nil {
		problem(err)
		return entry
	}

	byID := make(map[int]landmarks.Point, len(entry.Annotations))
	for _, a := range entry.Annotations {
		byID[a.ID] = a
	}
	for _, lm := range p.restore(parts, inf.scaled, mapping) {
		check := LandmarkCheck{ID: lm.ID, Predicted: lm}
		if a, ok := byID[lm.ID]; ok {
			d := math.Hypot(float64(lm.X)-a.X, float64(lm.Y)-a.Y)
			check.Annotated = &a
			check.Error = &d
			check.OK = d < MatchTolerance
		}
		entry.Landmarks = append(entry.Landmarks, check)
	}
	return entry
}

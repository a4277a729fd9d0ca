package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/specimen-tools-mcp/internal/config"
	"github.com/ironsheep/specimen-tools-mcp/internal/detection"
	"github.com/ironsheep/specimen-tools-mcp/internal/fsutil"
	"github.com/ironsheep/specimen-tools-mcp/internal/imaging"
	"github.com/ironsheep/specimen-tools-mcp/internal/landmarks"
	"github.com/ironsheep/specimen-tools-mcp/internal/logging"
)

// ErrNoSamples means no label had a placed landmark.
var ErrNoSamples = errors.New("no valid images with landmarks found")

// Dimensions is a width and height pair.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BoxReport records the training box of one image.
type BoxReport struct {
	Filename           string           `json:"filename"`
	CorrectedPath      string           `json:"corrected_path"`
	Scale              float64          `json:"scale"`
	Box                detection.Box    `json:"box"`
	Method             detection.Method `json:"method"`
	Fallback           bool             `json:"fallback"`
	OriginalDimensions Dimensions       `json:"original_dimensions"`
}

// OrientationEntry records the canonicalization of one image.
type OrientationEntry struct {
	Filename string `json:"filename"`
	landmarks.Canonical
}

// OrientationReport summarizes canonicalization over the dataset.
type OrientationReport struct {
	TargetOrientation landmarks.Orientation `json:"target_orientation"`
	Images            []OrientationEntry    `json:"images"`
	Summary           struct {
		Total       int `json:"total"`
		Mirrored    int `json:"mirrored"`
		LeftFacing  int `json:"left_facing"`
		RightFacing int `json:"right_facing"`
	} `json:"summary"`
}

// SplitReport lists the images of each split.
type SplitReport struct {
	Train      int      `json:"train"`
	Test       int      `json:"test"`
	TrainFiles []string `json:"train_files"`
	TestFiles  []string `json:"test_files"`
}

// Result summarizes a Prepare run.
type Result struct {
	Tag          string   `json:"tag"`
	TrainXML     string   `json:"train_xml"`
	TestXML      string   `json:"test_xml"`
	IDMapping    string   `json:"id_mapping"`
	Train        int      `json:"train"`
	Test         int      `json:"test"`
	NumLandmarks int      `json:"num_landmarks"`
	ExcludedIDs  []int    `json:"excluded_ids"`
	Skipped      []string `json:"skipped,omitempty"`
}

type sample struct {
	filename string
	record   Record
	points   []landmarks.Point
	box      BoxReport
	orient   OrientationEntry
}

// Preparer builds datasets with one configuration.
type Preparer struct {
	cfg      config.Config
	detector *detection.Detector
	log      *logrus.Logger
}

// NewPreparer creates a Preparer. A nil logger discards output.
func NewPreparer(cfg config.Config, log *logrus.Logger) *Preparer {
	log = logging.OrDiscard(log)
	return &Preparer{cfg: cfg, detector: detection.New(cfg.Detection, log), log: log}
}

// Prepare converts the labels of the project at layout into train and test
// datasets tagged tag.
//
// # Algorithm
//
//  1. For every label, in parallel: load the photograph with EXIF
//     orientation applied, normalize it to Dataset.MaxDim, write it as a PNG
//     under corrected_images/, detect the specimen on that corrected image,
//     scale the placed landmarks by the same factor and canonicalize their
//     orientation
//  2. Intersect the landmark ids of all samples and drop the rest
//  3. Shuffle with Dataset.Seed and split by Dataset.TestSplit
//  4. Write both XML files, the id mapping and the debug reports
//
// A missing or undecodable photograph fails the whole run. Labels with no
// placed landmark are skipped. An empty id intersection returns
// landmarks.ErrNoCommonLandmarks.
func (p *Preparer) Prepare(ctx context.Context, layout Layout, tag string) (*Result, error) {
	if err := ValidateTag(tag); err != nil {
		return nil, err
	}
	dcfg := p.cfg.Dataset
	target, err := landmarks.ParseOrientation(dcfg.TargetOrientation)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{layout.XML(), layout.Corrected(), layout.Debug()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	paths, err := LabelPaths(layout)
	if err != nil {
		return nil, err
	}

	samples := make([]*sample, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, dcfg.Workers))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := p.prepareOne(layout, path, target)
			if err != nil {
				return err
			}
			samples[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Tag: tag}
	var kept []*sample
	var boxes []BoxReport
	orientation := OrientationReport{TargetOrientation: target}
	for _, s := range samples {
		boxes = append(boxes, s.box)
		if len(s.points) == 0 {
			res.Skipped = append(res.Skipped, s.filename)
			p.log.WithField("file", s.filename).Info("no placed landmarks, skipping")
			continue
		}
		kept = append(kept, s)
		orientation.Images = append(orientation.Images, s.orient)
		orientation.Summary.Total++
		if s.orient.WasMirrored {
			orientation.Summary.Mirrored++
		}
		switch s.orient.Original {
		case landmarks.Left:
			orientation.Summary.LeftFacing++
		case landmarks.Right:
			orientation.Summary.RightFacing++
		}
	}
	if len(kept) == 0 {
		return nil, ErrNoSamples
	}

	idSets := make([][]int, len(kept))
	for i, s := range kept {
		idSets[i] = landmarks.IDs(s.points)
	}
	mapping, err := landmarks.BuildIDMapping(idSets)
	if err != nil {
		return nil, err
	}
	mapping.TrainingConfig = landmarks.TrainingConfig{
		MaxDim:            dcfg.MaxDim,
		TestSplit:         dcfg.TestSplit,
		Seed:              dcfg.Seed,
		TargetOrientation: string(target),
	}
	if len(mapping.ExcludedIDs) > 0 {
		p.log.WithFields(logrus.Fields{
			"excluded": mapping.ExcludedIDs,
			"common":   mapping.OriginalIDs,
		}).Warn("landmark ids not placed in every image were excluded")
	}

	records := make([]Record, len(kept))
	for i, s := range kept {
		r := s.record
		for _, pt := range mapping.Keep(s.points) {
			idx, _ := mapping.Dense(pt.ID)
			r.Parts = append(r.Parts, Part{Index: idx, X: int(pt.X), Y: int(pt.Y)})
		}
		r.SortParts()
		records[i] = r
	}

	train, test := Split(records, dcfg.TestSplit, dcfg.Seed)

	res.TrainXML = layout.TrainXML(tag)
	res.TestXML = layout.TestXML(tag)
	res.IDMapping = layout.IDMapping(tag)
	res.Train, res.Test = len(train), len(test)
	res.NumLandmarks = mapping.NumLandmarks
	res.ExcludedIDs = mapping.ExcludedIDs

	if err := WriteXML(res.TrainXML, train); err != nil {
		return nil, err
	}
	if err := WriteXML(res.TestXML, test); err != nil {
		return nil, err
	}
	if err := mapping.Save(res.IDMapping); err != nil {
		return nil, err
	}

	split := SplitReport{Train: len(train), Test: len(test)}
	for _, r := range train {
		split.TrainFiles = append(split.TrainFiles, r.ImagePath)
	}
	for _, r := range test {
		split.TestFiles = append(split.TestFiles, r.ImagePath)
	}
	reports := map[string]any{
		"orientation":    orientation,
		"training_boxes": boxes,
		"split_info":     split,
	}
	for kind, v := range reports {
		if err := WriteReport(layout.Report(kind, tag), v); err != nil {
			return nil, err
		}
	}

	p.log.WithFields(logrus.Fields{
		"tag":       tag,
		"train":     res.Train,
		"test":      res.Test,
		"landmarks": res.NumLandmarks,
	}).Info("dataset prepared")
	return res, nil
}

func (p *Preparer) prepareOne(layout Layout, labelPath string, target landmarks.Orientation) (*sample, error) {
	label, err := ReadLabel(labelPath)
	if err != nil {
		return nil, err
	}

	loaded, err := imaging.Load(layout.Image(label.ImageFilename))
	if err != nil {
		return nil, err
	}
	scaled := imaging.Normalize(loaded.Image, p.cfg.Dataset.MaxDim)

	corrected := layout.CorrectedImage(label.ImageFilename)
	if err := imaging.SavePNG(corrected, scaled.Image); err != nil {
		return nil, err
	}

	det := p.detector.Detect(scaled.Image)
	log := p.log.WithFields(logrus.Fields{
		"file":   label.ImageFilename,
		"method": det.Method,
		"score":  det.Score,
		"factor": scaled.Factor,
	})
	log.Debug("training box detected")

	s := &sample{
		filename: label.ImageFilename,
		record:   Record{ImagePath: corrected, Box: det.Box},
		box: BoxReport{
			Filename:           label.ImageFilename,
			CorrectedPath:      corrected,
			Scale:              scaled.Factor,
			Box:                det.Box,
			Method:             det.Method,
			Fallback:           det.Fallback,
			OriginalDimensions: Dimensions{Width: loaded.Width, Height: loaded.Height},
		},
	}

	placed := landmarks.Placed(label.Points())
	if len(placed) == 0 {
		return s, nil
	}
	for i := range placed {
		placed[i] = placed[i].Scale(scaled.Factor)
	}

	canon := landmarks.Canonicalize(placed, float64(scaled.Width), p.cfg.Dataset.HeadLandmarkID, target)
	s.points = canon.Points
	s.orient = OrientationEntry{Filename: filepath.Base(label.ImageFilename), Canonical: canon}
	return s, nil
}

// WriteReport atomically writes v as indented JSON.
func WriteReport(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return fsutil.WriteFile(path, data)
}

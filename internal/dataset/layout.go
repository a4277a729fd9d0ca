package dataset

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Layout resolves the files of a project directory.
type Layout struct {
	Root string
}

// NewLayout returns the layout of the project at root.
func NewLayout(root string) (Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to resolve project root: %w", err)
	}
	return Layout{Root: abs}, nil
}

func (l Layout) Labels() string    { return filepath.Join(l.Root, "labels") }
func (l Layout) Images() string    { return filepath.Join(l.Root, "images") }
func (l Layout) Corrected() string { return filepath.Join(l.Root, "corrected_images") }
func (l Layout) XML() string       { return filepath.Join(l.Root, "xml") }
func (l Layout) Models() string    { return filepath.Join(l.Root, "models") }
func (l Layout) Debug() string     { return filepath.Join(l.Root, "debug") }

// TrainXML is xml/train_<tag>.xml.
func (l Layout) TrainXML(tag string) string {
	return filepath.Join(l.XML(), "train_"+tag+".xml")
}

// TestXML is xml/test_<tag>.xml.
func (l Layout) TestXML(tag string) string {
	return filepath.Join(l.XML(), "test_"+tag+".xml")
}

// Model is models/predictor_<tag>.json.
func (l Layout) Model(tag string) string {
	return filepath.Join(l.Models(), "predictor_"+tag+".json")
}

// IDMapping is debug/id_mapping_<tag>.json.
func (l Layout) IDMapping(tag string) string {
	return l.Report("id_mapping", tag)
}

// Report is debug/<kind>_<tag>.json.
func (l Layout) Report(kind, tag string) string {
	return filepath.Join(l.Debug(), kind+"_"+tag+".json")
}

// Image is the path of an original photograph.
func (l Layout) Image(filename string) string {
	return filepath.Join(l.Images(), filename)
}

// CorrectedImage is the normalized PNG written for filename.
func (l Layout) CorrectedImage(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return filepath.Join(l.Corrected(), base+".png")
}

// ValidateTag rejects tags that cannot be embedded in a file name.
func ValidateTag(tag string) error {
	if tag == "" {
		return fmt.Errorf("tag is required")
	}
	if strings.ContainsAny(tag, `/\`) || tag == "." || tag == ".." {
		return fmt.Errorf("invalid tag %q", tag)
	}
	return nil
}

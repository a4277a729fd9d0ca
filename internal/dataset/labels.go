package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/ironsheep/specimen-tools-mcp/internal/landmarks"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LabelBox groups the landmarks annotated inside one drawn box.
type LabelBox struct {
	Landmarks []landmarks.Point `json:"landmarks"`
}

// Label is one annotation file.
type Label struct {
	ImageFilename string            `json:"imageFilename"`
	Landmarks     []landmarks.Point `json:"landmarks,omitempty"`
	Boxes         []LabelBox        `json:"boxes,omitempty"`
}

// Points returns the annotated landmarks. When the file has boxes, the
// landmarks of every box are concatenated and the top-level list is ignored.
func (l *Label) Points() []landmarks.Point {
	if len(l.Boxes) == 0 {
		return l.Landmarks
	}
	var out []landmarks.Point
	for _, b := range l.Boxes {
		out = append(out, b.Landmarks...)
	}
	return out
}

// ReadLabel parses one annotation file.
func ReadLabel(path string) (*Label, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read label: %w", err)
	}
	var l Label
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse label %s: %w", path, err)
	}
	if l.ImageFilename == "" {
		return nil, fmt.Errorf("label %s has no imageFilename", path)
	}
	return &l, nil
}

// LabelPaths lists labels/*.json in sorted order. Every later ordering,
// including the train/test shuffle, starts from this order.
func LabelPaths(layout Layout) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(layout.Labels(), "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no JSON files in %s", layout.Labels())
	}
	sort.Strings(paths)
	return paths, nil
}

package landmarks

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/specimen-tools-mcp/internal/fsutil"
	"github.com/ironsheep/specimen-tools-mcp/internal/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoCommonLandmarks means no landmark id is placed in every sample, so no
// consistent schema exists to train on.
var ErrNoCommonLandmarks = errors.New("no common landmarks across all images")

// TrainingConfig records the preparation settings a mapping was built with.
type TrainingConfig struct {
	MaxDim            int     `json:"max_dim"`
	TestSplit         float64 `json:"test_split"`
	Seed              int64   `json:"seed"`
	TargetOrientation string  `json:"target_orientation"`
}

// IDMapping converts between annotator ids and dense model indices.
type IDMapping struct {
	DenseToOriginal map[int]int    `json:"dlib_to_original"`
	OriginalToDense map[int]int    `json:"original_to_dlib"`
	OriginalIDs     []int          `json:"original_ids"`
	ExcludedIDs     []int          `json:"excluded_ids"`
	NumLandmarks    int            `json:"num_landmarks"`
	TrainingConfig  TrainingConfig `json:"training_config"`

	// Identity is set when no mapping file existed and indices are used as ids.
	Identity bool `json:"-"`
}

// BuildIDMapping intersects the placed-id sets of all samples. Ids present in
// some samples but not all are reported in ExcludedIDs. The surviving ids are
// numbered 0..n-1 in ascending order.
func BuildIDMapping(idSets [][]int) (*IDMapping, error) {
	if len(idSets) == 0 {
		return nil, ErrNoCommonLandmarks
	}

	seen := make(map[int]int)
	for _, ids := range idSets {
		uniq := make(map[int]struct{}, len(ids))
		for _, id := range ids {
			uniq[id] = struct{}{}
		}
		for id := range uniq {
			seen[id]++
		}
	}

	common := make([]int, 0, len(seen))
	excluded := make([]int, 0)
	for id, n := range seen {
		if n == len(idSets) {
			common = append(common, id)
		} else {
			excluded = append(excluded, id)
		}
	}
	if len(common) == 0 {
		return nil, ErrNoCommonLandmarks
	}
	sort.Ints(common)
	sort.Ints(excluded)

	m := &IDMapping{
		DenseToOriginal: make(map[int]int, len(common)),
		OriginalToDense: make(map[int]int, len(common)),
		OriginalIDs:     common,
		ExcludedIDs:     excluded,
		NumLandmarks:    len(common),
	}
	for i, id := range common {
		m.DenseToOriginal[i] = id
		m.OriginalToDense[id] = i
	}
	return m, nil
}

// IDs returns the ids of the placed points of pts.
func IDs(pts []Point) []int {
	out := make([]int, 0, len(pts))
	for _, p := range pts {
		if p.Placed() {
			out = append(out, p.ID)
		}
	}
	return out
}

// Identity returns a mapping that passes indices through unchanged.
func Identity() *IDMapping {
	return &IDMapping{
		DenseToOriginal: map[int]int{},
		OriginalToDense: map[int]int{},
		OriginalIDs:     []int{},
		ExcludedIDs:     []int{},
		Identity:        true,
	}
}

// Restore maps a dense index back to the annotator's id. Indices the mapping
// does not know are returned unchanged.
func (m *IDMapping) Restore(dense int) int {
	if id, ok := m.DenseToOriginal[dense]; ok {
		return id
	}
	return dense
}

// Dense maps an annotator id to its dense index.
func (m *IDMapping) Dense(original int) (int, bool) {
	if m.Identity {
		return original, true
	}
	i, ok := m.OriginalToDense[original]
	return i, ok
}

// Keep returns the placed points of pts whose id is in the mapping.
func (m *IDMapping) Keep(pts []Point) []Point {
	out := make([]Point, 0, len(pts))
	for _, p := range pts {
		if !p.Placed() {
			continue
		}
		if _, ok := m.Dense(p.ID); ok {
			out = append(out, p)
		}
	}
	return out
}

// Save writes the mapping as indented JSON, atomically.
func (m *IDMapping) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode id mapping: %w", err)
	}
	return fsutil.WriteFile(path, data)
}

// LoadIDMapping reads a mapping written by Save. A missing file is not an
// error: predictions then keep their dense indices, and the identity mapping
// is returned with a warning.
func LoadIDMapping(path string, log *logrus.Logger) (*IDMapping, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.OrDiscard(log).WithField("path", path).Warn("id mapping not found, landmark ids will be dense indices")
		return Identity(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read id mapping: %w", err)
	}

	var m IDMapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode id mapping %s: %w", path, err)
	}
	if m.DenseToOriginal == nil {
		m.DenseToOriginal = map[int]int{}
	}
	if m.OriginalToDense == nil {
		m.OriginalToDense = make(map[int]int, len(m.DenseToOriginal))
		for dense, id := range m.DenseToOriginal {
			m.OriginalToDense[id] = dense
		}
	}
	return &m, nil
}

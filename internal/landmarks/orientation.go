package landmarks

import "fmt"

// Point is one annotated landmark.
type Point struct {
	ID      int     `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Skipped bool    `json:"isSkipped,omitempty"`
}

// Placed reports whether p has usable coordinates.
func (p Point) Placed() bool {
	return !p.Skipped && p.X >= 0 && p.Y >= 0
}

// Scale returns p with placed coordinates multiplied by factor.
func (p Point) Scale(factor float64) Point {
	if p.Placed() {
		p.X *= factor
		p.Y *= factor
	}
	return p
}

// Orientation is the side of the image the specimen's head faces.
type Orientation string

const (
	Left    Orientation = "left"
	Right   Orientation = "right"
	Unknown Orientation = "unknown"
)

// ParseOrientation accepts "left" or "right".
func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(s); o {
	case Left, Right:
		return o, nil
	}
	return Unknown, fmt.Errorf("invalid orientation %q: want left or right", s)
}

// Placed returns the placed points of pts, in order.
func Placed(pts []Point) []Point {
	out := make([]Point, 0, len(pts))
	for _, p := range pts {
		if p.Placed() {
			out = append(out, p)
		}
	}
	return out
}

// DetectOrientation compares the head landmark's X with the centroid X of the
// other placed landmarks. The result is Unknown with fewer than two placed
// points, with no placed head, or with no placed point besides the head.
func DetectOrientation(pts []Point, headID int) Orientation {
	placed := Placed(pts)
	if len(placed) < 2 {
		return Unknown
	}

	var head *Point
	var sum float64
	var n int
	for i := range placed {
		if placed[i].ID == headID {
			if head == nil {
				head = &placed[i]
			}
			continue
		}
		sum += placed[i].X
		n++
	}
	if head == nil || n == 0 {
		return Unknown
	}

	if head.X < sum/float64(n) {
		return Left
	}
	return Right
}

// Mirror flips placed points horizontally about an image of the given width
// (X becomes width-X). Unplaced points are copied unchanged. Mirror applied
// twice returns the input.
func Mirror(pts []Point, width float64) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		if p.Placed() {
			p.X = width - p.X
		}
		out[i] = p
	}
	return out
}

// Canonical is the outcome of Canonicalize for one sample.
type Canonical struct {
	Points      []Point     `json:"-"`
	Original    Orientation `json:"original_orientation"`
	Target      Orientation `json:"target_orientation"`
	WasMirrored bool        `json:"was_mirrored"`
}

// Canonicalize mirrors pts when their orientation is known and differs from
// target. Samples of unknown orientation are left as they are.
func Canonicalize(pts []Point, width float64, headID int, target Orientation) Canonical {
	orig := DetectOrientation(pts, headID)
	c := Canonical{Points: pts, Original: orig, Target: target}
	if orig != Unknown && orig != target {
		c.Points = Mirror(pts, width)
		c.WasMirrored = true
	}
	return c
}

package detection

import (
	"fmt"
	"image"

	"github.com/ironsheep/specimen-tools-mcp/internal/imaging"
)

// WorkingBox is a bounding box in working-resolution pixel space, the space
// the candidate strategies run in. It cannot be used as an output box; the
// only way to obtain a Box from it is Rescale.
//
// Left and Top are inclusive, Right and Bottom exclusive.
type WorkingBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width is Right - Left.
func (b WorkingBox) Width() int { return b.Right - b.Left }

// Height is Bottom - Top.
func (b WorkingBox) Height() int { return b.Bottom - b.Top }

// Area is Width * Height.
func (b WorkingBox) Area() int { return b.Width() * b.Height() }

// Center returns the integer center, truncating like the scorer expects.
func (b WorkingBox) Center() (int, int) {
	return b.Left + b.Width()/2, b.Top + b.Height()/2
}

func workingBoxFromRect(r image.Rectangle) WorkingBox {
	return WorkingBox{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y}
}

// Box is a bounding box in original image pixel space (after EXIF
// orientation). After Rescale it satisfies
// 0 <= Left < Right <= width and 0 <= Top < Bottom <= height.
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width is Right - Left.
func (b Box) Width() int { return b.Right - b.Left }

// Height is Bottom - Top.
func (b Box) Height() int { return b.Bottom - b.Top }

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Valid reports whether the box is non-empty and inside a width x height image.
func (b Box) Valid(width, height int) bool {
	return b.Left >= 0 && b.Top >= 0 && b.Left < b.Right && b.Top < b.Bottom &&
		b.Right <= width && b.Bottom <= height
}

func (b Box) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", b.Left, b.Top, b.Right, b.Bottom)
}

// Rescale maps a working-space box to original pixel space using the factor
// recorded in s, grows it by margin pixels on every side and clamps it to the
// original image.
//
// Origin and extent are mapped separately and truncated toward zero:
// left = int(Left/f), width = int(Width/f), right = left + width.
func Rescale(b WorkingBox, s imaging.Scaled, margin int) Box {
	x := s.ToOriginal(b.Left)
	y := s.ToOriginal(b.Top)
	w := max(s.ToOriginal(b.Width()), 1)
	h := max(s.ToOriginal(b.Height()), 1)

	out := Box{
		Left:   max(0, x-margin),
		Top:    max(0, y-margin),
		Right:  min(s.OrigWidth, x+w+margin),
		Bottom: min(s.OrigHeight, y+h+margin),
	}
	// Degenerate input at the far edge still yields a one pixel box.
	if out.Left >= out.Right {
		out.Left = max(0, out.Right-1)
	}
	if out.Top >= out.Bottom {
		out.Top = max(0, out.Bottom-1)
	}
	return out
}

// FallbackBox is the deterministic center crop used when no candidate is
// confident enough: inset*width trimmed from the left and right, inset*height
// from the top and bottom, of the original image.
func FallbackBox(width, height int, inset float64) Box {
	mx := int(float64(width) * inset)
	my := int(float64(height) * inset)
	return Box{Left: mx, Top: my, Right: width - mx, Bottom: height - my}
}

// IoU is the intersection-over-union of two working boxes, 0 when they do
// not overlap.
func IoU(a, b WorkingBox) float64 {
	x1, y1 := max(a.Left, b.Left), max(a.Top, b.Top)
	x2, y2 := min(a.Right, b.Right), min(a.Bottom, b.Bottom)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	inter := (x2 - x1) * (y2 - y1)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// ToSource maps a box found on the normalized image s.Image back to the pixels
// of the image s was made from. No margin is added; the result is clamped.
func ToSource(b Box, s imaging.Scaled) Box {
	return Box{
		Left:   min(s.ToOriginal(b.Left), s.OrigWidth),
		Top:    min(s.ToOriginal(b.Top), s.OrigHeight),
		Right:  min(s.ToOriginal(b.Right), s.OrigWidth),
		Bottom: min(s.ToOriginal(b.Bottom), s.OrigHeight),
	}
}

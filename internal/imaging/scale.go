package imaging

import (
	"image"

	"github.com/disintegration/imaging"
)

// Scaled is an image bounded to a working resolution together with the factor
// that produced it.
//
// Factor is the single source of truth for mapping working-space coordinates
// back to the source image: every rescale reads it from here and nothing
// recomputes it from dimensions.
type Scaled struct {
	Image      image.Image
	Factor     float64
	Width      int
	Height     int
	OrigWidth  int
	OrigHeight int
}

// Normalize bounds img to maxDim on its longest side.
//
// When max(width, height) > maxDim the image is downsampled by
// factor = maxDim / max(width, height) using area averaging (box filter) to
// (int(width*factor), int(height*factor)). Otherwise the source image is
// returned as-is with Factor exactly 1.0.
func Normalize(img image.Image, maxDim int) Scaled {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}

	if maxDim <= 0 || longest <= maxDim {
		return Scaled{Image: img, Factor: 1.0, Width: w, Height: h, OrigWidth: w, OrigHeight: h}
	}

	factor := float64(maxDim) / float64(longest)
	nw := int(float64(w) * factor)
	nh := int(float64(h) * factor)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	return Scaled{
		Image:      imaging.Resize(img, nw, nh, imaging.Box),
		Factor:     factor,
		Width:      nw,
		Height:     nh,
		OrigWidth:  w,
		OrigHeight: h,
	}
}

// IsIdentity reports whether no resampling happened.
func (s Scaled) IsIdentity() bool {
	return s.Factor == 1.0
}

// ToOriginal maps a working-space coordinate to the source image by dividing
// by Factor and truncating toward zero.
func (s Scaled) ToOriginal(v int) int {
	if s.Factor == 1.0 {
		return v
	}
	return int(float64(v) / s.Factor)
}

// ToOriginalPoint maps a working-space point to the source image without
// truncation; landmark predictions keep sub-pixel precision.
func (s Scaled) ToOriginalPoint(x, y float64) (float64, float64) {
	if s.Factor == 1.0 {
		return x, y
	}
	return x / s.Factor, y / s.Factor
}

// ToWorkingPoint maps a source-image point into working space.
func (s Scaled) ToWorkingPoint(x, y float64) (float64, float64) {
	if s.Factor == 1.0 {
		return x, y
	}
	return x * s.Factor, y * s.Factor
}

package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/convolution"
)

// Morphology on binary masks. size is the structuring element side length
// (3 or 5 in the detectors); the element is centred, so radius = size/2.
// n iterations of a square element equal one pass of radius n*(size/2), so
// every call is a single pass.
//
// A pass is two unnormalized box convolutions (a row then a column of ones).
// bild clamps the weighted sum to 255, so any set neighbour saturates the
// output and an all-zero window stays zero: the sum is the window maximum.
// Borders are edge-extended, matching bild's own morphology filters.

// Dilate grows the foreground of mask.
func Dilate(mask *image.Gray, size, iterations int) *image.Gray {
	r := iterations * (size / 2)
	if r <= 0 {
		return cloneMask(mask)
	}
	return maxFilter(mask, r)
}

// Erode shrinks the foreground of mask. It is the dilation of the background.
func Erode(mask *image.Gray, size, iterations int) *image.Gray {
	r := iterations * (size / 2)
	if r <= 0 {
		return cloneMask(mask)
	}
	return invertMask(maxFilter(invertMask(mask), r))
}

// Close fills gaps narrower than the element.
func Close(mask *image.Gray, size int) *image.Gray {
	return Erode(Dilate(mask, size, 1), size, 1)
}

// Open removes specks smaller than the element.
func Open(mask *image.Gray, size int) *image.Gray {
	return Dilate(Erode(mask, size, 1), size, 1)
}

func maxFilter(mask *image.Gray, r int) *image.Gray {
	n := 2*r + 1
	row := onesKernel(n, 1)
	col := onesKernel(1, n)
	opts := &convolution.Options{}

	out := convolution.Convolve(mask, row, opts)
	out = convolution.Convolve(out, col, opts)
	return rgbaToMask(out)
}

func onesKernel(w, h int) *convolution.Kernel {
	k := convolution.NewKernel(w, h)
	for i := range k.Matrix {
		k.Matrix[i] = 1
	}
	return k
}

func rgbaToMask(img *image.RGBA) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			if src[x*4] > 0 {
				dst[x] = 255
			}
		}
	}
	return out
}

func invertMask(mask *image.Gray) *image.Gray {
	b := mask.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := mask.Pix[y*mask.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			if src[x] == 0 {
				dst[x] = 255
			}
		}
	}
	return out
}

func cloneMask(mask *image.Gray) *image.Gray {
	b := mask.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], mask.Pix[y*mask.Stride:])
	}
	return out
}

package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/convolution"
)

// Grayscale converts img to an 8-bit luminance plane using ITU-R BT.601
// weights in fixed point (0.299 R + 0.587 G + 0.114 B, rounded).
//
// The result always has bounds starting at (0,0) so callers can index Pix
// as y*Stride + x.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	gray := image.NewGray(image.Rect(0, 0, w, h))

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X)*4:]
			out := gray.Pix[y*gray.Stride:]
			for x := 0; x < w; x++ {
				out[x] = luma(row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			copy(gray.Pix[y*gray.Stride:y*gray.Stride+w], src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X):])
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBAModel.Convert(img.At(x+b.Min.X, y+b.Min.Y)).(color.NRGBA)
				gray.Pix[y*gray.Stride+x] = luma(c.R, c.G, c.B)
			}
		}
	}
	return gray
}

// luma uses the 14-bit fixed-point BT.601 coefficients (4899, 9617, 1868).
func luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*4899 + uint32(g)*9617 + uint32(b)*1868 + 8192) >> 14)
}

// GaussianBlur5 applies a 5x5 Gaussian blur (sigma ≈ 1.0) with replicated
// borders.
//
// Kernel (sum 273):
//
//	1  4  7  4  1
//	4 16 26 16  4
//	7 26 41 26  7
//	4 16 26 16  4
//	1  4  7  4  1
func GaussianBlur5(src *image.Gray) *image.Gray {
	kernel := [5][5]int{
		{1, 4, 7, 4, 1},
		{4, 16, 26, 16, 4},
		{7, 26, 41, 26, 7},
		{4, 16, 26, 16, 4},
		{1, 4, 7, 4, 1},
	}
	const kernelSum = 273

	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for ky := -2; ky <= 2; ky++ {
				py := clamp(y+ky, 0, h-1)
				for kx := -2; kx <= 2; kx++ {
					px := clamp(x+kx, 0, w-1)
					sum += int(src.Pix[py*src.Stride+px]) * kernel[ky+2][kx+2]
				}
			}
			dst.Pix[y*dst.Stride+x] = uint8((sum + kernelSum/2) / kernelSum)
		}
	}
	return dst
}

// gaussianKernel returns a normalized 1-D Gaussian of the given odd size. A
// non-positive sigma is derived from size the same way common vision
// libraries do: 0.3*((size-1)*0.5 - 1) + 0.8.
func gaussianKernel(size int, sigma float64) []float64 {
	if sigma <= 0 {
		sigma = 0.3*(float64(size-1)*0.5-1) + 0.8
	}
	k := make([]float64, size)
	half := size / 2
	var sum float64
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// GaussianBlur blurs gray with a size x size Gaussian as a row pass then a
// column pass. Each pass rounds to 8 bits, as an 8-bit blur in a vision
// library does.
func GaussianBlur(gray *image.Gray, size int, sigma float64) *image.Gray {
	k := gaussianKernel(size, sigma)
	row := convolution.NewKernel(size, 1)
	col := convolution.NewKernel(1, size)
	copy(row.Matrix, k)
	copy(col.Matrix, k)
	opts := &convolution.Options{Bias: 0.5, KeepAlpha: true}

	out := convolution.Convolve(gray, row, opts)
	out = convolution.Convolve(out, col, opts)
	return redPlane(out)
}

// redPlane copies the red channel of a gray-valued RGBA image.
func redPlane(img *image.RGBA) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst[x] = src[x*4]
		}
	}
	return out
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

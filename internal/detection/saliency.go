package detection

import (
	"image"
	"math"
	"math/cmplx"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/dsp/fourier"

	imgproc "github.com/ironsheep/specimen-tools-mcp/internal/imaging"
)

// saliencySize is the side of the square plane the spectrum is computed on.
const saliencySize = 64

// SpectralResidual computes a spectral-residual saliency map of img, scaled
// to img's size, with values stretched to 0-255.
//
// # Algorithm
//
//  1. Grayscale and resize to 64x64
//  2. 2-D FFT; log amplitude and phase
//  3. Residual = log amplitude minus its 3x3 box average
//  4. Inverse FFT of exp(residual + i*phase), squared magnitude
//  5. Gaussian smoothing, min-max stretch, resize back
//
// A flat input has no salient structure and yields an all-zero map.
func SpectralResidual(img image.Image) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))

	small := imgproc.Grayscale(imaging.Resize(imgproc.Grayscale(img), saliencySize, saliencySize, imaging.Linear))
	const n = saliencySize
	plane := make([]complex128, n*n)
	lo, hi := uint8(255), uint8(0)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v := small.Pix[y*small.Stride+x]
			lo, hi = min(lo, v), max(hi, v)
			plane[y*n+x] = complex(float64(v)/255, 0)
		}
	}
	if lo == hi {
		return out
	}

	fft := fourier.NewCmplxFFT(n)
	fft2D(fft, plane, n, false)

	logAmp := make([]float64, n*n)
	phase := make([]float64, n*n)
	for i, c := range plane {
		logAmp[i] = math.Log(cmplx.Abs(c) + 1e-12)
		phase[i] = cmplx.Phase(c)
	}
	avg := boxMean3(logAmp, n)
	for i := range plane {
		plane[i] = cmplx.Rect(math.Exp(logAmp[i]-avg[i]), phase[i])
	}

	fft2D(fft, plane, n, true)

	energy := make([]float64, n*n)
	var peak float64
	floor := math.Inf(1)
	for i, c := range plane {
		a := cmplx.Abs(c)
		energy[i] = a * a
		peak = math.Max(peak, energy[i])
		floor = math.Min(floor, energy[i])
	}
	if peak-floor <= 0 || math.IsNaN(peak) {
		return out
	}

	sal := image.NewGray(image.Rect(0, 0, n, n))
	for i, e := range energy {
		sal.Pix[i] = uint8(math.Round(255 * (e - floor) / (peak - floor)))
	}
	smoothed := blur.Gaussian(sal, 2)
	full := imaging.Resize(smoothed, w, h, imaging.Linear)

	return stretch(imgproc.Grayscale(full))
}

// fft2D transforms plane (n x n, row-major) in place along rows then columns.
func fft2D(fft *fourier.CmplxFFT, plane []complex128, n int, inverse bool) {
	buf := make([]complex128, n)
	apply := func(dst, src []complex128) []complex128 {
		if inverse {
			return fft.Sequence(dst, src)
		}
		return fft.Coefficients(dst, src)
	}
	for y := 0; y < n; y++ {
		row := plane[y*n : (y+1)*n]
		copy(row, apply(buf, row))
	}
	col := make([]complex128, n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = plane[y*n+x]
		}
		res := apply(buf, col)
		for y := 0; y < n; y++ {
			plane[y*n+x] = res[y]
		}
	}
}

// boxMean3 averages every value with its 3x3 neighbourhood, replicating edges.
func boxMean3(src []float64, n int) []float64 {
	dst := make([]float64, len(src))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			var s float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					yy := min(max(y+dy, 0), n-1)
					xx := min(max(x+dx, 0), n-1)
					s += src[yy*n+xx]
				}
			}
			dst[y*n+x] = s / 9
		}
	}
	return dst
}

// stretch maps the value range of g onto 0-255 in place.
func stretch(g *image.Gray) *image.Gray {
	lo, hi := uint8(255), uint8(0)
	for _, v := range g.Pix {
		lo, hi = min(lo, v), max(hi, v)
	}
	if hi <= lo {
		return g
	}
	span := float64(hi - lo)
	for i, v := range g.Pix {
		g.Pix[i] = uint8(math.Round(255 * float64(v-lo) / span))
	}
	return g
}

package imaging

import (
	"image"
	"math"
)

// Canny runs Canny edge detection on an already smoothed grayscale plane and
// returns a binary mask where edge pixels are 255.
//
// Parameters:
//   - gray: 8-bit luminance, typically the output of GaussianBlur5.
//   - thresholdLow: weak-edge gradient threshold (0-255 scale).
//   - thresholdHigh: strong-edge gradient threshold (0-255 scale).
//
// # Algorithm
//
//  1. Gradient: 3x3 Sobel, magnitude = |Gx| + |Gy|
//  2. Non-maximum suppression along the quantized gradient direction
//  3. Hysteresis: strong pixels seed a flood through 8-connected weak pixels
//
// Border pixels are never edges.
func Canny(gray *image.Gray, thresholdLow, thresholdHigh int) *image.Gray {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w < 3 || h < 3 {
		return out
	}

	magnitude := make([]float64, w*h)
	direction := make([]float64, w*h)
	at := func(x, y int) float64 {
		return float64(gray.Pix[clamp(y, 0, h-1)*gray.Stride+clamp(x, 0, w-1)])
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := -at(x-1, y-1) + at(x+1, y-1) -
				2*at(x-1, y) + 2*at(x+1, y) -
				at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			magnitude[y*w+x] = math.Abs(gx) + math.Abs(gy)
			direction[y*w+x] = math.Atan2(gy, gx)
		}
	}

	// Non-maximum suppression
	suppressed := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			angle := direction[i]
			mag := magnitude[i]

			var n1, n2 float64
			if (angle >= -math.Pi/8 && angle < math.Pi/8) || (angle >= 7*math.Pi/8 || angle < -7*math.Pi/8) {
				n1 = magnitude[i-1]
				n2 = magnitude[i+1]
			} else if (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8) {
				n1 = magnitude[i-w-1]
				n2 = magnitude[i+w+1]
			} else if (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8) {
				n1 = magnitude[i-w]
				n2 = magnitude[i+w]
			} else {
				n1 = magnitude[i-w+1]
				n2 = magnitude[i+w-1]
			}

			if mag > n1 && mag >= n2 {
				suppressed[i] = mag
			}
		}
	}

	// Hysteresis
	low := float64(thresholdLow)
	high := float64(thresholdHigh)
	stack := make([]int, 0, 1024)
	for i, v := range suppressed {
		if v > high && out.Pix[i/w*out.Stride+i%w] == 0 {
			out.Pix[i/w*out.Stride+i%w] = 255
			stack = append(stack, i)
		}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%w, p/w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := px+dx, py+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					j := ny*w + nx
					if suppressed[j] > low && out.Pix[ny*out.Stride+nx] == 0 {
						out.Pix[ny*out.Stride+nx] = 255
						stack = append(stack, j)
					}
				}
			}
		}
	}

	return out
}

package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/segment"
)

// OtsuLevel returns the global threshold that maximizes the between-class
// variance of the histogram of gray. Pixels <= level form the dark class.
//
// A constant image has no bimodal split; its single value is returned.
func OtsuLevel(gray *image.Gray) uint8 {
	var hist [256]int
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for _, v := range row {
			hist[v]++
		}
	}
	total := w * h
	if total == 0 {
		return 0
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}

	var (
		sumB     float64
		wB       int
		best     float64
		level    int
		found    bool
		constant = -1
	)
	for t := 0; t < 256; t++ {
		if hist[t] == total {
			constant = t
		}
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if !found || between > best {
			best = between
			level = t
			found = true
		}
	}
	if constant >= 0 {
		return uint8(constant)
	}
	return uint8(level)
}

// Binary returns a mask with 255 where gray > level and 0 elsewhere.
func Binary(gray *image.Gray, level uint8) *image.Gray {
	if level == 255 {
		return image.NewGray(image.Rect(0, 0, gray.Rect.Dx(), gray.Rect.Dy()))
	}
	// segment.Threshold keeps values >= its level.
	return normalizeMask(segment.Threshold(gray, level+1))
}

// Invert flips a binary mask in place and returns it.
func Invert(mask *image.Gray) *image.Gray {
	for i, v := range mask.Pix {
		mask.Pix[i] = 255 - v
	}
	return mask
}

// Otsu thresholds gray at its Otsu level. With inverted set, dark pixels
// become foreground (a specimen on a bright background).
func Otsu(gray *image.Gray, inverted bool) *image.Gray {
	mask := Binary(gray, OtsuLevel(gray))
	if inverted {
		return Invert(mask)
	}
	return mask
}

// AdaptiveGaussianInv thresholds each pixel against a Gaussian-weighted mean
// of its blockSize x blockSize neighbourhood minus c. Pixels at or below
// that local threshold become foreground (255). An even blockSize is widened
// by one; sigma follows from the block size.
func AdaptiveGaussianInv(gray *image.Gray, blockSize int, c float64) *image.Gray {
	if blockSize%2 == 0 {
		blockSize++
	}
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	mean := GaussianBlur(gray, blockSize, 0)

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := gray.Pix[y*gray.Stride:]
		avg := mean.Pix[y*mean.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			if float64(src[x]) <= float64(avg[x])-c {
				dst[x] = 255
			}
		}
	}
	return out
}

// normalizeMask forces a mask to origin (0,0) and strict 0/255 values.
func normalizeMask(m *image.Gray) *image.Gray {
	w, h := m.Rect.Dx(), m.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := m.Pix[y*m.Stride : y*m.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x, v := range src {
			if v != 0 {
				dst[x] = 255
			}
		}
	}
	return out
}

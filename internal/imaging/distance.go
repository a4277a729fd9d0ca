package imaging

import (
	"image"
	"math"
)

// DistanceTransform returns, for every foreground pixel of mask, the exact
// Euclidean distance to the nearest background pixel (0 for background). It
// also returns the largest distance found.
//
// A mask with no background pixel has no defined distance; the result is all
// zeros.
//
// Uses the two-pass lower-envelope algorithm of Felzenszwalb and Huttenlocher
// on squared distances.
func DistanceTransform(mask *image.Gray) ([]float64, float64) {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	dist := make([]float64, w*h)
	if w == 0 || h == 0 {
		return dist, 0
	}

	const inf = 1e20
	hasBackground := false
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.Pix[y*mask.Stride+x] == 0 {
				hasBackground = true
			} else {
				dist[y*w+x] = inf
			}
		}
	}
	if !hasBackground {
		for i := range dist {
			dist[i] = 0
		}
		return dist, 0
	}

	n := max(w, h)
	f := make([]float64, n)
	d := make([]float64, n)
	v := make([]int, n)
	z := make([]float64, n+1)

	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			f[y] = dist[y*w+x]
		}
		edt1D(f[:h], d[:h], v, z)
		for y := 0; y < h; y++ {
			dist[y*w+x] = d[y]
		}
	}
	for y := 0; y < h; y++ {
		copy(f[:w], dist[y*w:(y+1)*w])
		edt1D(f[:w], d[:w], v, z)
		copy(dist[y*w:(y+1)*w], d[:w])
	}

	var peak float64
	for i, sq := range dist {
		dist[i] = math.Sqrt(sq)
		if dist[i] > peak {
			peak = dist[i]
		}
	}
	return dist, peak
}

func edt1D(f, d []float64, v []int, z []float64) {
	n := len(f)
	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		s := ((f[q] + float64(q*q)) - (f[v[k]] + float64(v[k]*v[k]))) / float64(2*q-2*v[k])
		for s <= z[k] {
			k--
			s = ((f[q] + float64(q*q)) - (f[v[k]] + float64(v[k]*v[k]))) / float64(2*q-2*v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}
	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		diff := float64(q - v[k])
		d[q] = diff*diff + f[v[k]]
	}
}

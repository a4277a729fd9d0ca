package detection

import (
	"image"
	"math"
	"math/rand"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	imgproc "github.com/ironsheep/specimen-tools-mcp/internal/imaging"
)

const (
	kmeansIterations = 10
	kmeansAttempts   = 3
	kmeansEpsilon    = 1.0

	// kmeansMaxSamples bounds the pixels used to fit centers; every pixel is
	// still assigned to its nearest center afterwards.
	kmeansMaxSamples = 60000
)

type labColor [3]float64

func (a labColor) dist2(b labColor) float64 {
	d0, d1, d2 := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return d0*d0 + d1*d1 + d2*d2
}

// labPixels converts img to CIE-Lab triples scaled to roughly 0-255 per
// channel, row-major.
func labPixels(img image.Image) ([]labColor, int, int) {
	src := imaging.Clone(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := make([]labColor, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			c := colorful.Color{
				R: float64(row[x*4]) / 255,
				G: float64(row[x*4+1]) / 255,
				B: float64(row[x*4+2]) / 255,
			}
			l, a, b := c.Lab()
			out[y*w+x] = labColor{l * 255, a * 255, b * 255}
		}
	}
	return out, w, h
}

// kmeansClusters partitions the pixels of img into k colour clusters and
// returns a label plane (0..k-1, row-major).
//
// Centers are seeded with k-means++ from seed, refined for up to
// kmeansIterations rounds or until no center moves by kmeansEpsilon, and the
// most compact of kmeansAttempts runs is kept.
func kmeansClusters(img image.Image, k int, seed int64) ([]int32, int, int) {
	pixels, w, h := labPixels(img)
	if len(pixels) == 0 || k < 1 {
		return nil, w, h
	}

	stride := max(1, len(pixels)/kmeansMaxSamples)
	samples := make([]labColor, 0, len(pixels)/stride+1)
	for i := 0; i < len(pixels); i += stride {
		samples = append(samples, pixels[i])
	}
	k = min(k, len(samples))

	rng := rand.New(rand.NewSource(seed))
	var best []labColor
	bestCompactness := math.Inf(1)
	for attempt := 0; attempt < kmeansAttempts; attempt++ {
		centers := kmeansPlusPlus(samples, k, rng)
		compactness := lloyd(samples, centers)
		if compactness < bestCompactness {
			bestCompactness = compactness
			best = centers
		}
	}

	labels := make([]int32, len(pixels))
	for i, p := range pixels {
		labels[i] = int32(nearest(p, best))
	}
	return labels, w, h
}

func kmeansPlusPlus(samples []labColor, k int, rng *rand.Rand) []labColor {
	centers := make([]labColor, 0, k)
	centers = append(centers, samples[rng.Intn(len(samples))])

	d2 := make([]float64, len(samples))
	for i, s := range samples {
		d2[i] = s.dist2(centers[0])
	}
	for len(centers) < k {
		var total float64
		for _, d := range d2 {
			total += d
		}
		pick := len(samples) - 1
		if total > 0 {
			r := rng.Float64() * total
			for i, d := range d2 {
				r -= d
				if r <= 0 {
					pick = i
					break
				}
			}
		} else {
			pick = rng.Intn(len(samples))
		}
		c := samples[pick]
		centers = append(centers, c)
		for i, s := range samples {
			d2[i] = math.Min(d2[i], s.dist2(c))
		}
	}
	return centers
}

// lloyd refines centers in place and returns the final compactness (sum of
// squared distances to the assigned centers).
func lloyd(samples []labColor, centers []labColor) float64 {
	k := len(centers)
	sums := make([]labColor, k)
	counts := make([]int, k)
	assign := make([]int, len(samples))

	for iter := 0; iter < kmeansIterations; iter++ {
		for i := range sums {
			sums[i] = labColor{}
			counts[i] = 0
		}
		for i, s := range samples {
			c := nearest(s, centers)
			assign[i] = c
			sums[c][0] += s[0]
			sums[c][1] += s[1]
			sums[c][2] += s[2]
			counts[c]++
		}
		moved := 0.0
		for c := range centers {
			if counts[c] == 0 {
				continue
			}
			n := float64(counts[c])
			next := labColor{sums[c][0] / n, sums[c][1] / n, sums[c][2] / n}
			moved = math.Max(moved, next.dist2(centers[c]))
			centers[c] = next
		}
		if moved < kmeansEpsilon*kmeansEpsilon {
			break
		}
	}

	var compactness float64
	for i, s := range samples {
		assign[i] = nearest(s, centers)
		compactness += s.dist2(centers[assign[i]])
	}
	return compactness
}

func nearest(p labColor, centers []labColor) int {
	best, bestD := 0, math.Inf(1)
	for i, c := range centers {
		if d := p.dist2(c); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// kmeansRegions clusters img into k colours and returns the external regions
// of every cluster whose pixel count lies within [minArea, maxClusterArea].
func kmeansRegions(img image.Image, k int, seed int64, minArea, maxClusterArea float64) []imgproc.Region {
	labels, w, h := kmeansClusters(img, k, seed)
	if labels == nil {
		return nil
	}

	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}

	var out []imgproc.Region
	for c := 0; c < k; c++ {
		n := float64(counts[c])
		if n > maxClusterArea || n < minArea {
			continue
		}
		mask := image.NewGray(image.Rect(0, 0, w, h))
		for i, l := range labels {
			if int(l) == c {
				mask.Pix[i] = 255
			}
		}
		out = append(out, imgproc.ExternalRegions(mask)...)
	}
	return out
}

package detection

import (
	"image"

	"github.com/ironsheep/specimen-tools-mcp/internal/imaging"
)

const (
	wshedBoundary int32 = -1
	wshedInQueue  int32 = -2
)

// watershedRegions splits touching blobs of a binary mask and returns one set
// of external regions per resulting label.
//
// # Algorithm
//
//  1. Euclidean distance transform of the mask
//  2. Sure foreground: pixels farther than seedRatio*max from background
//  3. Sure background complement: the mask dilated 3 times with a 3x3 element
//  4. Markers: seed components labelled from 2, outside the dilated mask 1,
//     the band in between 0 (unknown)
//  5. Priority flood from the markers over the unknown band
//
// Regions are returned in label order.
func watershedRegions(mask *image.Gray, seedRatio float64) []imaging.Region {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	dist, peak := imaging.DistanceTransform(mask)
	if peak == 0 {
		return nil
	}

	seeds := image.NewGray(image.Rect(0, 0, w, h))
	cut := seedRatio * peak
	for i, d := range dist {
		if d > cut {
			seeds.Pix[(i/w)*seeds.Stride+i%w] = 255
		}
	}
	sureBg := imaging.Dilate(mask, 3, 3)

	markers, n := componentLabels(seeds)
	if n == 0 {
		return nil
	}
	for i := range markers {
		if markers[i] > 0 {
			markers[i]++
			continue
		}
		if sureBg.Pix[(i/w)*sureBg.Stride+i%w] != 0 {
			markers[i] = 0
		} else {
			markers[i] = 1
		}
	}

	flood(markers, mask, w, h)

	for i, m := range markers {
		if m < 2 {
			markers[i] = 0
		}
	}
	bounds, keys := imaging.LabelBounds(markers, w, h)
	byLabel := imaging.LabelRegions(markers, w, bounds, keys)

	var out []imaging.Region
	for _, l := range keys {
		out = append(out, byLabel[l]...)
	}
	return out
}

// componentLabels labels the 8-connected foreground components of mask from
// 1 in raster order. Background is 0.
func componentLabels(mask *image.Gray) ([]int32, int) {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	labels := make([]int32, w*h)
	var next int32
	stack := make([]int, 0, 256)
	for i := range labels {
		x, y := i%w, i/w
		if labels[i] != 0 || mask.Pix[y*mask.Stride+x] == 0 {
			continue
		}
		next++
		labels[i] = next
		stack = append(stack[:0], i)
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
					if labels[j] == 0 && mask.Pix[ny*mask.Stride+nx] != 0 {
						labels[j] = next
						stack = append(stack, j)
					}
				}
			}
		}
	}
	return labels, int(next)
}

// flood grows positive markers into 0-marked pixels in order of the
// intensity step between neighbours of img, 4-connected. A pixel reached by
// two labels becomes a boundary (-1). The image border is always boundary.
func flood(markers []int32, img *image.Gray, w, h int) {
	if w < 3 || h < 3 {
		return
	}
	at := func(i int) int { return int(img.Pix[(i/w)*img.Stride+i%w]) }
	diff := func(a, b int) int {
		d := at(a) - at(b)
		if d < 0 {
			return -d
		}
		return d
	}

	for x := 0; x < w; x++ {
		markers[x] = wshedBoundary
		markers[(h-1)*w+x] = wshedBoundary
	}
	for y := 0; y < h; y++ {
		markers[y*w] = wshedBoundary
		markers[y*w+w-1] = wshedBoundary
	}

	var queues [256][]int
	active := 256
	push := func(level, p int) {
		queues[level] = append(queues[level], p)
		if level < active {
			active = level
		}
	}
	neighbours := func(p int) [4]int { return [4]int{p - 1, p + 1, p - w, p + w} }

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			p := y*w + x
			if markers[p] != 0 {
				continue
			}
			level := 256
			for _, q := range neighbours(p) {
				if markers[q] > 0 {
					level = min(level, diff(p, q))
				}
			}
			if level < 256 {
				push(level, p)
				markers[p] = wshedInQueue
			}
		}
	}

	for {
		for active < 256 && len(queues[active]) == 0 {
			active++
		}
		if active == 256 {
			break
		}
		p := queues[active][0]
		queues[active] = queues[active][1:]

		var lab int32
		for _, q := range neighbours(p) {
			t := markers[q]
			if t <= 0 {
				continue
			}
			if lab == 0 {
				lab = t
			} else if t != lab {
				lab = wshedBoundary
			}
		}
		if lab == 0 {
			lab = wshedBoundary
		}
		markers[p] = lab
		if lab == wshedBoundary {
			continue
		}

		for _, q := range neighbours(p) {
			if markers[q] == 0 {
				push(diff(q, p), q)
				markers[q] = wshedInQueue
			}
		}
	}
}

package imaging

import (
	"image"
	"sort"
)

// Region is one outer blob of a binary mask.
type Region struct {
	// Bounds is the tight bounding rectangle; Max is exclusive.
	Bounds image.Rectangle

	// Area counts the blob's pixels plus the holes it encloses.
	Area int

	// Pixels counts foreground pixels only.
	Pixels int
}

// ExternalRegions finds the outermost 8-connected foreground blobs of mask
// (any non-zero pixel is foreground).
//
// A blob lying entirely inside a hole of another blob is not reported, the
// same as outer-contour retrieval in common vision libraries. Bounds are in
// the coordinate system of mask.Rect, so a mask allocated over a sub-rectangle
// yields regions in full-image coordinates.
//
// Regions are returned in raster order of their first pixel.
func ExternalRegions(mask *image.Gray) []Region {
	r := mask.Rect
	w, h := r.Dx(), r.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	labels := make([]int32, w*h)
	type blob struct {
		minX, minY, maxX, maxY int
		first                  int
		pixels                 int
	}
	var blobs []blob
	stack := make([]int, 0, 256)

	for i := 0; i < w*h; i++ {
		x, y := i%w, i/w
		if mask.Pix[y*mask.Stride+x] == 0 || labels[i] != 0 {
			continue
		}
		id := int32(len(blobs) + 1)
		b := blob{minX: x, minY: y, maxX: x, maxY: y, first: i}
		labels[i] = id
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%w, p/w
			b.pixels++
			if px < b.minX {
				b.minX = px
			}
			if px > b.maxX {
				b.maxX = px
			}
			if py < b.minY {
				b.minY = py
			}
			if py > b.maxY {
				b.maxY = py
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := px+dx, py+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					j := ny*w + nx
					if labels[j] == 0 && mask.Pix[ny*mask.Stride+nx] != 0 {
						labels[j] = id
						stack = append(stack, j)
					}
				}
			}
		}
		blobs = append(blobs, b)
	}
	if len(blobs) == 0 {
		return nil
	}

	// For each blob, flood its background (4-connected) from the border of
	// the bbox grown by one pixel. Whatever the flood cannot reach is the blob
	// or one of its holes.
	stamp := make([]int32, w*h)
	nested := make([]bool, len(blobs)+1)
	regions := make([]Region, 0, len(blobs))
	for bi, b := range blobs {
		id := int32(bi + 1)
		x0, y0 := max(b.minX-1, 0), max(b.minY-1, 0)
		x1, y1 := min(b.maxX+1, w-1), min(b.maxY+1, h-1)

		seed := func(x, y int) {
			j := y*w + x
			if labels[j] != id && stamp[j] != id {
				stamp[j] = id
				stack = append(stack, j)
			}
		}
		stack = stack[:0]
		for x := x0; x <= x1; x++ {
			seed(x, y0)
			seed(x, y1)
		}
		for y := y0; y <= y1; y++ {
			seed(x0, y)
			seed(x1, y)
		}

		outside := 0
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			outside++
			px, py := p%w, p/w
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := px+d[0], py+d[1]
				if nx < x0 || ny < y0 || nx > x1 || ny > y1 {
					continue
				}
				j := ny*w + nx
				if labels[j] != id && stamp[j] != id {
					stamp[j] = id
					stack = append(stack, j)
				}
			}
		}

		// Other blobs whose first pixel sits in a hole of this one are nested.
		for y := b.minY; y <= b.maxY; y++ {
			for x := b.minX; x <= b.maxX; x++ {
				j := y*w + x
				other := labels[j]
				if other != 0 && other != id && stamp[j] != id && blobs[other-1].first == j {
					nested[other] = true
				}
			}
		}

		total := (x1 - x0 + 1) * (y1 - y0 + 1)
		regions = append(regions, Region{
			Bounds: image.Rect(b.minX+r.Min.X, b.minY+r.Min.Y, b.maxX+1+r.Min.X, b.maxY+1+r.Min.Y),
			Area:   total - outside,
			Pixels: b.pixels,
		})
	}

	out := regions[:0]
	for bi, reg := range regions {
		if !nested[bi+1] {
			out = append(out, reg)
		}
	}
	return out
}

// LabelBounds returns the bounding rectangle of every positive label in a
// w x h label plane, keyed by label and sorted by label in the returned keys.
func LabelBounds(labels []int32, w, h int) (map[int32]image.Rectangle, []int32) {
	bounds := make(map[int32]image.Rectangle)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			l := labels[y*w+x]
			if l <= 0 {
				continue
			}
			px := image.Rect(x, y, x+1, y+1)
			if b, ok := bounds[l]; ok {
				bounds[l] = b.Union(px)
			} else {
				bounds[l] = px
			}
		}
	}
	keys := make([]int32, 0, len(bounds))
	for l := range bounds {
		keys = append(keys, l)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return bounds, keys
}

// LabelRegions extracts the external regions of each label listed in keys.
// The mask for a label is allocated over its bounds only.
func LabelRegions(labels []int32, w int, bounds map[int32]image.Rectangle, keys []int32) map[int32][]Region {
	out := make(map[int32][]Region, len(keys))
	for _, l := range keys {
		b := bounds[l]
		mask := image.NewGray(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if labels[y*w+x] == l {
					mask.Pix[(y-b.Min.Y)*mask.Stride+(x-b.Min.X)] = 255
				}
			}
		}
		out[l] = ExternalRegions(mask)
	}
	return out
}

package detection

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/specimen-tools-mcp/internal/config"
	imgproc "github.com/ironsheep/specimen-tools-mcp/internal/imaging"
)

// MultiMethod is the detection method tag echoed in every MultiResult.
const MultiMethod = "contour"

// watershedSeedRatio is the fraction of the peak distance above which a pixel
// seeds the watershed.
const watershedSeedRatio = 0.4

// Detection is one specimen found by multi-specimen detection.
type Detection struct {
	// Box is in original image coordinates, margin applied and clamped.
	Box Box `json:"box"`

	// Confidence is the candidate's area fraction of the working image,
	// rounded to 4 decimals.
	Confidence float64 `json:"confidence"`

	ClassID   int    `json:"class_id"`
	ClassName string `json:"class_name"`

	// Method is the strategy that produced the surviving candidate.
	Method Method `json:"method"`
}

// MultiResult is the outcome of multi-specimen detection.
type MultiResult struct {
	// Detections are ordered top-to-bottom, then left-to-right.
	Detections      []Detection `json:"detections"`
	ImageWidth      int         `json:"image_width"`
	ImageHeight     int         `json:"image_height"`
	NumDetections   int         `json:"num_detections"`
	DetectionMethod string      `json:"detection_method"`

	// Factor is the working-resolution scale factor.
	Factor float64 `json:"factor"`

	// Pooled counts candidates that passed the area and aspect filters
	// before suppression.
	Pooled int `json:"pooled"`
}

// DetectSpecimens finds every specimen in img using cfg.
func DetectSpecimens(img image.Image, cfg config.Detection) MultiResult {
	return New(cfg, nil).DetectMulti(img)
}

// DetectMulti finds every specimen in img.
//
// # Algorithm
//
//  1. Normalize img to cfg.MultiMaxDim on its longest side
//  2. Pool candidates from, in order: edges with one 3x3 dilation, inverted
//     Otsu split by watershed, the same Otsu mask unsplit, adaptive
//     threshold, HSV saturation, and k-means colour clusters
//  3. Keep candidates with area in [MinAreaRatio, MaxAreaRatio] of the
//     working image and long/short side ratio <= MaxAspectRatio
//  4. Confidence = area fraction; non-max suppression at cfg.IoUThreshold,
//     keeping at most cfg.MaxSpecimens
//  5. Rescale, add margin, clamp, and sort by (Top, Left)
//
// An image with no plausible specimen yields an empty list, not an error.
func (d *Detector) DetectMulti(img image.Image) MultiResult {
	cfg := d.cfg
	scaled := imgproc.Normalize(img, cfg.MultiMaxDim)
	ws := newWorkspace(scaled)

	total := float64(ws.area())
	minArea := total * cfg.MinAreaRatio
	maxArea := total * cfg.MaxAreaRatio

	var pool []ScoredCandidate
	add := func(s strategy) {
		for _, c := range s.candidates(ws, d.log) {
			if !plausible(c, minArea, maxArea, cfg.MaxAspectRatio) {
				continue
			}
			pool = append(pool, ScoredCandidate{Candidate: c, Score: float64(c.Area) / total})
		}
	}

	for _, s := range multiStrategies(cfg) {
		add(s)
	}
	k := min(5, max(2, len(pool)+2))
	add(strategy{MethodKMeans, func(ws *workspace) []imgproc.Region {
		return kmeansRegions(ws.scaled.Image, k, cfg.Seed, minArea, total*cfg.BackgroundClusterRatio)
	}})

	kept := NonMaxSuppress(pool, cfg.IoUThreshold, cfg.MaxSpecimens)

	detections := make([]Detection, 0, len(kept))
	for _, c := range kept {
		detections = append(detections, Detection{
			Box:        Rescale(c.Box, scaled, cfg.Margin),
			Confidence: math.Round(c.Score*1e4) / 1e4,
			ClassID:    0,
			ClassName:  cfg.ClassName,
			Method:     c.Method,
		})
	}
	sort.SliceStable(detections, func(i, j int) bool {
		a, b := detections[i].Box, detections[j].Box
		if a.Top != b.Top {
			return a.Top < b.Top
		}
		return a.Left < b.Left
	})

	d.log.WithFields(logrus.Fields{
		"pooled":     len(pool),
		"detections": len(detections),
		"factor":     scaled.Factor,
	}).Debug("multi-specimen detection finished")

	return MultiResult{
		Detections:      detections,
		ImageWidth:      scaled.OrigWidth,
		ImageHeight:     scaled.OrigHeight,
		NumDetections:   len(detections),
		DetectionMethod: MultiMethod,
		Factor:          scaled.Factor,
		Pooled:          len(pool),
	}
}

// multiStrategies are the strategies that run before k-means, in pool order.
// They avoid closing so adjacent specimens stay separate.
func multiStrategies(cfg config.Detection) []strategy {
	return []strategy{
		{MethodCanny, func(ws *workspace) []imgproc.Region {
			edges := ws.edgePlane(cfg.CannyLow, cfg.CannyHigh)
			return imgproc.ExternalRegions(imgproc.Dilate(edges, 3, 1))
		}},
		{MethodWatershed, func(ws *workspace) []imgproc.Region {
			return watershedRegions(ws.otsuInvMask(), watershedSeedRatio)
		}},
		{MethodOtsuInv, func(ws *workspace) []imgproc.Region {
			return imgproc.ExternalRegions(ws.otsuInvMask())
		}},
		{MethodAdaptive, func(ws *workspace) []imgproc.Region {
			mask := imgproc.AdaptiveGaussianInv(ws.blurredPlane(), cfg.AdaptiveBlock, cfg.AdaptiveC)
			return imgproc.ExternalRegions(imgproc.Open(mask, 3))
		}},
		{MethodSaturation, func(ws *workspace) []imgproc.Region {
			mask := saturationMask(ws.scaled.Image, cfg.SaturationThreshold)
			return imgproc.ExternalRegions(imgproc.Open(mask, 3))
		}},
	}
}

// plausible applies the multi-mode area window and sliver filter.
func plausible(c Candidate, minArea, maxArea, maxAspect float64) bool {
	area := float64(c.Area)
	if area < minArea || area > maxArea {
		return false
	}
	w, h := float64(c.Box.Width()), float64(c.Box.Height())
	aspect := math.Max(w, h) / (math.Min(w, h) + 1e-6)
	return aspect <= maxAspect
}

// saturationMask marks pixels whose HSV saturation, on a 0-255 scale, is
// above threshold.
func saturationMask(img image.Image, threshold uint8) *image.Gray {
	src := imaging.Clone(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			c := colorful.Color{
				R: float64(row[x*4]) / 255,
				G: float64(row[x*4+1]) / 255,
				B: float64(row[x*4+2]) / 255,
			}
			_, s, _ := c.Hsv()
			if math.Round(s*255) > float64(threshold) {
				mask.Pix[y*mask.Stride+x] = 255
			}
		}
	}
	return mask
}

// Availability describes the detection backend.
type Availability struct {
	Available     bool     `json:"available"`
	PrimaryMethod string   `json:"primary_method"`
	Strategies    []Method `json:"strategies"`
}

// Available reports that detection can run. The detectors are pure Go, so
// this is always true; it exists so callers can probe before batch work.
func Available() Availability {
	return Availability{
		Available:     true,
		PrimaryMethod: MultiMethod,
		Strategies: []Method{
			MethodCanny, MethodOtsuInv, MethodOtsu, MethodSaliency,
			MethodWatershed, MethodAdaptive, MethodSaturation, MethodKMeans,
		},
	}
}

package detection

import (
	"image"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/specimen-tools-mcp/internal/config"
	"github.com/ironsheep/specimen-tools-mcp/internal/imaging"
	"github.com/ironsheep/specimen-tools-mcp/internal/logging"
)

// Result is the outcome of single-specimen detection. Box is always set.
type Result struct {
	// Box is the specimen box in original image coordinates.
	Box Box `json:"box"`

	// Score is the winning candidate's score, 0 for a fallback.
	Score float64 `json:"score"`

	// Method is the strategy that produced Box, or MethodFallback.
	Method Method `json:"method"`

	// Fallback is true when no candidate was confident enough and Box is
	// the fixed center crop.
	Fallback bool `json:"fallback"`

	// Factor is the working-resolution scale factor the box was mapped from.
	Factor float64 `json:"factor"`

	// ImageWidth and ImageHeight are the original image dimensions.
	ImageWidth  int `json:"image_width"`
	ImageHeight int `json:"image_height"`

	// Candidates counts the regions scored across all strategies run.
	Candidates int `json:"candidates"`

	// Working is the winning box before rescaling; zero for a fallback.
	Working WorkingBox `json:"working"`
}

// Detector runs specimen detection with one configuration. It holds no
// per-image state and is safe for concurrent use.
type Detector struct {
	cfg config.Detection
	log *logrus.Logger
}

// New creates a Detector. A nil logger discards quality signals.
func New(cfg config.Detection, log *logrus.Logger) *Detector {
	return &Detector{cfg: cfg, log: logging.OrDiscard(log)}
}

// Config returns the detector's configuration.
func (d *Detector) Config() config.Detection { return d.cfg }

// DetectSpecimen finds the single dominant specimen in img using cfg.
func DetectSpecimen(img image.Image, cfg config.Detection) Result {
	return New(cfg, nil).Detect(img)
}

// singleStrategies run in this order over the blurred working image. Order
// matters: on equal scores the earlier strategy wins.
func singleStrategies(cfg config.Detection) []strategy {
	return []strategy{
		{MethodCanny, func(ws *workspace) []imaging.Region {
			return imaging.ExternalRegions(closedEdges(ws, cfg))
		}},
		{MethodOtsuInv, func(ws *workspace) []imaging.Region {
			return imaging.ExternalRegions(ws.closedMask(MethodOtsuInv, func() *image.Gray {
				return imaging.Close(ws.otsuInvMask(), 5)
			}))
		}},
		{MethodOtsu, func(ws *workspace) []imaging.Region {
			return imaging.ExternalRegions(ws.closedMask(MethodOtsu, func() *image.Gray {
				return imaging.Close(ws.otsuMask(), 5)
			}))
		}},
	}
}

// closedEdges is the Canny map dilated by a 5x5 element twice, then closed.
func closedEdges(ws *workspace, cfg config.Detection) *image.Gray {
	return ws.closedMask(MethodCanny, func() *image.Gray {
		edges := ws.edgePlane(cfg.CannyLow, cfg.CannyHigh)
		return imaging.Close(imaging.Dilate(edges, 5, 2), 5)
	})
}

func saliencyStrategy() strategy {
	return strategy{MethodSaliency, func(ws *workspace) []imaging.Region {
		sal := SpectralResidual(ws.scaled.Image)
		return imaging.ExternalRegions(imaging.Close(imaging.Otsu(sal, false), 5))
	}}
}

// Detect finds the single dominant specimen in img.
//
// # Algorithm
//
//  1. Normalize img to cfg.SingleMaxDim on its longest side
//  2. Run edge, inverted Otsu and Otsu strategies; add saliency only when
//     the best score so far is below cfg.SaliencyBelow
//  3. Score every region (see scoreCandidate) and keep a running maximum,
//     replacing it only on strict improvement
//  4. If nothing scored or the best is below cfg.FallbackBelow, return the
//     center crop of the original image
//  5. Otherwise rescale the winner, add cfg.Margin and clamp
//
// The same image always yields the same Result.
func (d *Detector) Detect(img image.Image) Result {
	scaled := imaging.Normalize(img, d.cfg.SingleMaxDim)
	ws := newWorkspace(scaled)

	var (
		best    ScoredCandidate
		found   bool
		counted int
	)
	consider := func(s strategy) {
		for _, c := range s.candidates(ws, d.log) {
			counted++
			score := scoreCandidate(c, ws.width, ws.height, d.cfg)
			if score <= 0 {
				continue
			}
			if !found || score > best.Score {
				best = ScoredCandidate{Candidate: c, Score: score}
				found = true
			}
		}
	}

	for _, s := range singleStrategies(d.cfg) {
		consider(s)
	}
	if !found || best.Score < d.cfg.SaliencyBelow {
		consider(saliencyStrategy())
	}

	result := Result{
		Factor:      scaled.Factor,
		ImageWidth:  scaled.OrigWidth,
		ImageHeight: scaled.OrigHeight,
		Candidates:  counted,
	}

	if !found || best.Score < d.cfg.FallbackBelow {
		result.Box = FallbackBox(scaled.OrigWidth, scaled.OrigHeight, d.cfg.FallbackInset)
		result.Method = MethodFallback
		result.Fallback = true
		fields := logrus.Fields{
			"width":      scaled.OrigWidth,
			"height":     scaled.OrigHeight,
			"candidates": counted,
		}
		if found {
			fields["best_score"] = best.Score
			fields["best_method"] = best.Method
		}
		d.log.WithFields(fields).Warn("no confident specimen candidate, using center fallback")
		return result
	}

	result.Box = Rescale(best.Box, scaled, d.cfg.Margin)
	result.Score = best.Score
	result.Method = best.Method
	result.Working = best.Box

	d.log.WithFields(logrus.Fields{
		"method": best.Method,
		"score":  best.Score,
		"factor": scaled.Factor,
		"box":    result.Box.String(),
	}).Debug("specimen detected")

	return result
}

// scoreCandidate rates a single-mode candidate in [-1, 1].
//
// Candidates whose area falls outside [SingleMinAreaRatio, SingleMaxAreaRatio]
// of the working image score -1. Otherwise the score is the mean of an area
// term, min(area / (TargetAreaRatio*A), 1), and a center term,
// 1 - d/dmax, where d is the distance between the box center and the image
// center and dmax = sqrt(cx^2 + cy^2). Centers use integer division.
func scoreCandidate(c Candidate, width, height int, cfg config.Detection) float64 {
	total := float64(width * height)
	area := float64(c.Area)
	if area < total*cfg.SingleMinAreaRatio || area > total*cfg.SingleMaxAreaRatio {
		return -1
	}

	cx, cy := width/2, height/2
	bx, by := c.Box.Center()
	maxDist := math.Sqrt(float64(cx*cx + cy*cy))
	dist := math.Hypot(float64(bx-cx), float64(by-cy))

	centerScore := 0.0
	if maxDist > 0 {
		centerScore = 1 - dist/maxDist
	}
	areaScore := math.Min(area/(total*cfg.TargetAreaRatio), 1)

	return 0.5*areaScore + 0.5*centerScore
}

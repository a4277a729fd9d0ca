package detection

import (
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/specimen-tools-mcp/internal/imaging"
)

// Method names the strategy that produced a candidate.
type Method string

const (
	MethodCanny      Method = "canny"
	MethodOtsuInv    Method = "otsu_inv"
	MethodOtsu       Method = "otsu"
	MethodAdaptive   Method = "adaptive"
	MethodSaturation Method = "saturation"
	MethodKMeans     Method = "kmeans"
	MethodWatershed  Method = "watershed"
	MethodSaliency   Method = "saliency"

	// MethodFallback marks the center-crop box used when detection is weak.
	MethodFallback Method = "fallback"
)

// Candidate is a raw region found by one strategy, in working space.
type Candidate struct {
	Box    WorkingBox `json:"box"`
	Area   int        `json:"area"`
	Method Method     `json:"method"`
}

// ScoredCandidate is a Candidate with its selection score. A score <= 0
// marks an invalid candidate.
type ScoredCandidate struct {
	Candidate
	Score float64 `json:"score"`
}

// workspace holds the working image and the derived planes strategies share.
// Planes are computed on first use.
type workspace struct {
	scaled imaging.Scaled
	width  int
	height int

	gray    *image.Gray
	blurred *image.Gray
	otsuInv *image.Gray
	otsu    *image.Gray
	edges   *image.Gray

	// closed holds morphologically closed masks keyed by the method that
	// consumes them.
	closed map[Method]*image.Gray
}

func newWorkspace(s imaging.Scaled) *workspace {
	return &workspace{scaled: s, width: s.Width, height: s.Height}
}

func (ws *workspace) area() int { return ws.width * ws.height }

func (ws *workspace) grayPlane() *image.Gray {
	if ws.gray == nil {
		ws.gray = imaging.Grayscale(ws.scaled.Image)
	}
	return ws.gray
}

func (ws *workspace) blurredPlane() *image.Gray {
	if ws.blurred == nil {
		ws.blurred = imaging.GaussianBlur5(ws.grayPlane())
	}
	return ws.blurred
}

func (ws *workspace) otsuInvMask() *image.Gray {
	if ws.otsuInv == nil {
		ws.otsuInv = imaging.Otsu(ws.blurredPlane(), true)
	}
	return ws.otsuInv
}

func (ws *workspace) otsuMask() *image.Gray {
	if ws.otsu == nil {
		ws.otsu = imaging.Otsu(ws.blurredPlane(), false)
	}
	return ws.otsu
}

// edgePlane is the Canny edge map of the blurred plane. Thresholds are fixed
// per detector, so the first call's values stand for the workspace.
func (ws *workspace) edgePlane(low, high int) *image.Gray {
	if ws.edges == nil {
		ws.edges = imaging.Canny(ws.blurredPlane(), low, high)
	}
	return ws.edges
}

// closedMask returns the cached mask for m, building it on first use.
func (ws *workspace) closedMask(m Method, build func() *image.Gray) *image.Gray {
	if mask, ok := ws.closed[m]; ok {
		return mask
	}
	if ws.closed == nil {
		ws.closed = make(map[Method]*image.Gray)
	}
	mask := build()
	ws.closed[m] = mask
	return mask
}

// strategy turns the working image into candidate regions.
type strategy struct {
	method Method
	run    func(ws *workspace) []imaging.Region
}

// candidates runs s and tags its regions. A strategy that panics on
// degenerate input contributes no candidates.
func (s strategy) candidates(ws *workspace, log *logrus.Logger) (out []Candidate) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"method": s.method,
				"error":  fmt.Sprint(r),
			}).Warn("detection strategy failed, contributing no candidates")
			out = nil
		}
	}()

	regions := s.run(ws)
	out = make([]Candidate, 0, len(regions))
	for _, r := range regions {
		out = append(out, Candidate{Box: workingBoxFromRect(r.Bounds), Area: r.Area, Method: s.method})
	}
	return out
}

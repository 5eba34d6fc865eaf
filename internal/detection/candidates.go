package detection

import (
	"image"
)

// Bounds represents a rectangular bounding box in pixel coordinates.
//
// The coordinate convention follows standard image bounds:
//   - (X1, Y1) is the top-left corner (inclusive)
//   - (X2, Y2) is the bottom-right corner (exclusive)
type Bounds struct {
	X1 int `json:"x1"` // Left edge (inclusive)
	Y1 int `json:"y1"` // Top edge (inclusive)
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// BoundsOf converts an image.Rectangle into Bounds.
func BoundsOf(r image.Rectangle) Bounds {
	return Bounds{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// FilterParams controls which contours are accepted as coin candidates.
type FilterParams struct {
	// MinPoints is the minimum number of (simplified) contour points.
	MinPoints int `json:"min_points" yaml:"min_points"`

	// MinArea is the exclusive lower bound on contour area in square pixels.
	MinArea float64 `json:"min_area" yaml:"min_area"`

	// Tolerance bounds the ratio of contour area to fitted ellipse area:
	// accepted ratios lie in [Tolerance, (1-Tolerance)+1].
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`
}

// Candidate is a contour that closely matches its fitted ellipse.
type Candidate struct {
	// Contour is the simplified outer boundary the candidate came from.
	Contour Contour `json:"-"`

	// Ellipse is the least-squares ellipse fitted to the contour points.
	Ellipse Ellipse `json:"ellipse"`

	// Bounds is the axis-aligned bounding box of the contour.
	Bounds image.Rectangle `json:"-"`

	// Area is the polygon area of the contour.
	Area float64 `json:"area"`

	// Ratio is Area divided by the ellipse area.
	Ratio float64 `json:"ratio"`
}

// FilterCandidates keeps the contours that look like coins: enough points,
// more than MinArea square pixels, a successful ellipse fit, and a contour to
// ellipse area ratio inside the tolerance band. Rejected contours are dropped
// silently and input order is preserved.
func FilterCandidates(contours []Contour, p FilterParams) []Candidate {
	candidates := make([]Candidate, 0)
	for _, c := range contours {
		if cand, ok := evaluateContour(c, p); ok {
			candidates = append(candidates, cand)
		}
	}
	return candidates
}

// FindCandidates runs contour extraction and candidate filtering on an edge map.
func FindCandidates(edges *image.Gray, p FilterParams) []Candidate {
	return FilterCandidates(FindContours(edges), p)
}

func evaluateContour(c Contour, p FilterParams) (Candidate, bool) {
	if len(c.Points) < p.MinPoints || len(c.Points) < 5 {
		return Candidate{}, false
	}
	area := c.Area()
	if area <= p.MinArea {
		return Candidate{}, false
	}

	e, err := FitEllipse(c.Points)
	if err != nil {
		return Candidate{}, false
	}
	ellipseArea := e.Area()
	if ellipseArea <= 0 {
		return Candidate{}, false
	}

	ratio := area / ellipseArea
	if !RatioAccepted(ratio, p.Tolerance) {
		return Candidate{}, false
	}

	return Candidate{
		Contour: c,
		Ellipse: e,
		Bounds:  c.Bounds(),
		Area:    area,
		Ratio:   ratio,
	}, true
}

// RatioAccepted reports whether a contour to ellipse area ratio lies in the
// band [tolerance, (1-tolerance)+1], both ends inclusive.
func RatioAccepted(ratio, tolerance float64) bool {
	return ratio >= tolerance && ratio <= (1-tolerance)+1
}

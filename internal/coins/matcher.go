package coins

import (
	"context"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/transform"

	"github.com/ironsheep/coin-counter/internal/imaging"
	"github.com/ironsheep/coin-counter/internal/pool"
)

// MatchResult is the best rotational overlap between a patch and one template.
type MatchResult struct {
	// Index is the template index in library order.
	Index int `json:"index"`

	// Key identifies the template.
	Key TemplateKey `json:"template"`

	// BestOverlapPercent is the highest share of template edge pixels that
	// coincide with patch edge pixels, over all tried rotations. It may
	// exceed 100 because rotation resampling can widen edges.
	BestOverlapPercent float64 `json:"best_overlap_percent"`

	// BestRotationAngle is the counter-clockwise rotation in degrees that
	// produced BestOverlapPercent.
	BestRotationAngle int `json:"best_rotation_angle"`
}

// MatchRotations rotates templateEdges through 0, step, 2·step, … < 360
// degrees and reports the best overlap with patchEdges.
//
// Each rotation turns the template counter-clockwise about (w/2, h/2) (integer
// division) into a frame of the same size; pixels rotated in from outside the
// frame are empty. The overlap at one angle is
//
//	matches / templateEdgeCount × 100
//
// where matches counts positions inside both maps that are nonzero in the
// rotated template and in the patch. Only strictly greater overlaps replace
// the current best, so ties keep the earliest angle. A template without edge
// pixels yields 0 at angle 0.
func MatchRotations(patchEdges, templateEdges *image.Gray, step int) (float64, int) {
	total := imaging.CountEdges(templateEdges)
	if total == 0 || step < 1 {
		return 0, 0
	}

	pb, tb := patchEdges.Bounds(), templateEdges.Bounds()
	w, h := min(pb.Dx(), tb.Dx()), min(pb.Dy(), tb.Dy())

	patchOn := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			patchOn[y*w+x] = patchEdges.Pix[y*patchEdges.Stride+x] != 0
		}
	}

	pivot := image.Pt(tb.Dx()/2, tb.Dy()/2)
	opts := &transform.RotationOptions{ResizeBounds: false, Pivot: &pivot}

	best, bestAngle := 0.0, 0
	for angle := 0; angle < 360; angle += step {
		// bild rotates clockwise for positive angles.
		rotated := transform.Rotate(templateEdges, -float64(angle), opts)

		matches := 0
		for y := 0; y < h; y++ {
			row := rotated.Pix[y*rotated.Stride:]
			for x := 0; x < w; x++ {
				if patchOn[y*w+x] && row[x*4] != 0 {
					matches++
				}
			}
		}

		overlap := float64(matches) / float64(total) * 100
		if overlap > best {
			best, bestAngle = overlap, angle
		}
	}
	return best, bestAngle
}

// MatchTemplates compares a patch edge map with every template of the
// profiler's library, scaled to the patch width. The templates are matched
// concurrently and the results are returned in library order.
func MatchTemplates(ctx context.Context, p *Profiler, patchEdges *image.Gray, step int) ([]MatchResult, error) {
	width := patchEdges.Bounds().Dx()
	indices := make([]int, p.lib.Len())
	for i := range indices {
		indices[i] = i
	}

	return pool.Map(ctx, len(indices), indices, func(_ context.Context, _ int, index int) (MatchResult, error) {
		templateEdges, err := p.TemplateEdges(index, width)
		if err != nil {
			return MatchResult{}, fmt.Errorf("failed to match template: %w", err)
		}
		best, angle := MatchRotations(patchEdges, templateEdges, step)
		return MatchResult{
			Index:              index,
			Key:                p.lib.Key(index),
			BestOverlapPercent: best,
			BestRotationAngle:  angle,
		}, nil
	})
}

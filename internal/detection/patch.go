package detection

import (
	"fmt"
	"image"

	"github.com/ironsheep/coin-counter/internal/imaging"
)

// EllipseMask reports, for every pixel of bounds, whether its integer
// coordinate lies inside e. The result is row-major with stride bounds.Dx().
func EllipseMask(e Ellipse, bounds image.Rectangle) []bool {
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}
	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mask[y*w+x] = e.Contains(float64(bounds.Min.X+x), float64(bounds.Min.Y+y))
		}
	}
	return mask
}

// ExtractPatch copies the candidate's bounding box out of src and blacks out
// every pixel that lies outside the candidate ellipse.
//
// The patch has the size of c.Bounds and its bounds start at the origin.
// Masked pixels are opaque black; the source pixel colours are never used as
// markers, so dark coin pixels are kept intact.
func ExtractPatch(src image.Image, c Candidate) (*image.NRGBA, error) {
	region := c.Bounds.Add(src.Bounds().Min)
	patch, err := imaging.Crop(src, region)
	if err != nil {
		return nil, fmt.Errorf("failed to extract patch: %w", err)
	}

	mask := EllipseMask(c.Ellipse, c.Bounds)
	w, h := c.Bounds.Dx(), c.Bounds.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask[y*w+x] {
				continue
			}
			i := y*patch.Stride + x*4
			patch.Pix[i+0] = 0
			patch.Pix[i+1] = 0
			patch.Pix[i+2] = 0
			patch.Pix[i+3] = 255
		}
	}
	return patch, nil
}

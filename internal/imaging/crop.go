package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Crop extracts a rectangular region from an image.
//
// The region uses the package coordinate convention: Min is inclusive, Max is
// exclusive. The returned image always has its bounds at the origin.
//
// Returns an error if the region is empty or extends outside the image.
func Crop(img image.Image, region image.Rectangle) (*image.NRGBA, error) {
	bounds := img.Bounds()
	if region.Empty() {
		return nil, fmt.Errorf("invalid crop region %v: min must be < max", region)
	}
	if !region.In(bounds) {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", region, bounds)
	}
	return imaging.Crop(img, region), nil
}

// FitWithin shrinks img proportionally so that its larger dimension is at most
// maxDim. Images already within the limit are copied unchanged.
//
// The returned scale is the factor applied to both axes (1.0 when no resize
// happened). New dimensions are rounded to the nearest pixel and never drop
// below one.
func FitWithin(img image.Image, maxDim int) (*image.NRGBA, float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return imaging.Clone(img), 1.0
	}

	scale := float64(maxDim) / float64(max(w, h))
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	return imaging.Resize(img, nw, nh, imaging.Box), scale
}

// ScaleToWidth resizes img isotropically so that its width equals width.
// The height follows from the aspect ratio.
func ScaleToWidth(img image.Image, width int) *image.NRGBA {
	if img.Bounds().Dx() == width {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, width, 0, imaging.Box)
}

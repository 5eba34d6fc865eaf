package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/disintegration/imaging"
)

// ErrEmptyImage is returned when an image has zero width or zero height.
var ErrEmptyImage = errors.New("image has zero width or height")

// EdgeParams configures one edge extraction pass: smoothing, Canny thresholds
// and the optional closing dilation.
type EdgeParams struct {
	// Passes is the number of Gaussian smoothing passes applied before
	// gradient computation. Zero disables smoothing.
	Passes int `json:"passes" yaml:"passes" ini:"passes"`

	// KernelSize is the side length of the square Gaussian kernel. Must be odd.
	KernelSize int `json:"kernel_size" yaml:"kernel_size" ini:"kernel_size"`

	// Sigma is the Gaussian spread parameter in pixels.
	Sigma float64 `json:"sigma" yaml:"sigma" ini:"sigma"`

	// Low and High are the hysteresis thresholds applied to
	// the L1 gradient magnitude (|Gx| + |Gy|) of the 0-255 intensity image.
	Low  int `json:"low" yaml:"low" ini:"low"`
	High int `json:"high" yaml:"high" ini:"high"`

	// DilateSize is the side length of the elliptical structuring element used
	// to close small gaps after edge extraction. Zero disables dilation.
	DilateSize int `json:"dilate_size" yaml:"dilate_size" ini:"dilate_size"`
}

// Validate reports whether the parameters describe a usable edge pass.
func (p EdgeParams) Validate() error {
	if p.Passes < 0 {
		return fmt.Errorf("blur passes must not be negative, got %d", p.Passes)
	}
	if p.Passes > 0 {
		if p.KernelSize <= 0 || p.KernelSize%2 == 0 {
			return fmt.Errorf("blur kernel must be a positive odd size, got %d", p.KernelSize)
		}
		if p.Sigma <= 0 {
			return fmt.Errorf("blur sigma must be positive, got %g", p.Sigma)
		}
	}
	if p.Low < 0 || p.High < 0 {
		return fmt.Errorf("edge thresholds must not be negative, got %d/%d", p.Low, p.High)
	}
	if p.Low > p.High {
		return fmt.Errorf("low threshold %d exceeds high threshold %d", p.Low, p.High)
	}
	if p.DilateSize < 0 || (p.DilateSize > 0 && p.DilateSize%2 == 0) {
		return fmt.Errorf("dilate size must be zero or a positive odd size, got %d", p.DilateSize)
	}
	return nil
}

// BuildEdgeMap converts an image into a binary edge map.
//
// The returned image has the same dimensions as img, its bounds start at the
// origin, and every pixel is either 0 (no edge) or 255 (edge).
//
// # Algorithm
//
//  1. Grayscale conversion using ITU-R BT.601 weights (0.299*R + 0.587*G + 0.114*B)
//  2. p.Passes Gaussian passes with a p.KernelSize square kernel
//  3. Canny edge detection with p.Low / p.High
//  4. Optional dilation with an elliptical p.DilateSize structuring element
//
// Returns ErrEmptyImage if img has no pixels.
func BuildEdgeMap(img image.Image, p EdgeParams) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	gray := ToGray(img)
	if p.Passes > 0 {
		gray = Smooth(gray, p.Passes, p.KernelSize, p.Sigma)
	}
	edges := Canny(gray, p.Low, p.High)
	if p.DilateSize > 0 {
		edges = Dilate(edges, p.DilateSize)
	}
	return edges, nil
}

// CountEdges returns the number of nonzero pixels in an edge map.
func CountEdges(edges *image.Gray) int {
	b := edges.Bounds()
	count := 0
	for y := 0; y < b.Dy(); y++ {
		row := edges.Pix[y*edges.Stride : y*edges.Stride+b.Dx()]
		for _, v := range row {
			if v > 0 {
				count++
			}
		}
	}
	return count
}

// ToGray converts an image to an origin-based single channel intensity image.
func ToGray(img image.Image) *image.Gray {
	src := imaging.Grayscale(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Pix[y*dst.Stride+x] = src.Pix[y*src.Stride+x*4]
		}
	}
	return dst
}

// Smooth applies passes rounds of Gaussian blur with a size×size kernel.
// Border pixels use replicated edge values.
func Smooth(gray *image.Gray, passes, size int, sigma float64) *image.Gray {
	kernel := gaussianKernel(size, sigma)
	opts := &convolution.Options{Bias: 0, Wrap: false, KeepAlpha: true}

	var cur image.Image = gray
	for i := 0; i < passes; i++ {
		cur = convolution.Convolve(cur, kernel, opts)
	}
	if passes == 0 {
		return gray
	}

	rgba := cur.(*image.RGBA)
	w, h := rgba.Bounds().Dx(), rgba.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Pix[y*dst.Stride+x] = rgba.Pix[y*rgba.Stride+x*4]
		}
	}
	return dst
}

// gaussianKernel builds a normalised size×size Gaussian kernel as the outer
// product of two 1-D kernels with the given sigma.
func gaussianKernel(size int, sigma float64) *convolution.Kernel {
	half := size / 2
	weights := make([]float64, size)
	var sum float64
	for i := range weights {
		d := float64(i - half)
		weights[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}

	k := convolution.NewKernel(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			k.Matrix[y*size+x] = weights[y] * weights[x]
		}
	}
	return k
}

// Canny performs Canny edge detection on an intensity image.
//
//  1. Gradient computation: 3x3 Sobel operators, magnitude = |Gx| + |Gy|
//  2. Non-maximum suppression: keep only local maxima along the gradient direction
//  3. Hysteresis: pixels above high are strong edges; pixels above low are kept
//     only when 8-connected (possibly through other weak pixels) to a strong edge
//
// The result holds 0 or 255 in every pixel. Border pixels are never edges.
func Canny(gray *image.Gray, low, high int) *image.Gray {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	result := image.NewGray(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return result
	}

	at := func(x, y int) float64 {
		x = clamp(x, 0, width-1)
		y = clamp(y, 0, height-1)
		return float64(gray.Pix[y*gray.Stride+x])
	}

	magnitude := make([]float64, width*height)
	direction := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			magnitude[y*width+x] = math.Abs(gx) + math.Abs(gy)
			direction[y*width+x] = math.Atan2(gy, gx)
		}
	}

	lowT, highT := float64(low), float64(high)

	// 0 = suppressed, 1 = weak, 2 = strong
	state := make([]uint8, width*height)
	var stack []int
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			mag := magnitude[i]
			if mag <= lowT {
				continue
			}

			angle := direction[i]
			var n1, n2 float64
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
				n1, n2 = magnitude[i-1], magnitude[i+1]
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1, n2 = magnitude[i-width-1], magnitude[i+width+1]
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1, n2 = magnitude[i-width], magnitude[i+width]
			default:
				n1, n2 = magnitude[i-width+1], magnitude[i+width-1]
			}
			if mag <= n1 || mag < n2 {
				continue
			}

			if mag > highT {
				state[i] = 2
				stack = append(stack, i)
			} else {
				state[i] = 1
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		result.Pix[(i/width)*result.Stride+i%width] = 255

		x, y := i%width, i/width
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || nx >= width || ny < 0 || ny >= height {
					continue
				}
				j := ny*width + nx
				if state[j] == 1 {
					state[j] = 2
					stack = append(stack, j)
				}
			}
		}
	}

	return result
}

// Dilate grows the nonzero pixels of a binary image using an elliptical
// structuring element of the given odd size. A size of 3 is the 3x3 cross.
func Dilate(edges *image.Gray, size int) *image.Gray {
	b := edges.Bounds()
	width, height := b.Dx(), b.Dy()
	result := image.NewGray(image.Rect(0, 0, width, height))

	r := size / 2
	var element []image.Point
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				element = append(element, image.Point{X: dx, Y: dy})
			}
		}
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges.Pix[y*edges.Stride+x] == 0 {
				continue
			}
			for _, e := range element {
				nx, ny := x+e.X, y+e.Y
				if nx < 0 || nx >= width || ny < 0 || ny >= height {
					continue
				}
				result.Pix[ny*result.Stride+nx] = 255
			}
		}
	}
	return result
}

// EdgeDetectResult contains an edge map encoded as base64 PNG.
//
// The image is grayscale with edges marked in white (255) and non-edges black.
type EdgeDetectResult struct {
	// Width of the output image in pixels (same as input).
	Width int `json:"width"`

	// Height of the output image in pixels (same as input).
	Height int `json:"height"`

	// EdgePixels is the number of edge pixels in the map.
	EdgePixels int `json:"edge_pixels"`

	// ImageBase64 is the edge image encoded as base64 PNG.
	ImageBase64 string `json:"image_base64"`

	// MimeType is always "image/png" for edge detection results.
	MimeType string `json:"mime_type"`
}

// EdgeDetect runs BuildEdgeMap and encodes the result for transport.
//
// Returns:
//   - *EdgeDetectResult: Edge map as base64 PNG plus its edge pixel count.
//   - error: ErrEmptyImage, a parameter error, or a PNG encoding failure.
func EdgeDetect(img image.Image, p EdgeParams) (*EdgeDetectResult, error) {
	edges, err := BuildEdgeMap(img, p)
	if err != nil {
		return nil, err
	}

	encoded, err := EncodePNGBase64(edges)
	if err != nil {
		return nil, fmt.Errorf("failed to encode edge image: %w", err)
	}

	return &EdgeDetectResult{
		Width:       edges.Bounds().Dx(),
		Height:      edges.Bounds().Dy(),
		EdgePixels:  CountEdges(edges),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// EncodePNGBase64 encodes an image as PNG and returns it base64 encoded.
func EncodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

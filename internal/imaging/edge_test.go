package imaging

import (
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"
)

// primaryParams mirrors the coin detector's primary edge pass.
var primaryParams = EdgeParams{Passes: 6, KernelSize: 5, Sigma: 2.0, Low: 25, High: 50, DilateSize: 3}

func TestBuildEdgeMap_Disc(t *testing.T) {
	img := createDiscImage(t, 120, 100, 60, 50, 30)

	edges, err := BuildEdgeMap(img, primaryParams)
	if err != nil {
		t.Fatalf("BuildEdgeMap failed: %v", err)
	}
	if edges.Bounds() != image.Rect(0, 0, 120, 100) {
		t.Errorf("bounds: got %v, want (0,0)-(120,100)", edges.Bounds())
	}

	for i, v := range edges.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("pixel %d has value %d, want 0 or 255", i, v)
		}
	}

	// The rim of the disc must be marked somewhere along each axis.
	found := false
	for x := 25; x <= 35; x++ {
		if edges.GrayAt(x, 50).Y == 255 {
			found = true
		}
	}
	if !found {
		t.Error("left rim of the disc was not detected")
	}

	if edges.GrayAt(60, 50).Y != 0 {
		t.Error("flat disc interior should not be an edge")
	}
	if edges.GrayAt(2, 2).Y != 0 {
		t.Error("flat background should not be an edge")
	}
}

func TestBuildEdgeMap_Uniform(t *testing.T) {
	img := createInMemoryImage(50, 40, color.RGBA{128, 128, 128, 255})

	edges, err := BuildEdgeMap(img, primaryParams)
	if err != nil {
		t.Fatalf("BuildEdgeMap failed: %v", err)
	}
	if n := CountEdges(edges); n != 0 {
		t.Errorf("uniform image produced %d edge pixels, want 0", n)
	}
}

func TestBuildEdgeMap_NonOriginBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 20, 40, 50))
	edges, err := BuildEdgeMap(img, primaryParams)
	if err != nil {
		t.Fatalf("BuildEdgeMap failed: %v", err)
	}
	if edges.Bounds() != image.Rect(0, 0, 30, 30) {
		t.Errorf("bounds: got %v, want origin based 30x30", edges.Bounds())
	}
}

func TestBuildEdgeMap_Empty(t *testing.T) {
	for _, img := range []image.Image{nil, image.NewRGBA(image.Rect(0, 0, 0, 10)), image.NewRGBA(image.Rect(0, 0, 10, 0))} {
		if _, err := BuildEdgeMap(img, primaryParams); !errors.Is(err, ErrEmptyImage) {
			t.Errorf("got %v, want ErrEmptyImage", err)
		}
	}
}

func TestEdgeParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EdgeParams)
		wantErr bool
	}{
		{"defaults", func(p *EdgeParams) {}, false},
		{"no blur ignores kernel", func(p *EdgeParams) { p.Passes = 0; p.KernelSize = 0 }, false},
		{"negative passes", func(p *EdgeParams) { p.Passes = -1 }, true},
		{"even kernel", func(p *EdgeParams) { p.KernelSize = 4 }, true},
		{"zero sigma", func(p *EdgeParams) { p.Sigma = 0 }, true},
		{"low above high", func(p *EdgeParams) { p.Low = 60 }, true},
		{"negative low", func(p *EdgeParams) { p.Low = -1 }, true},
		{"even dilate", func(p *EdgeParams) { p.DilateSize = 2 }, true},
		{"no dilate", func(p *EdgeParams) { p.DilateSize = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := primaryParams
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate: got %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCountEdges(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 7, 5))
	if n := CountEdges(blank); n != 0 {
		t.Errorf("all-zero map: got %d, want 0", n)
	}

	full := image.NewGray(image.Rect(0, 0, 7, 5))
	for i := range full.Pix {
		full.Pix[i] = 255
	}
	if n := CountEdges(full); n != 35 {
		t.Errorf("all-255 map: got %d, want 35", n)
	}

	full.Pix[3] = 0
	if n := CountEdges(full); n != 34 {
		t.Errorf("one cleared pixel: got %d, want 34", n)
	}
}

func TestCanny_StrongEdge(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 20; x < 40; x++ {
			gray.Pix[y*gray.Stride+x] = 255
		}
	}

	edges := Canny(gray, 50, 150)

	for y := 1; y < 39; y++ {
		count := 0
		for x := 0; x < 40; x++ {
			if edges.GrayAt(x, y).Y == 255 {
				count++
				if x < 18 || x > 21 {
					t.Fatalf("edge at (%d,%d) far from the step", x, y)
				}
			}
		}
		if count != 1 {
			t.Errorf("row %d: got %d edge pixels, want a thin edge of 1", y, count)
		}
	}
}

func TestCanny_Hysteresis(t *testing.T) {
	// A faint step (gradient 4*20 = 80) is kept only when the threshold pair
	// allows it as strong or weak-connected-to-strong.
	gray := image.NewGray(image.Rect(0, 0, 30, 30))
	for y := 0; y < 30; y++ {
		for x := 15; x < 30; x++ {
			gray.Pix[y*gray.Stride+x] = 20
		}
	}

	if n := CountEdges(Canny(gray, 50, 100)); n != 0 {
		t.Errorf("weak-only edge kept %d pixels, want 0", n)
	}
	if n := CountEdges(Canny(gray, 50, 70)); n == 0 {
		t.Error("strong edge was dropped")
	}
}

func TestDilate_Cross(t *testing.T) {
	edges := image.NewGray(image.Rect(0, 0, 5, 5))
	edges.SetGray(2, 2, color.Gray{Y: 255})

	out := Dilate(edges, 3)

	want := map[image.Point]bool{
		image.Pt(2, 2): true, image.Pt(1, 2): true, image.Pt(3, 2): true,
		image.Pt(2, 1): true, image.Pt(2, 3): true,
	}
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			got := out.GrayAt(x, y).Y == 255
			if got != want[image.Pt(x, y)] {
				t.Errorf("(%d,%d): got %v, want %v", x, y, got, !got)
			}
		}
	}
}

func TestDilate_Corner(t *testing.T) {
	edges := image.NewGray(image.Rect(0, 0, 3, 3))
	edges.SetGray(0, 0, color.Gray{Y: 255})

	if n := CountEdges(Dilate(edges, 3)); n != 3 {
		t.Errorf("corner dilation: got %d pixels, want 3", n)
	}
}

func TestGaussianKernel(t *testing.T) {
	for _, size := range []int{3, 5} {
		k := gaussianKernel(size, 2.0)
		var sum float64
		for _, v := range k.Matrix {
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("size %d: kernel sums to %f, want 1", size, sum)
		}
		center := k.Matrix[(size/2)*size+size/2]
		if center < k.Matrix[0] {
			t.Errorf("size %d: center weight %f below corner %f", size, center, k.Matrix[0])
		}
	}
}

func TestSmooth_Uniform(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 12, 12))
	for i := range gray.Pix {
		gray.Pix[i] = 100
	}

	out := Smooth(gray, 3, 3, 2.0)

	for i, v := range out.Pix {
		// convolution truncates, so a uniform field may lose one level per pass
		if v < 97 || v > 100 {
			t.Fatalf("pixel %d: got %d, want ~100", i, v)
		}
	}
}

func TestEdgeDetect(t *testing.T) {
	img := createEdgeTestImage(100, 100)

	result, err := EdgeDetect(img, primaryParams)
	if err != nil {
		t.Fatalf("EdgeDetect failed: %v", err)
	}

	if result.Width != 100 || result.Height != 100 {
		t.Errorf("dimensions: got %dx%d, want 100x100", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}
	if result.EdgePixels == 0 {
		t.Error("rectangle produced no edge pixels")
	}

	decoded, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	edgeImg, err := png.Decode(strings.NewReader(string(decoded)))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	if edgeImg.Bounds().Dx() != 100 || edgeImg.Bounds().Dy() != 100 {
		t.Errorf("decoded image dimensions: got %dx%d, want 100x100",
			edgeImg.Bounds().Dx(), edgeImg.Bounds().Dy())
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		val, min, max, want int
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{15, 0, 10, 10},
		{10, 0, 10, 10},
	}

	for _, tt := range tests {
		if got := clamp(tt.val, tt.min, tt.max); got != tt.want {
			t.Errorf("clamp(%d, %d, %d): got %d, want %d", tt.val, tt.min, tt.max, got, tt.want)
		}
	}
}

// Helper functions

func createInMemoryImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createDiscImage draws a light disc of radius r centred at (cx, cy) on a
// dark background.
func createDiscImage(t *testing.T, width, height, cx, cy, r int) image.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.Set(x, y, color.RGBA{220, 200, 160, 255})
			} else {
				img.Set(x, y, color.RGBA{20, 20, 30, 255})
			}
		}
	}
	return img
}

// createEdgeTestImage creates an image with a black rectangle on white background
func createEdgeTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	for y := height / 4; y < 3*height/4; y++ {
		for x := width / 4; x < 3*width/4; x++ {
			img.Set(x, y, color.Black)
		}
	}
	return img
}

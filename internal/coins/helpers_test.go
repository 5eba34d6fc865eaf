package coins

import (
	"image"
	"image/color"
	"math"
	"testing"
)

var (
	coinFace  = color.NRGBA{R: 210, G: 180, B: 120, A: 255}
	coinMark  = color.NRGBA{R: 60, G: 50, B: 40, A: 255}
	tableTone = color.NRGBA{R: 40, G: 40, B: 45, A: 255}
)

// createTemplate draws a light disc on a size×size black square with one
// dark ring whose radius grows with the template index. A ring looks the same
// at every rotation, so no template can be turned into another.
func createTemplate(index, size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	c := float64(size-1) / 2
	r := discRadius(size)
	ring := r * (0.22 + 0.085*float64(index))

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)-c, float64(y)-c)
			switch {
			case d > r:
				img.SetNRGBA(x, y, color.NRGBA{A: 255})
			case math.Abs(d-ring) < 1:
				img.SetNRGBA(x, y, coinMark)
			default:
				img.SetNRGBA(x, y, coinFace)
			}
		}
	}
	return img
}

// discRadius leaves a two pixel margin around the disc, matching the gap
// between a coin and the dilated outline the detector crops it by.
func discRadius(size int) float64 {
	return float64(size-1)/2 - 2
}

// templateMap returns synthetic templates for every key.
func templateMap(size int) map[TemplateKey]image.Image {
	m := make(map[TemplateKey]image.Image, len(TemplateKeys))
	for i, key := range TemplateKeys {
		m[key] = createTemplate(i, size)
	}
	return m
}

// templateSize is the side length of the synthetic library templates.
const templateSize = 161

// testLibrary builds a library of synthetic templates.
func testLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := NewLibrary(templateMap(templateSize))
	if err != nil {
		t.Fatalf("NewLibrary failed: %v", err)
	}
	return lib
}

// createScene pastes the disc of a template onto a plain table at (x, y).
func createScene(width, height int, coin *image.NRGBA, x, y int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for py := 0; py < height; py++ {
		for px := 0; px < width; px++ {
			img.SetNRGBA(px, py, tableTone)
		}
	}

	size := coin.Bounds().Dx()
	c := float64(size-1) / 2
	r := discRadius(size)
	for cy := 0; cy < size; cy++ {
		for cx := 0; cx < size; cx++ {
			if math.Hypot(float64(cx)-c, float64(cy)-c) <= r {
				img.SetNRGBA(x+cx, y+cy, coin.NRGBAAt(cx, cy))
			}
		}
	}
	return img
}

// barEdges returns a size×size edge map with a horizontal bar from the
// centre to the right edge.
func barEdges(size int) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, size, size))
	for x := size / 2; x < size; x++ {
		m.SetGray(x, size/2, color.Gray{Y: 255})
	}
	return m
}

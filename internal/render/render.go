// Package render draws detection results onto the processed image.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/coin-counter/internal/coins"
	"github.com/ironsheep/coin-counter/internal/detection"
	"github.com/ironsheep/coin-counter/internal/imaging"
)

// Style controls the colours and stroke widths of annotations.
type Style struct {
	// Colours are hex strings such as "#FF0000" or "#FF000080".
	EllipseColor string `json:"ellipse_color" yaml:"ellipse_color" ini:"ellipse_color"`
	BoxColor     string `json:"box_color" yaml:"box_color" ini:"box_color"`
	TextColor    string `json:"text_color" yaml:"text_color" ini:"text_color"`
	ShadowColor  string `json:"shadow_color" yaml:"shadow_color" ini:"shadow_color"`

	EllipseThickness int `json:"ellipse_thickness" yaml:"ellipse_thickness" ini:"ellipse_thickness"`
	BoxThickness     int `json:"box_thickness" yaml:"box_thickness" ini:"box_thickness"`
}

// DefaultStyle outlines candidates in red, boxes coins in green and writes
// white text with a black shadow.
func DefaultStyle() Style {
	return Style{
		EllipseColor:     "#FF0000",
		BoxColor:         "#00FF00",
		TextColor:        "#FFFFFF",
		ShadowColor:      "#000000",
		EllipseThickness: 3,
		BoxThickness:     2,
	}
}

// palette is a Style with parsed colours.
type palette struct {
	ellipse, box, text, shadow color.NRGBA
}

// Validate parses every colour of the style.
func (s Style) Validate() error {
	_, err := s.palette()
	return err
}

func (s Style) palette() (palette, error) {
	var p palette
	var err error
	for _, c := range []struct {
		name string
		hex  string
		dst  *color.NRGBA
	}{
		{"ellipse", s.EllipseColor, &p.ellipse},
		{"box", s.BoxColor, &p.box},
		{"text", s.TextColor, &p.text},
		{"shadow", s.ShadowColor, &p.shadow},
	} {
		if *c.dst, err = ParseHexColor(c.hex); err != nil {
			return palette{}, fmt.Errorf("invalid %s color %q: %w", c.name, c.hex, err)
		}
	}
	return p, nil
}

// ParseHexColor parses a hex color string like "#FF0000" or "#FF000080".
// The leading '#' is optional.
func ParseHexColor(hex string) (color.NRGBA, error) {
	if len(hex) == 0 {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	hex = strings.TrimPrefix(hex, "#")

	alpha := uint8(255)
	switch len(hex) {
	case 6:
	case 8:
		a, err := strconv.ParseUint(hex[6:], 16, 8)
		if err != nil {
			return color.NRGBA{}, err
		}
		alpha = uint8(a)
		hex = hex[:6]
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color length")
	}

	c, err := colorful.Hex("#" + hex)
	if err != nil {
		return color.NRGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// CoinLabel returns the two annotation lines of a coin, e.g.
// "Quarter (Heads Up)" and "45.20% Match".
func CoinLabel(c coins.ClassifiedCoin) (string, string) {
	return c.Label(), fmt.Sprintf("%.2f%% Match", c.MatchPercent)
}

// TotalLabel returns the collection total line.
func TotalLabel(total coins.Value) string {
	return fmt.Sprintf("Total Value of Collection: %s", total)
}

// Annotate draws a detection result onto a copy of its processed image.
//
// Every candidate ellipse is outlined. Every classified coin additionally gets
// a bounding box with its name and match percentage below it, and the total
// value is written near the top-left corner.
func Annotate(res *coins.Result, style Style) (*image.NRGBA, error) {
	if res == nil || res.Image == nil {
		return nil, fmt.Errorf("result has no image to annotate")
	}
	p, err := style.palette()
	if err != nil {
		return nil, err
	}

	bounds := res.Image.Bounds()
	dst := image.NewNRGBA(bounds)
	draw.Draw(dst, bounds, res.Image, bounds.Min, draw.Src)

	for _, d := range res.Detections {
		drawEllipse(dst, d.Candidate.Ellipse, style.EllipseThickness, p.ellipse)
	}

	for _, d := range res.Detections {
		if d.Coin == nil {
			continue
		}
		r := d.Candidate.Bounds
		drawRect(dst, r, style.BoxThickness, p.box)

		name, match := CoinLabel(*d.Coin)
		drawLabel(dst, r.Min.X, r.Max.Y+15, name, p.text, p.shadow)
		drawLabel(dst, r.Min.X, r.Max.Y+30, match, p.text, p.shadow)
	}

	drawLabel(dst, 30, 60, TotalLabel(res.Total), p.text, p.shadow)
	return dst, nil
}

// AnnotateResult contains an annotated image encoded as base64 PNG.
type AnnotateResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// AnnotateBase64 annotates res and encodes the image for transport.
func AnnotateBase64(res *coins.Result, style Style) (*AnnotateResult, error) {
	img, err := Annotate(res, style)
	if err != nil {
		return nil, err
	}
	encoded, err := imaging.EncodePNGBase64(img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &AnnotateResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// drawEllipse strokes an ellipse outline by stamping discs along its perimeter.
func drawEllipse(img *image.NRGBA, e detection.Ellipse, thickness int, c color.NRGBA) {
	a, b := e.Major/2, e.Minor/2
	if a <= 0 || b <= 0 {
		return
	}
	theta := e.Angle * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)

	steps := int(2*math.Pi*a) + 8
	for i := 0; i < steps; i++ {
		t := 2 * math.Pi * float64(i) / float64(steps)
		x := a * math.Cos(t)
		y := b * math.Sin(t)
		px := e.Center.X + x*cos - y*sin
		py := e.Center.Y + x*sin + y*cos
		stamp(img, int(math.Round(px)), int(math.Round(py)), thickness, c)
	}
}

// stamp fills a disc of the given diameter centred at (cx, cy).
func stamp(img *image.NRGBA, cx, cy, diameter int, c color.NRGBA) {
	if diameter < 1 {
		diameter = 1
	}
	r := float64(diameter) / 2
	lo := -(diameter - 1) / 2
	hi := diameter / 2
	for dy := lo; dy <= hi; dy++ {
		for dx := lo; dx <= hi; dx++ {
			if float64(dx*dx+dy*dy) <= r*r {
				setPixel(img, cx+dx, cy+dy, c)
			}
		}
	}
}

// drawRect strokes the inside of r with the given line thickness.
func drawRect(img *image.NRGBA, r image.Rectangle, thickness int, c color.NRGBA) {
	if thickness < 1 {
		thickness = 1
	}
	for i := 0; i < thickness; i++ {
		x1, y1 := r.Min.X+i, r.Min.Y+i
		x2, y2 := r.Max.X-1-i, r.Max.Y-1-i
		if x1 > x2 || y1 > y2 {
			return
		}
		for x := x1; x <= x2; x++ {
			setPixel(img, x, y1, c)
			setPixel(img, x, y2, c)
		}
		for y := y1; y <= y2; y++ {
			setPixel(img, x1, y, c)
			setPixel(img, x2, y, c)
		}
	}
}

// setPixel blends c over the pixel at (x, y), ignoring points outside img.
func setPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	if c.A == 255 {
		img.SetNRGBA(x, y, c)
		return
	}
	draw.Draw(img, image.Rect(x, y, x+1, y+1), image.NewUniform(c), image.Point{}, draw.Over)
}

// drawLabel writes text with its baseline at (x, y) using the 7x13 bitmap
// face, preceded by a one pixel shadow offset down and right.
func drawLabel(img *image.NRGBA, x, y int, text string, fg, shadow color.NRGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(shadow),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x+1, y+1),
	}
	d.DrawString(text)

	d.Src = image.NewUniform(fg)
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}

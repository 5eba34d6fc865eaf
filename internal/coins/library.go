package coins

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	cimaging "github.com/ironsheep/coin-counter/internal/imaging"
)

// Denomination is a US coin denomination.
type Denomination int

const (
	Penny Denomination = iota
	Nickel
	Dime
	Quarter
)

var denominationNames = [...]string{"Penny", "Nickel", "Dime", "Quarter"}

// String returns the capitalised name, e.g. "Quarter".
func (d Denomination) String() string {
	if d < Penny || d > Quarter {
		return fmt.Sprintf("Denomination(%d)", int(d))
	}
	return denominationNames[d]
}

// Cents returns the face value of the denomination.
func (d Denomination) Cents() int {
	switch d {
	case Penny:
		return 1
	case Nickel:
		return 5
	case Dime:
		return 10
	case Quarter:
		return 25
	}
	return 0
}

// MarshalText encodes the denomination as its lowercase name.
func (d Denomination) MarshalText() ([]byte, error) {
	if d < Penny || d > Quarter {
		return nil, fmt.Errorf("unknown denomination %d", int(d))
	}
	return []byte(strings.ToLower(d.String())), nil
}

// UnmarshalText accepts a denomination name in any case.
func (d *Denomination) UnmarshalText(text []byte) error {
	for i, name := range denominationNames {
		if strings.EqualFold(name, string(text)) {
			*d = Denomination(i)
			return nil
		}
	}
	return fmt.Errorf("unknown denomination %q", text)
}

// Side is the face of a coin shown to the camera.
type Side int

const (
	Heads Side = iota
	Tails
)

// String returns "Heads" or "Tails".
func (s Side) String() string {
	switch s {
	case Heads:
		return "Heads"
	case Tails:
		return "Tails"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// MarshalText encodes the side as "heads" or "tails".
func (s Side) MarshalText() ([]byte, error) {
	if s != Heads && s != Tails {
		return nil, fmt.Errorf("unknown side %d", int(s))
	}
	return []byte(strings.ToLower(s.String())), nil
}

// UnmarshalText accepts "heads" or "tails" in any case.
func (s *Side) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "heads":
		*s = Heads
	case "tails":
		*s = Tails
	default:
		return fmt.Errorf("unknown side %q", text)
	}
	return nil
}

// TemplateKey identifies one reference image.
type TemplateKey struct {
	Denomination Denomination `json:"denomination"`
	Side         Side         `json:"side"`
}

// TemplateKeys lists every key in library order. The position of a key in
// this list is its template index.
var TemplateKeys = [...]TemplateKey{
	{Penny, Heads}, {Penny, Tails},
	{Nickel, Heads}, {Nickel, Tails},
	{Dime, Heads}, {Dime, Tails},
	{Quarter, Heads}, {Quarter, Tails},
}

// Name returns the camel-case template name, e.g. "quarterHeads".
func (k TemplateKey) Name() string {
	return strings.ToLower(k.Denomination.String()) + k.Side.String()
}

// FileName returns the default template file name, e.g. "quarterHeads.jpg".
func (k TemplateKey) FileName() string {
	return k.Name() + ".jpg"
}

// Label returns the human readable name, e.g. "Quarter (Heads Up)".
func (k TemplateKey) Label() string {
	return fmt.Sprintf("%s (%s Up)", k.Denomination, k.Side)
}

// Index returns the template index of k, or -1 for an unknown key.
func (k TemplateKey) Index() int {
	for i, key := range TemplateKeys {
		if key == k {
			return i
		}
	}
	return -1
}

// Library is the immutable set of reference images, one per TemplateKey.
// It is safe for concurrent use.
type Library struct {
	images [len(TemplateKeys)]*image.NRGBA
}

// NewLibrary builds a library from exactly one non-empty image per key.
// The images are copied, so later changes to the map do not affect it.
func NewLibrary(templates map[TemplateKey]image.Image) (*Library, error) {
	if len(templates) != len(TemplateKeys) {
		return nil, fmt.Errorf("%w: got %d templates, want %d", ErrInvalidLibrary, len(templates), len(TemplateKeys))
	}

	lib := &Library{}
	for i, key := range TemplateKeys {
		img, ok := templates[key]
		if !ok {
			return nil, fmt.Errorf("%w: missing template %s", ErrInvalidLibrary, key.Name())
		}
		if img == nil || img.Bounds().Empty() {
			return nil, fmt.Errorf("%w: template %s is empty", ErrInvalidLibrary, key.Name())
		}
		lib.images[i] = imaging.Clone(img)
	}
	return lib, nil
}

// templateExtensions are tried in order when looking for a template file.
var templateExtensions = []string{".jpg", ".jpeg", ".png"}

// LoadLibrary reads the eight templates from dir. Each template is looked up
// as <name>.jpg, <name>.jpeg or <name>.png, e.g. "pennyHeads.jpg".
//
// Entries in overrides replace the default path of their key; relative
// override paths are resolved against dir.
func LoadLibrary(dir string, cache *cimaging.ImageCache, overrides map[TemplateKey]string) (*Library, error) {
	if cache == nil {
		cache = cimaging.NewImageCache()
	}

	templates := make(map[TemplateKey]image.Image, len(TemplateKeys))
	for _, key := range TemplateKeys {
		path, err := templatePath(dir, key, overrides)
		if err != nil {
			return nil, err
		}
		img, err := cache.Load(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load template %s: %v", ErrInvalidLibrary, key.Name(), err)
		}
		templates[key] = img
	}
	return NewLibrary(templates)
}

func templatePath(dir string, key TemplateKey, overrides map[TemplateKey]string) (string, error) {
	if p, ok := overrides[key]; ok && p != "" {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		return p, nil
	}

	for _, ext := range templateExtensions {
		p := filepath.Join(dir, key.Name()+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: failed to stat %s: %v", ErrInvalidLibrary, p, err)
		}
	}
	return "", fmt.Errorf("%w: template %s not found in %s", ErrInvalidLibrary, key.FileName(), dir)
}

// Len returns the number of templates (always 8).
func (l *Library) Len() int {
	return len(l.images)
}

// Key returns the key of template i.
func (l *Library) Key(i int) TemplateKey {
	return TemplateKeys[i]
}

// Image returns template i. The returned image must not be modified.
func (l *Library) Image(i int) *image.NRGBA {
	return l.images[i]
}

package coins

import (
	"fmt"

	"github.com/ironsheep/coin-counter/internal/detection"
	"github.com/ironsheep/coin-counter/internal/imaging"
)

// Config holds every tunable of the detection and classification pipeline.
// A Config is passed by value and never modified by the pipeline.
type Config struct {
	// PrimaryEdge drives the edge map used to find coin outlines.
	PrimaryEdge imaging.EdgeParams `json:"primary_edge" yaml:"primary_edge"`

	// ProfileEdge drives the edge maps compared between patches and templates.
	ProfileEdge imaging.EdgeParams `json:"profile_edge" yaml:"profile_edge"`

	// MinContourPoints is the minimum number of simplified contour points.
	MinContourPoints int `json:"min_contour_points" yaml:"min_contour_points"`

	// MinContourArea is the exclusive lower bound on contour area in pixels.
	MinContourArea float64 `json:"min_contour_area" yaml:"min_contour_area"`

	// EllipseFitTolerance bounds the contour to ellipse area ratio.
	EllipseFitTolerance float64 `json:"ellipse_fit_tolerance" yaml:"ellipse_fit_tolerance"`

	// RotationStepDegrees is the angular step of the template rotation search.
	RotationStepDegrees int `json:"rotation_step_degrees" yaml:"rotation_step_degrees"`

	// AcceptanceThreshold is the exclusive minimum overlap percentage for a
	// candidate to be classified as a coin.
	AcceptanceThreshold float64 `json:"acceptance_threshold" yaml:"acceptance_threshold"`

	// MaxInputDimension caps the larger side of the source image; larger images
	// are shrunk proportionally before detection. Zero disables the cap.
	MaxInputDimension int `json:"max_input_dimension" yaml:"max_input_dimension"`

	// Workers bounds the goroutines used per image; zero means one per CPU.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultConfig returns the tuned pipeline constants.
func DefaultConfig() Config {
	return Config{
		PrimaryEdge: imaging.EdgeParams{
			Passes:     6,
			KernelSize: 5,
			Sigma:      2.0,
			Low:        25,
			High:       50,
			DilateSize: 3,
		},
		ProfileEdge: imaging.EdgeParams{
			Passes:     3,
			KernelSize: 3,
			Sigma:      2.0,
			Low:        20,
			High:       40,
		},
		MinContourPoints:    5,
		MinContourArea:      750,
		EllipseFitTolerance: 0.997,
		RotationStepDegrees: 5,
		AcceptanceThreshold: 38.0,
		MaxInputDimension:   2500,
	}
}

// WithAcceptanceThreshold returns a copy with a different acceptance threshold.
func (c Config) WithAcceptanceThreshold(pct float64) Config {
	c.AcceptanceThreshold = pct
	return c
}

// WithEllipseFitTolerance returns a copy with a different ellipse tolerance.
func (c Config) WithEllipseFitTolerance(tol float64) Config {
	c.EllipseFitTolerance = tol
	return c
}

// WithWorkers returns a copy with a different worker count.
func (c Config) WithWorkers(n int) Config {
	c.Workers = n
	return c
}

// FilterParams returns the candidate filter settings of c.
func (c Config) FilterParams() detection.FilterParams {
	return detection.FilterParams{
		MinPoints: c.MinContourPoints,
		MinArea:   c.MinContourArea,
		Tolerance: c.EllipseFitTolerance,
	}
}

// Validate checks every field and returns an error wrapping ErrInvalidConfig
// describing the first problem found.
func (c Config) Validate() error {
	if err := c.PrimaryEdge.Validate(); err != nil {
		return fmt.Errorf("%w: primary edge: %v", ErrInvalidConfig, err)
	}
	if c.PrimaryEdge.Passes < 1 {
		return fmt.Errorf("%w: primary edge needs at least one blur pass", ErrInvalidConfig)
	}
	if err := c.ProfileEdge.Validate(); err != nil {
		return fmt.Errorf("%w: profile edge: %v", ErrInvalidConfig, err)
	}
	if c.ProfileEdge.Passes < 1 {
		return fmt.Errorf("%w: profile edge needs at least one blur pass", ErrInvalidConfig)
	}
	if c.MinContourPoints < 5 {
		return fmt.Errorf("%w: min contour points must be at least 5, got %d", ErrInvalidConfig, c.MinContourPoints)
	}
	if c.MinContourArea < 0 {
		return fmt.Errorf("%w: min contour area must not be negative, got %g", ErrInvalidConfig, c.MinContourArea)
	}
	if c.EllipseFitTolerance <= 0 || c.EllipseFitTolerance > 1 {
		return fmt.Errorf("%w: ellipse fit tolerance must be in (0,1], got %g", ErrInvalidConfig, c.EllipseFitTolerance)
	}
	if c.RotationStepDegrees < 1 || c.RotationStepDegrees > 360 {
		return fmt.Errorf("%w: rotation step must be in [1,360], got %d", ErrInvalidConfig, c.RotationStepDegrees)
	}
	if c.AcceptanceThreshold < 0 {
		return fmt.Errorf("%w: acceptance threshold must not be negative, got %g", ErrInvalidConfig, c.AcceptanceThreshold)
	}
	if c.MaxInputDimension < 0 {
		return fmt.Errorf("%w: max input dimension must not be negative, got %d", ErrInvalidConfig, c.MaxInputDimension)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	}
	return nil
}

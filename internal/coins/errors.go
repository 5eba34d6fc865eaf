package coins

import "errors"

var (
	// ErrInvalidInput is returned by Detect for images with zero rows or columns.
	ErrInvalidInput = errors.New("invalid input image")

	// ErrInvalidLibrary is returned when a template library is missing entries,
	// has unexpected entries, or holds an empty image.
	ErrInvalidLibrary = errors.New("invalid template library")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

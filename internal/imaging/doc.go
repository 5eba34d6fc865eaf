// Package imaging provides the image plumbing for the coin counter.
//
// This package implements the pixel-level stages of coin detection: loading and
// caching photographs, proportional pre-resizing, cropping, and the edge map
// builder shared by the primary detection pass and the patch profiling pass.
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, Min is inclusive (top-left) and Max is exclusive (bottom-right)
//
// Every image returned by this package has its bounds at the origin.
//
// # Edge Maps
//
// An edge map is an *image.Gray whose pixels are exactly 0 (no edge) or 255
// (edge). BuildEdgeMap produces one from any image according to EdgeParams:
// grayscale conversion, repeated Gaussian smoothing, Canny edge detection and an
// optional dilation. CountEdges returns the number of edge pixels.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. All other functions are
// stateless and never modify their inputs, so they can be called concurrently.
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Images with zero width or height (ErrEmptyImage)
//   - Invalid edge parameters or crop regions
//   - File I/O errors during image loading or saving
package imaging

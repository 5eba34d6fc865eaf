// Package coins classifies and values the coins found in a photograph.
//
// A Detector combines the geometric stages of package detection with a fixed
// Library of eight reference images (heads and tails of the penny, nickel,
// dime and quarter):
//
//  1. The source is shrunk so its larger side fits Config.MaxInputDimension.
//  2. A primary edge map is built and ellipse candidates are extracted.
//  3. Each candidate patch is profiled into a fine edge map.
//  4. Every template, scaled to the patch width, is rotated through a full
//     turn and compared with the patch edges (MatchRotations).
//  5. The template with the highest overlap wins; it becomes a coin only when
//     its overlap is strictly above Config.AcceptanceThreshold (Classify).
//  6. The face values of all coins are summed in cents (TotalValue).
//
// # Concurrency
//
// Library is immutable and Profiler guards its template cache with a mutex, so
// one Detector can serve many goroutines. Within one image, candidates are
// processed on Config.Workers goroutines and the eight template matches of a
// candidate run concurrently; results never depend on scheduling order.
//
// # Errors
//
// Setup problems are reported by NewLibrary, LoadLibrary and NewDetector as
// ErrInvalidLibrary or ErrInvalidConfig. Detect returns ErrInvalidInput for
// empty images. Contours that cannot be fitted, templates without edges and
// candidates below the threshold are normal outcomes, not errors.
package coins

// Package detection finds coin-shaped regions in an edge map.
//
// This package implements the geometric half of the coin pipeline: it turns a
// binary edge map into closed outer contours, fits an ellipse to each contour,
// keeps the contours whose area agrees with their ellipse, and cuts the masked
// image patch for every surviving candidate.
//
// # Algorithm Overview
//
//  1. Contours: Label 8-connected edge regions, keep the outermost ones and
//     trace their boundaries (Moore neighbour tracing)
//  2. Ellipse Fit: Direct least-squares conic fit constrained to ellipses
//  3. Filtering: Drop contours with too few points, too little area, or an
//     area ratio outside the tolerance band
//  4. Patches: Crop the candidate bounds and black out pixels outside the ellipse
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Bounding boxes use inclusive top-left and exclusive bottom-right
//
// Angles are in degrees measured from +X towards +Y, which is clockwise on
// screen.
//
// # Ratio Test
//
// A contour is a candidate when
//
//	tolerance <= contourArea / (π·major/2·minor/2) <= (1-tolerance)+1
//
// With the default tolerance of 0.997, only contours within 0.3% of a perfect
// ellipse survive. Round coins photographed from above pass, while shadows,
// text and rectangular objects are rejected.
//
// # Limitations
//
// Overlapping or touching coins merge into a single region whose outline is not
// elliptical, so they are rejected rather than split.
package detection

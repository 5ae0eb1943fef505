// Package fiber measures fiber diameters in micrographs.
//
// An [Analyzer] crops the image to the rows above the instrument's info bar,
// splits it into four quadrants, detects the fiber outlines in each one and
// converts the shorter side of every bounding box to nanometers with the
// pixels-per-micrometer calibration.
//
// # Statistics
//
// Each quadrant's mean is taken over its first 50 diameters (configurable)
// in detection order. The overall figure is 1000 times the unweighted mean
// of the four quadrant means in micrometers, so every quadrant counts
// equally no matter how many fibers it holds. The flat measurement list in
// [Result] carries every diameter, not just the sampled ones.
//
// # Errors
//
// Inputs are validated before any pixel is touched. Callers test the
// sentinels with errors.Is:
//
//   - [ErrInvalidParameter]: bad cutoff, calibration or image width
//   - [ErrDecodeFailure]: nil or empty image
//   - [ErrEmptyQuadrant]: some quadrant had no contours; errors.As with a
//     [*QuadrantError] tells which
//
// # Concurrency
//
// Quadrants run on their own goroutines when Options.Parallel is set. Each
// worker writes only its own slot; the annotated copy is drawn after all
// workers finish.
package fiber

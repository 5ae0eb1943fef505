// Package detection turns edge maps into fiber bounding boxes.
//
// A fiber cross-section in a micrograph shows up in the Canny edge map as a
// closed outline. The package traces the outermost border of every connected
// group of edge pixels and reports its axis-aligned bounding box; outlines
// nested inside another outline (inner walls, debris inside a fiber) are
// ignored.
//
// # Backends
//
// Detection is pluggable through the [Detector] interface:
//
//   - "native": pure Go Canny from the imaging package followed by
//     [FindExternalContours]. Always available.
//   - "opencv": gocv bindings to OpenCV's Canny and findContours. Only
//     compiled in with `-tags opencv` and cgo enabled.
//
// Use [NewDetector] to select one by name and [Backends] to list what the
// running binary supports.
//
// # Coordinate System
//
// Boxes are reported in the local coordinates of the image passed to
// Detect, with (0, 0) at its top-left pixel regardless of the image's
// Bounds().Min. Width and Height count pixels, so a one-pixel contour is 1x1.
// Callers add the quadrant offset to place boxes in the full image.
//
// # Ordering
//
// Both backends return contours in the order OpenCV's external retrieval
// produces: last-found first. The native scan meets borders top to bottom,
// then left to right, so the bottom-most contour comes first. Only the first
// samples of a quadrant enter its mean, so this order is part of the result.
package detection

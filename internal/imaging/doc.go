// Package imaging provides the raster operations behind fiber measurement.
//
// This package implements the image-level stages of the pipeline: loading and
// caching micrographs, cropping the analysed rows, partitioning the crop into
// quadrants, Canny edge extraction, and drawing detected bounding boxes onto a
// copy of the crop. All operations work with standard Go image.Image types and
// use a coordinate system where (0,0) is at the top-left corner, X increases
// rightward, and Y increases downward.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - A Region's offset is expressed in the coordinate space of the cropped
//     image, so boxes found inside a region translate back by adding the offset
//
// # Quadrants
//
// Partition splits an image into four regions by halving width and height with
// integer division. When a dimension is odd, the right column or bottom row of
// regions absorbs the extra pixel. Regions are always returned in the order
// top-left, top-right, bottom-left, bottom-right.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Canny, Partition and the
// drawing helpers are stateless; Annotate never mutates its source image.
//
// # Error Handling
//
// Functions return errors wrapping ErrInvalidParameter for out-of-range crop
// requests and ErrDecodeFailure for nil, empty or undecodable images, so
// callers can classify failures with errors.Is.
package imaging

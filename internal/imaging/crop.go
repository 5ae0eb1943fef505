package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// QuadrantNames lists the quadrants in the fixed order Partition returns them.
var QuadrantNames = [4]string{"top-left", "top-right", "bottom-left", "bottom-right"}

// Region is a rectangular sub-view of a cropped image.
//
// OffsetX and OffsetY locate the region inside the cropped image; a point
// (x, y) local to the region maps to (x+OffsetX, y+OffsetY) in the crop.
type Region struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	OffsetX int    `json:"offset_x"`
	OffsetY int    `json:"offset_y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// Rect returns the region as a rectangle in cropped-image coordinates.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.OffsetX, r.OffsetY, r.OffsetX+r.Width, r.OffsetY+r.Height)
}

// Empty reports whether the region contains no pixels.
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// CropRows keeps rows [0, cutoff) of img and returns them as a new image
// whose bounds start at (0,0).
//
// The source image is not modified. A cutoff equal to the image height keeps
// the whole image.
func CropRows(img image.Image, cutoff int) (*image.NRGBA, error) {
	if err := CheckBuffer(img); err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	if cutoff <= 0 || cutoff > bounds.Dy() {
		return nil, fmt.Errorf("%w: cutoff %d outside image height 1..%d",
			ErrInvalidParameter, cutoff, bounds.Dy())
	}

	return imaging.Crop(img, image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+cutoff)), nil
}

// Partition splits a width x height image into four quadrants.
//
// The halves are computed with integer division, so the regions always tile
// the image exactly: the top-left region is floor(w/2) x floor(h/2) and the
// remaining regions absorb any odd column or row.
func Partition(width, height int) [4]Region {
	midX := width / 2
	midY := height / 2

	return [4]Region{
		{Index: 0, Name: QuadrantNames[0], OffsetX: 0, OffsetY: 0, Width: midX, Height: midY},
		{Index: 1, Name: QuadrantNames[1], OffsetX: midX, OffsetY: 0, Width: width - midX, Height: midY},
		{Index: 2, Name: QuadrantNames[2], OffsetX: 0, OffsetY: midY, Width: midX, Height: height - midY},
		{Index: 3, Name: QuadrantNames[3], OffsetX: midX, OffsetY: midY, Width: width - midX, Height: height - midY},
	}
}

// RegionByName looks up a quadrant of a width x height image by name.
func RegionByName(width, height int, name string) (Region, error) {
	for _, r := range Partition(width, height) {
		if r.Name == name {
			return r, nil
		}
	}
	return Region{}, fmt.Errorf("%w: unknown quadrant %q", ErrInvalidParameter, name)
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// View returns the pixels of region r inside img without copying when the
// image type supports it. The returned image keeps img's coordinate space.
func View(img image.Image, r Region) image.Image {
	b := img.Bounds()
	rect := r.Rect().Add(b.Min).Intersect(b)
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect)
	}
	return imaging.Crop(img, rect)
}

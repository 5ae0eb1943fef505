package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// AnnotateOptions controls how bounding boxes are drawn.
type AnnotateOptions struct {
	// BoxColor is the outline color. Defaults to opaque green.
	BoxColor color.Color

	// Stroke is the outline width in pixels. Values below 1 are treated as 1.
	Stroke int

	// Guides draws the quadrant dividers in GuideColor when set.
	Guides     bool
	GuideColor color.Color
}

// DefaultAnnotateOptions draws 1-pixel green outlines without guides.
func DefaultAnnotateOptions() AnnotateOptions {
	return AnnotateOptions{
		BoxColor:   color.NRGBA{R: 0, G: 255, B: 0, A: 255},
		Stroke:     1,
		GuideColor: color.NRGBA{R: 255, G: 0, B: 0, A: 128},
	}
}

// Annotate returns a copy of src with every rectangle in boxes outlined.
//
// Each rectangle is given by its two corner points relative to src's top-left
// pixel; both corners are drawn, matching OpenCV's inclusive rectangle
// corners. Outlines falling outside the image are clipped. src is never
// modified.
func Annotate(src image.Image, boxes []image.Rectangle, opts AnnotateOptions) *image.NRGBA {
	dst := imaging.Clone(src)

	boxColor := opts.BoxColor
	if boxColor == nil {
		boxColor = DefaultAnnotateOptions().BoxColor
	}

	if opts.Guides {
		guideColor := opts.GuideColor
		if guideColor == nil {
			guideColor = DefaultAnnotateOptions().GuideColor
		}
		DrawGuides(dst, guideColor)
	}

	for _, b := range boxes {
		DrawRect(dst, b, boxColor, opts.Stroke)
	}

	return dst
}

// DrawRect outlines the rectangle with corners r.Min and r.Max (both
// inclusive) on dst. Thicker strokes grow outward from the corner points.
// Translucent colors are blended over dst; each pixel is covered once.
func DrawRect(dst *image.NRGBA, r image.Rectangle, c color.Color, stroke int) {
	if stroke < 1 {
		stroke = 1
	}
	r = r.Canon()
	for k := 0; k < stroke; k++ {
		x1, y1 := r.Min.X-k, r.Min.Y-k
		x2, y2 := r.Max.X+k, r.Max.Y+k
		blend(dst, image.Rectangle{Min: image.Pt(x1, y1), Max: image.Pt(x2+1, y1+1)}, c)
		if y2 != y1 {
			blend(dst, image.Rectangle{Min: image.Pt(x1, y2), Max: image.Pt(x2+1, y2+1)}, c)
		}
		blend(dst, image.Rectangle{Min: image.Pt(x1, y1+1), Max: image.Pt(x1+1, y2)}, c)
		if x2 != x1 {
			blend(dst, image.Rectangle{Min: image.Pt(x2, y1+1), Max: image.Pt(x2+1, y2)}, c)
		}
	}
}

// DrawGuides draws the vertical and horizontal quadrant dividers of dst.
func DrawGuides(dst *image.NRGBA, c color.Color) {
	bounds := dst.Bounds()
	regions := Partition(bounds.Dx(), bounds.Dy())
	midX := bounds.Min.X + regions[1].OffsetX
	midY := bounds.Min.Y + regions[2].OffsetY

	blend(dst, image.Rect(midX, bounds.Min.Y, midX+1, bounds.Max.Y), c)
	// The horizontal divider skips the crossing pixel.
	blend(dst, image.Rect(bounds.Min.X, midY, midX, midY+1), c)
	blend(dst, image.Rect(midX+1, midY, bounds.Max.X, midY+1), c)
}

// blend composites c over the part of r inside dst. Empty rectangles are
// ignored.
func blend(dst *image.NRGBA, r image.Rectangle, c color.Color) {
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}

// ParseHexColor parses a color string like "#00FF00", "0f0" or "#00FF0080".
//
// The optional fourth byte is the alpha channel; without it the color is
// fully opaque.
func ParseHexColor(hex string) (color.NRGBA, error) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if hex == "" {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}

	alpha := uint8(255)
	if len(hex) == 8 {
		a, err := strconv.ParseUint(hex[6:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in color %q: %w", hex, err)
		}
		alpha = uint8(a)
		hex = hex[:6]
	}

	c, err := colorful.Hex("#" + hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// EncodePNGBase64 encodes img as PNG and returns it base64 encoded.
func EncodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Preview shrinks img to fit in a maxSize x maxSize box, preserving the aspect
// ratio. Images already inside the box are returned unchanged.
func Preview(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	if maxSize <= 0 || (b.Dx() <= maxSize && b.Dy() <= maxSize) {
		return img
	}
	return imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
}

package fiber

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/ironsheep/fiber-gauge-mcp/internal/detection"
	"github.com/ironsheep/fiber-gauge-mcp/internal/imaging"
)

// DefaultPreviewSize bounds the thumbnail handed to display shells.
const DefaultPreviewSize = 400

// QuadrantResult is the detail for one quadrant. Boxes are in the quadrant's
// local coordinates; add Region.OffsetX/OffsetY to place them in the cropped
// image.
type QuadrantResult struct {
	Region      imaging.Region  `json:"region"`
	Boxes       []detection.Box `json:"boxes"`
	DiametersPx []int           `json:"diameters_px"`
	QuadrantStats
}

// Result is the outcome of one analysis run. Nothing in it refers back to
// the caller's image.
type Result struct {
	RunID   string `json:"run_id"`
	Backend string `json:"backend"`

	Cutoff              int     `json:"cutoff"`
	PixelsPerMicrometer float64 `json:"pixels_per_micrometer"`

	// Width and Height are the dimensions of the cropped image.
	Width  int `json:"width"`
	Height int `json:"height"`

	MeanDiameterNm float64 `json:"mean_diameter_nm"`

	// Measurements lists every detected diameter in nanometers, quadrant by
	// quadrant in detection order. It is not truncated by the sample limit.
	Measurements []float64 `json:"measurements_nm"`

	Quadrants [4]QuadrantResult `json:"quadrants"`

	// Annotated is the cropped image with every bounding box outlined.
	Annotated *image.NRGBA `json:"-"`
}

// Summary renders the text shown to the user after a run.
func (r *Result) Summary() string {
	return FormatSummary(r.MeanDiameterNm, r.Measurements)
}

// Preview returns the annotated image scaled to fit in maxSize x maxSize.
func (r *Result) Preview(maxSize int) image.Image {
	if maxSize <= 0 {
		maxSize = DefaultPreviewSize
	}
	return imaging.Preview(r.Annotated, maxSize)
}

// PreviewBase64 is Preview encoded as a base64 PNG.
func (r *Result) PreviewBase64(maxSize int) (string, error) {
	return imaging.EncodePNGBase64(r.Preview(maxSize))
}

// FormatSummary renders the mean with two decimals, a blank line, and the
// full measurement list.
func FormatSummary(meanNm float64, measurementsNm []float64) string {
	return fmt.Sprintf("Mean diameter: %.2f nm\n\nMeasured diameters (nm): %s",
		meanNm, FormatList(measurementsNm))
}

// FormatList renders values as "[a, b, c]" with the shortest exact decimal
// form, keeping one decimal for whole numbers (425.0, not 425).
func FormatList(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			s += ".0"
		}
		parts[i] = s
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

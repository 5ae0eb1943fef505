package fiber

import (
	"fmt"
	"math"

	"github.com/ironsheep/fiber-gauge-mcp/internal/detection"
)

// DiameterPx is the fiber diameter of a bounding box in pixels: the shorter
// side, since an elongated box is a fiber seen lengthwise.
func DiameterPx(b detection.Box) int {
	return min(b.Width, b.Height)
}

// ToNanometers converts a pixel length to nanometers with the given
// calibration, rounded to four decimal places.
func ToNanometers(px, pixelsPerMicrometer float64) (float64, error) {
	if err := checkCalibration(pixelsPerMicrometer); err != nil {
		return 0, err
	}
	return round4(1000 * px / pixelsPerMicrometer), nil
}

func checkCalibration(ppm float64) error {
	if math.IsNaN(ppm) || math.IsInf(ppm, 0) || ppm <= 0 {
		return fmt.Errorf("%w: pixels per micrometer must be a positive number, got %v",
			ErrInvalidParameter, ppm)
	}
	return nil
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

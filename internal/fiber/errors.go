package fiber

import (
	"errors"
	"fmt"

	"github.com/ironsheep/fiber-gauge-mcp/internal/imaging"
)

var (
	// ErrInvalidParameter reports a cutoff, calibration factor or image shape
	// the analyzer cannot work with. It is the same value as
	// imaging.ErrInvalidParameter so either can be used with errors.Is.
	ErrInvalidParameter = imaging.ErrInvalidParameter

	// ErrDecodeFailure reports a nil or empty image buffer.
	ErrDecodeFailure = imaging.ErrDecodeFailure

	// ErrEmptyQuadrant reports a quadrant in which no contour was detected,
	// leaving its mean undefined.
	ErrEmptyQuadrant = errors.New("no contours detected in quadrant")
)

// QuadrantError identifies the quadrant that had no contours. It unwraps to
// ErrEmptyQuadrant.
type QuadrantError struct {
	Index int
	Name  string
}

func (e *QuadrantError) Error() string {
	return fmt.Sprintf("%s quadrant (#%d): %v", e.Name, e.Index, ErrEmptyQuadrant)
}

func (e *QuadrantError) Unwrap() error {
	return ErrEmptyQuadrant
}

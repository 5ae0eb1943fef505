package imaging

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrInvalidParameter reports a crop or partition request outside the image.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDecodeFailure reports an image buffer that is nil, empty or cannot be decoded.
	ErrDecodeFailure = errors.New("image decode failure")
)

// CheckBuffer fails with ErrDecodeFailure when img is nil or has no pixels.
func CheckBuffer(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil image buffer", ErrDecodeFailure)
	}
	if img.Bounds().Empty() {
		return fmt.Errorf("%w: empty image buffer", ErrDecodeFailure)
	}
	return nil
}

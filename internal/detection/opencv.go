//go:build opencv && cgo

package detection

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ironsheep/fiber-gauge-mcp/internal/imaging"
)

// OpenCVBackend is the name of the gocv detector. It is only registered in
// binaries built with the "opencv" tag and a working OpenCV installation.
const OpenCVBackend = "opencv"

func init() {
	Register(OpenCVBackend, func() Detector { return opencvDetector{} })
}

type opencvDetector struct{}

func (opencvDetector) Name() string { return OpenCVBackend }

func (opencvDetector) Detect(img image.Image, p imaging.CannyParams) ([]Box, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.BlurRadius > 0 {
		return nil, fmt.Errorf("%w: blur_radius is not supported by the %s backend",
			imaging.ErrInvalidParameter, OpenCVBackend)
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	if p.L2Gradient {
		gocv.CannyWithParams(gray, &edges, float32(p.LowThreshold), float32(p.HighThreshold), 3, true)
	} else {
		gocv.Canny(gray, &edges, float32(p.LowThreshold), float32(p.HighThreshold))
	}

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	boxes := make([]Box, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		r := gocv.BoundingRect(contours.At(i))
		boxes = append(boxes, Box{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()})
	}
	return boxes, nil
}

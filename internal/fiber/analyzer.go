package fiber

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/fiber-gauge-mcp/internal/config"
	"github.com/ironsheep/fiber-gauge-mcp/internal/detection"
	"github.com/ironsheep/fiber-gauge-mcp/internal/imaging"
	"github.com/ironsheep/fiber-gauge-mcp/internal/logging"
)

// Options configures an Analyzer. In NewAnalyzer, zero-valued fields other
// than Parallel fall back to the matching DefaultOptions value.
type Options struct {
	Canny       imaging.CannyParams
	SampleLimit int

	// Parallel runs the four quadrants on separate goroutines.
	Parallel bool

	Annotate imaging.AnnotateOptions
	Detector detection.Detector
	Logger   logrus.FieldLogger
}

// DefaultOptions returns the settings that reproduce the reference
// measurements: Canny 50/150, 50 samples per quadrant, native detector.
func DefaultOptions() Options {
	d, _ := detection.NewDetector(detection.NativeBackend)
	return Options{
		Canny:       imaging.DefaultCannyParams,
		SampleLimit: DefaultSampleLimit,
		Parallel:    true,
		Annotate:    imaging.DefaultAnnotateOptions(),
		Detector:    d,
		Logger:      logging.Discard(),
	}
}

// OptionsFromConfig builds Options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config, logger logrus.FieldLogger) (Options, error) {
	opts := DefaultOptions()

	opts.Canny = imaging.CannyParams{
		LowThreshold:  cfg.Edges.LowThreshold,
		HighThreshold: cfg.Edges.HighThreshold,
		L2Gradient:    cfg.Edges.L2Gradient,
		BlurRadius:    cfg.Edges.BlurRadius,
	}
	if err := opts.Canny.Validate(); err != nil {
		return Options{}, err
	}
	opts.SampleLimit = cfg.Analysis.SampleLimit
	opts.Parallel = cfg.Analysis.Parallel

	d, err := detection.NewDetector(cfg.Edges.Backend)
	if err != nil {
		return Options{}, err
	}
	opts.Detector = d

	boxColor, err := imaging.ParseHexColor(cfg.Annotation.Color)
	if err != nil {
		return Options{}, err
	}
	opts.Annotate.BoxColor = boxColor
	opts.Annotate.Stroke = cfg.Annotation.Stroke
	opts.Annotate.Guides = cfg.Annotation.QuadrantGuides

	if logger != nil {
		opts.Logger = logger
	}
	return opts, nil
}

// Analyzer runs the measurement pipeline. It holds no per-run state and is
// safe for concurrent use.
type Analyzer struct {
	opts Options
}

// NewAnalyzer creates an Analyzer, filling unset options with defaults.
func NewAnalyzer(opts Options) *Analyzer {
	def := DefaultOptions()
	if opts.Canny == (imaging.CannyParams{}) {
		opts.Canny = def.Canny
	}
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = def.SampleLimit
	}
	if opts.Annotate.BoxColor == nil {
		opts.Annotate.BoxColor = def.Annotate.BoxColor
	}
	if opts.Annotate.Stroke <= 0 {
		opts.Annotate.Stroke = def.Annotate.Stroke
	}
	if opts.Detector == nil {
		opts.Detector = def.Detector
	}
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}
	return &Analyzer{opts: opts}
}

// Detector returns the contour detector the analyzer uses.
func (a *Analyzer) Detector() detection.Detector {
	return a.opts.Detector
}

// Backend names the detector the analyzer uses.
func (a *Analyzer) Backend() string {
	return a.opts.Detector.Name()
}

// Analyze measures the fibers in the top cutoff rows of img.
//
// The cropped image is split into four quadrants; contours are detected in
// each, the shorter side of every bounding box is taken as a diameter, and
// the overall mean is the mean of the four quadrant means. The returned
// Result carries an annotated copy of the cropped image; img itself is not
// modified.
//
// Errors:
//   - ErrDecodeFailure: img is nil or has no pixels
//   - ErrInvalidParameter: cutoff outside 1..height, calibration not a
//     positive number, or img narrower than 2 columns
//   - *QuadrantError (unwraps to ErrEmptyQuadrant): the first quadrant,
//     in quadrant order, in which nothing was detected
func (a *Analyzer) Analyze(ctx context.Context, img image.Image, cutoff int, pixelsPerMicrometer float64) (*Result, error) {
	if err := imaging.CheckBuffer(img); err != nil {
		return nil, err
	}
	if err := checkCalibration(pixelsPerMicrometer); err != nil {
		return nil, err
	}
	if w := img.Bounds().Dx(); w < 2 {
		return nil, fmt.Errorf("%w: image must be at least 2 columns wide, got %d", ErrInvalidParameter, w)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cropped, err := imaging.CropRows(img, cutoff)
	if err != nil {
		return nil, err
	}
	width, height := cropped.Bounds().Dx(), cropped.Bounds().Dy()
	regions := imaging.Partition(width, height)

	runID := uuid.NewString()
	log := a.opts.Logger.WithFields(logging.Fields{
		logging.RunIDKey: runID,
		"backend":        a.opts.Detector.Name(),
	})
	log.WithFields(logging.Fields{
		"cutoff": cutoff,
		"ppm":    pixelsPerMicrometer,
		"width":  width,
		"height": height,
	}).Debug("analysis started")

	var quads [4]QuadrantResult
	detect := func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := regions[i]
		if r.Empty() {
			// A one-row crop has zero-height top quadrants.
			quads[i] = QuadrantResult{Region: r, Boxes: []detection.Box{}, DiametersPx: []int{}}
			return nil
		}
		boxes, err := a.opts.Detector.Detect(imaging.View(cropped, r), a.opts.Canny)
		if err != nil {
			return fmt.Errorf("%s quadrant: %w", r.Name, err)
		}
		diameters := make([]int, len(boxes))
		for j, b := range boxes {
			diameters[j] = DiameterPx(b)
		}
		quads[i] = QuadrantResult{Region: r, Boxes: boxes, DiametersPx: diameters}
		return nil
	}

	if a.opts.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		ctx = gctx
		for i := range regions {
			g.Go(func() error { return detect(i) })
		}
		err = g.Wait()
	} else {
		for i := range regions {
			if err = detect(i); err != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}

	means := make([]float64, len(quads))
	for i := range quads {
		q := &quads[i]
		stats, err := QuadrantMean(q.DiametersPx, a.opts.SampleLimit, pixelsPerMicrometer)
		if err != nil {
			if errors.Is(err, ErrEmptyQuadrant) {
				log.WithField(logging.QuadrantKey, q.Region.Name).Warn("no contours detected")
				return nil, &QuadrantError{Index: q.Region.Index, Name: q.Region.Name}
			}
			return nil, err
		}
		q.QuadrantStats = stats
		means[i] = stats.MeanMicrometers

		log.WithFields(logging.Fields{
			logging.QuadrantKey: q.Region.Name,
			"contours":          len(q.Boxes),
			"sampled":           stats.Sampled,
			"mean_px":           stats.MeanPx,
		}).Debug("quadrant measured")
	}

	measurements := make([]float64, 0)
	rects := make([]image.Rectangle, 0)
	for _, q := range quads {
		for j, b := range q.Boxes {
			nm, err := ToNanometers(float64(q.DiametersPx[j]), pixelsPerMicrometer)
			if err != nil {
				return nil, err
			}
			measurements = append(measurements, nm)
			rects = append(rects, b.Translate(q.Region.OffsetX, q.Region.OffsetY).Corners())
		}
	}

	result := &Result{
		RunID:               runID,
		Backend:             a.opts.Detector.Name(),
		Cutoff:              cutoff,
		PixelsPerMicrometer: pixelsPerMicrometer,
		Width:               width,
		Height:              height,
		MeanDiameterNm:      OverallMeanNm(means),
		Measurements:        measurements,
		Quadrants:           quads,
		Annotated:           imaging.Annotate(cropped, rects, a.opts.Annotate),
	}

	log.WithFields(logging.Fields{
		"mean_nm":  fmt.Sprintf("%.2f", result.MeanDiameterNm),
		"contours": len(measurements),
	}).Info("analysis complete")

	return result, nil
}

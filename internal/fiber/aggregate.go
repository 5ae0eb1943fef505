package fiber

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// DefaultSampleLimit is how many diameters per quadrant enter its mean.
const DefaultSampleLimit = 50

// QuadrantStats summarizes the diameters of one quadrant.
type QuadrantStats struct {
	// Sampled is the number of diameters that entered the mean.
	Sampled int `json:"sampled"`

	MeanPx          float64 `json:"mean_px"`
	MeanMicrometers float64 `json:"mean_um"`
}

// QuadrantMean averages the first limit diameters (all of them when there
// are fewer) and converts the mean to micrometers. Samples after the limit
// are ignored, not filtered by value.
//
// An empty sample list returns ErrEmptyQuadrant; callers wrap it in a
// QuadrantError naming the quadrant.
func QuadrantMean(diametersPx []int, limit int, pixelsPerMicrometer float64) (QuadrantStats, error) {
	if err := checkCalibration(pixelsPerMicrometer); err != nil {
		return QuadrantStats{}, err
	}
	if limit < 1 {
		return QuadrantStats{}, fmt.Errorf("%w: sample limit must be at least 1, got %d", ErrInvalidParameter, limit)
	}
	if len(diametersPx) == 0 {
		return QuadrantStats{}, ErrEmptyQuadrant
	}

	n := min(len(diametersPx), limit)
	xs := make([]float64, n)
	for i, d := range diametersPx[:n] {
		xs[i] = float64(d)
	}
	mean := stat.Mean(xs, nil)

	return QuadrantStats{
		Sampled:         n,
		MeanPx:          mean,
		MeanMicrometers: mean / pixelsPerMicrometer,
	}, nil
}

// OverallMeanNm is 1000 times the unweighted mean of the per-quadrant means,
// so a quadrant with few fibers weighs as much as a crowded one.
func OverallMeanNm(quadrantMeansUm []float64) float64 {
	if len(quadrantMeansUm) == 0 {
		return 0
	}
	return 1000 * stat.Mean(quadrantMeansUm, nil)
}

package stitch

import "math"

// Drift correction gate thresholds. The first/last match has far less
// overlap than adjacent pairs, so a weak match means the gap angle would
// be built on noise.
const (
	driftMinInliers     = 10
	DriftMinInlierRatio = 0.3
)

// DriftCorrection closes the 360° loop by folding the first-to-last-image
// misalignment into a revised focal length. Computed at most once per run.
type DriftCorrection struct {
	GapAngle             float64 `json:"gap_angle_rad"`
	GapAngleDegrees      float64 `json:"gap_angle_deg"`
	OriginalFocalLength  float64 `json:"original_focal_length"`
	CorrectedFocalLength float64 `json:"corrected_focal_length"`
	NumImages            int     `json:"num_images"`
	Applied              bool    `json:"applied"`
}

// ShouldApplyDriftCorrection gates the correction on the quality of the
// first/last match: at least driftMinInliers inliers and an inlier ratio
// of at least minRatio. A false result is the expected "skipped" outcome,
// not a failure.
func ShouldApplyDriftCorrection(firstLast TranslationEstimate, minRatio float64) bool {
	if minRatio <= 0 {
		minRatio = DriftMinInlierRatio
	}
	if firstLast.InlierCount < driftMinInliers {
		return false
	}
	return firstLast.InlierRatio >= minRatio
}

// CorrectDrift computes the revised focal length for a full-revolution
// sweep. A perfect 360° pass accumulates exactly 2π of angular travel;
// any residual first/last misalignment after warping means the focal
// length used for warping was off by the same proportion:
//
//	θg = firstLast.dy / f
//	f' = f · (1 − θg / 2π)
//
// The correction is closed-form and applied once; it is not iterated to
// convergence.
func CorrectDrift(pairwise []TranslationEstimate, firstLast TranslationEstimate, focalLength float64) DriftCorrection {
	gap := firstLast.DY / focalLength
	return DriftCorrection{
		GapAngle:             gap,
		GapAngleDegrees:      gap * 180 / math.Pi,
		OriginalFocalLength:  focalLength,
		CorrectedFocalLength: focalLength * (1 - gap/(2*math.Pi)),
		NumImages:            len(pairwise) + 1,
		Applied:              true,
	}
}

package stitch

import (
	"math"
	"testing"
)

func TestCorrectDriftClosedForm(t *testing.T) {
	const focal = 500.0
	firstLast := TranslationEstimate{DY: focal * math.Pi / 6, InlierCount: 40, InlierRatio: 0.8}
	pairwise := make([]TranslationEstimate, 11)

	corr := CorrectDrift(pairwise, firstLast, focal)

	wantGap := math.Pi / 6
	if math.Abs(corr.GapAngle-wantGap) > 1e-9 {
		t.Fatalf("gap angle %.6f, want %.6f", corr.GapAngle, wantGap)
	}
	wantFocal := focal * (1 - wantGap/(2*math.Pi)) // 500 * 11/12
	if math.Abs(corr.CorrectedFocalLength-wantFocal) > 1e-9 {
		t.Fatalf("corrected focal %.6f, want %.6f", corr.CorrectedFocalLength, wantFocal)
	}
	if math.Abs(corr.GapAngleDegrees-30) > 1e-9 {
		t.Fatalf("gap angle degrees %.4f, want 30", corr.GapAngleDegrees)
	}
	if corr.OriginalFocalLength != focal {
		t.Fatalf("original focal %.2f, want %.2f", corr.OriginalFocalLength, focal)
	}
	if corr.NumImages != 12 {
		t.Fatalf("num images %d, want 12", corr.NumImages)
	}
	if !corr.Applied {
		t.Fatalf("correction should be marked applied")
	}
}

func TestShouldApplyDriftCorrectionGating(t *testing.T) {
	cases := []struct {
		name string
		est  TranslationEstimate
		want bool
	}{
		{"too few inliers regardless of ratio", TranslationEstimate{InlierCount: 5, InlierRatio: 0.95}, false},
		{"ratio below minimum", TranslationEstimate{InlierCount: 50, InlierRatio: 0.2}, false},
		{"both thresholds met", TranslationEstimate{InlierCount: 10, InlierRatio: 0.3}, true},
		{"strong match", TranslationEstimate{InlierCount: 120, InlierRatio: 0.7}, true},
		{"zero estimate", TranslationEstimate{}, false},
	}

	for _, tc := range cases {
		if got := ShouldApplyDriftCorrection(tc.est, DriftMinInlierRatio); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

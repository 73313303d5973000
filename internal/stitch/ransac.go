package stitch

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TranslationEstimate is the output of the robust estimator for one image
// pair. Immutable once computed. A zero-value estimate with
// InlierCount == 0 signals "no usable estimate"; callers branch on it
// rather than on an error.
type TranslationEstimate struct {
	DX          float64
	DY          float64
	InlierCount int
	InlierRatio float64
	TotalPoints int
	Inliers     []bool
}

// EstimateTranslation estimates the single 2D translation relating ptsA to
// ptsB via one-point random sampling with consensus. After the iteration
// budget is spent, the winning hypothesis is refined to the coordinate-wise
// median over its inlier set; the median keeps residual outliers inside the
// consensus set from dragging the result.
//
// The caller supplies the random source so runs are reproducible. Ties on
// inlier count keep the first hypothesis seen.
func EstimateTranslation(ptsA, ptsB []Keypoint, threshold float64, maxIters int, rng *rand.Rand) TranslationEstimate {
	n := len(ptsA)
	if n < 1 {
		return TranslationEstimate{Inliers: []bool{}}
	}

	var (
		bestCount int
		bestDX    float64
		bestDY    float64
		bestMask  = make([]bool, n)
	)

	mask := make([]bool, n)
	for iter := 0; iter < maxIters; iter++ {
		idx := rng.Intn(n)
		dx := ptsB[idx].X - ptsA[idx].X
		dy := ptsB[idx].Y - ptsA[idx].Y

		count := 0
		for i := 0; i < n; i++ {
			ex := ptsA[i].X + dx - ptsB[i].X
			ey := ptsA[i].Y + dy - ptsB[i].Y
			in := math.Hypot(ex, ey) < threshold
			mask[i] = in
			if in {
				count++
			}
		}

		if count > bestCount {
			bestCount = count
			bestDX = dx
			bestDY = dy
			copy(bestMask, mask)
		}
	}

	if bestCount > 0 {
		dxs := make([]float64, 0, bestCount)
		dys := make([]float64, 0, bestCount)
		for i := 0; i < n; i++ {
			if bestMask[i] {
				dxs = append(dxs, ptsB[i].X-ptsA[i].X)
				dys = append(dys, ptsB[i].Y-ptsA[i].Y)
			}
		}
		bestDX = median(dxs)
		bestDY = median(dys)
	}

	return TranslationEstimate{
		DX:          bestDX,
		DY:          bestDY,
		InlierCount: bestCount,
		InlierRatio: float64(bestCount) / float64(n),
		TotalPoints: n,
		Inliers:     bestMask,
	}
}

// median sorts xs in place. For an even count the two middle values are
// averaged, matching the usual definition rather than a quantile
// interpolation convention.
func median(xs []float64) float64 {
	sort.Float64s(xs)
	n := len(xs)
	if n%2 == 1 {
		return xs[n/2]
	}
	return stat.Mean(xs[n/2-1:n/2+1], nil)
}

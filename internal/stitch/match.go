package stitch

// Keypoint is a feature location in image coordinates.
type Keypoint struct {
	X float64
	Y float64
}

// Match pairs a query descriptor with one candidate in the train set.
type Match struct {
	QueryIdx int
	TrainIdx int
	Distance float64
}

// Detector finds keypoints and computes index-aligned descriptors.
// Implementations live outside this package; the pipeline treats them as
// opaque.
type Detector interface {
	Detect(im *Image) (keypoints []Keypoint, descriptors [][]float32, err error)
}

// Matcher returns, for each query descriptor, its k nearest candidates in
// the train set ordered by ascending distance.
type Matcher interface {
	KNNMatch(query, train [][]float32, k int) ([][]Match, error)
}

// Correspondence is one accepted point pair between two images.
type Correspondence struct {
	A Keypoint
	B Keypoint
}

// FilterMatches applies the distinctiveness ratio test: a candidate is
// kept only when its nearest match is significantly closer than the
// second-nearest (distance(best) < ratio·distance(second)). Candidates
// without a second neighbor are dropped as unverifiable. An empty result
// is valid output, not an error.
func FilterMatches(knn [][]Match, kpA, kpB []Keypoint, ratio float64) []Correspondence {
	var out []Correspondence
	for _, pair := range knn {
		if len(pair) < 2 {
			continue
		}
		best, second := pair[0], pair[1]
		if best.Distance < ratio*second.Distance {
			out = append(out, Correspondence{
				A: kpA[best.QueryIdx],
				B: kpB[best.TrainIdx],
			})
		}
	}
	return out
}

// SplitPoints unzips correspondences into two index-aligned point slices
// for the translation estimator.
func SplitPoints(corrs []Correspondence) (ptsA, ptsB []Keypoint) {
	ptsA = make([]Keypoint, len(corrs))
	ptsB = make([]Keypoint, len(corrs))
	for i, c := range corrs {
		ptsA[i] = c.A
		ptsB[i] = c.B
	}
	return ptsA, ptsB
}

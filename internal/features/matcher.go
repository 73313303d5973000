package features

import (
	"fmt"
	"math"
	"sort"

	"panostitch/internal/stitch"
)

// BruteForceMatcher exhaustively compares every query descriptor against
// every train descriptor using L2 distance. Quadratic but exact, which
// matters for the downstream distinctiveness test.
type BruteForceMatcher struct{}

// NewBruteForceMatcher returns a matcher.
func NewBruteForceMatcher() *BruteForceMatcher {
	return &BruteForceMatcher{}
}

// KNNMatch implements stitch.Matcher. For each query descriptor it
// returns up to k train candidates in ascending distance order. Queries
// receive fewer than k candidates when the train set is smaller than k.
func (m *BruteForceMatcher) KNNMatch(query, train [][]float32, k int) ([][]stitch.Match, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}
	out := make([][]stitch.Match, len(query))
	if len(train) == 0 {
		for i := range out {
			out[i] = []stitch.Match{}
		}
		return out, nil
	}

	for qi, q := range query {
		dists := make([]stitch.Match, 0, len(train))
		for ti, t := range train {
			d, err := l2Distance(q, t)
			if err != nil {
				return nil, fmt.Errorf("query %d vs train %d: %w", qi, ti, err)
			}
			dists = append(dists, stitch.Match{QueryIdx: qi, TrainIdx: ti, Distance: d})
		}
		sort.Slice(dists, func(a, b int) bool { return dists[a].Distance < dists[b].Distance })
		if len(dists) > k {
			dists = dists[:k]
		}
		out[qi] = dists
	}
	return out, nil
}

func l2Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("descriptor length mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

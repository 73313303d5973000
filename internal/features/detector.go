package features

import (
	"fmt"
	"math"
	"sort"

	"panostitch/internal/stitch"
)

// DetectorOptions tunes corner detection and description.
type DetectorOptions struct {
	MaxFeatures  int     // cap on returned keypoints, 0 means default
	QualityLevel float64 // fraction of the strongest response kept, (0,1)
	MinDistance  float64 // minimum pixel spacing between keypoints
	PatchSize    int     // odd descriptor patch side length
}

// DefaultDetectorOptions works for overlapping handheld frames.
func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{
		MaxFeatures:  500,
		QualityLevel: 0.01,
		MinDistance:  8,
		PatchSize:    9,
	}
}

// CornerDetector finds min-eigenvalue corners and describes each with a
// normalized intensity patch. Descriptors are index-aligned with the
// returned keypoints.
type CornerDetector struct {
	opts DetectorOptions
}

// NewCornerDetector validates options and returns a detector.
func NewCornerDetector(opts DetectorOptions) (*CornerDetector, error) {
	if opts.MaxFeatures <= 0 {
		opts.MaxFeatures = 500
	}
	if opts.QualityLevel <= 0 || opts.QualityLevel >= 1 {
		return nil, fmt.Errorf("quality level must be in (0,1), got %.4f", opts.QualityLevel)
	}
	if opts.MinDistance < 1 {
		opts.MinDistance = 1
	}
	if opts.PatchSize < 3 || opts.PatchSize%2 == 0 {
		return nil, fmt.Errorf("patch size must be odd and at least 3, got %d", opts.PatchSize)
	}
	return &CornerDetector{opts: opts}, nil
}

// Detect implements stitch.Detector.
func (d *CornerDetector) Detect(im *stitch.Image) ([]stitch.Keypoint, [][]float32, error) {
	if im == nil || im.Width <= 0 || im.Height <= 0 {
		return nil, nil, fmt.Errorf("invalid image")
	}

	gray := grayscale(im)
	response := cornerResponse(gray, im.Width, im.Height)

	candidates := localMaxima(response, im.Width, im.Height)
	if len(candidates) == 0 {
		return []stitch.Keypoint{}, [][]float32{}, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	floor := candidates[0].score * d.opts.QualityLevel

	selected := d.spaceFilter(candidates, floor)

	margin := d.opts.PatchSize / 2
	keypoints := make([]stitch.Keypoint, 0, len(selected))
	descriptors := make([][]float32, 0, len(selected))
	for _, c := range selected {
		if c.x < margin || c.y < margin || c.x >= im.Width-margin || c.y >= im.Height-margin {
			continue
		}
		desc := describePatch(gray, im.Width, c.x, c.y, d.opts.PatchSize)
		if desc == nil {
			continue
		}
		keypoints = append(keypoints, stitch.Keypoint{X: float64(c.x), Y: float64(c.y)})
		descriptors = append(descriptors, desc)
	}
	return keypoints, descriptors, nil
}

type candidate struct {
	x, y  int
	score float64
}

// spaceFilter keeps the strongest candidates subject to the minimum
// spacing, greedy in score order.
func (d *CornerDetector) spaceFilter(candidates []candidate, floor float64) []candidate {
	minDistSq := d.opts.MinDistance * d.opts.MinDistance
	var kept []candidate
	for _, c := range candidates {
		if c.score < floor {
			break
		}
		ok := true
		for _, k := range kept {
			dx := float64(c.x - k.x)
			dy := float64(c.y - k.y)
			if dx*dx+dy*dy < minDistSq {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, c)
			if len(kept) >= d.opts.MaxFeatures {
				break
			}
		}
	}
	return kept
}

func grayscale(im *stitch.Image) []float64 {
	out := make([]float64, im.Width*im.Height)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			r, g, b := im.At(x, y)
			out[y*im.Width+x] = 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
		}
	}
	return out
}

// cornerResponse computes the smaller eigenvalue of the structure tensor
// summed over a 3x3 window at each interior pixel. Flat regions and pure
// edges score near zero; corners score high in both gradient directions.
func cornerResponse(gray []float64, w, h int) []float64 {
	gx := make([]float64, w*h)
	gy := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			gx[i] = (gray[i+1] - gray[i-1]) / 2
			gy[i] = (gray[i+w] - gray[i-w]) / 2
		}
	}

	resp := make([]float64, w*h)
	for y := 2; y < h-2; y++ {
		for x := 2; x < w-2; x++ {
			var sxx, syy, sxy float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					i := (y+dy)*w + (x + dx)
					sxx += gx[i] * gx[i]
					syy += gy[i] * gy[i]
					sxy += gx[i] * gy[i]
				}
			}
			// min eigenvalue of [[sxx, sxy], [sxy, syy]]
			trace := sxx + syy
			det := sxx*syy - sxy*sxy
			disc := trace*trace/4 - det
			if disc < 0 {
				disc = 0
			}
			resp[y*w+x] = trace/2 - math.Sqrt(disc)
		}
	}
	return resp
}

// localMaxima keeps pixels that dominate their 3x3 neighborhood.
func localMaxima(resp []float64, w, h int) []candidate {
	var out []candidate
	for y := 3; y < h-3; y++ {
		for x := 3; x < w-3; x++ {
			v := resp[y*w+x]
			if v <= 0 {
				continue
			}
			best := true
			for dy := -1; dy <= 1 && best; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					if resp[(y+dy)*w+(x+dx)] > v {
						best = false
						break
					}
				}
			}
			if best {
				out = append(out, candidate{x: x, y: y, score: v})
			}
		}
	}
	return out
}

// describePatch flattens the patch around (cx, cy), removes its mean and
// scales to unit norm so the descriptor is invariant to brightness and
// contrast. Uniform patches have no usable signal and are rejected.
func describePatch(gray []float64, w, cx, cy, patch int) []float32 {
	half := patch / 2
	vals := make([]float64, 0, patch*patch)
	var sum float64
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			v := gray[(cy+dy)*w+(cx+dx)]
			vals = append(vals, v)
			sum += v
		}
	}
	mean := sum / float64(len(vals))

	var norm float64
	for i := range vals {
		vals[i] -= mean
		norm += vals[i] * vals[i]
	}
	if norm < 1e-12 {
		return nil
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(v / norm)
	}
	return out
}

package stitch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
)

// Options tunes one stitching run. Zero values are filled with defaults by
// normalize; validation failures abort before any stage runs.
type Options struct {
	RatioThreshold      float64 // distinctiveness ratio test, (0,1)
	RansacThreshold     float64 // inlier distance in pixels
	RansacMaxIters      int
	DriftCorrection     bool
	MinDriftInlierRatio float64
	BlendMethod         BlendMethod
	CropThreshold       uint8
	Workers             int
	Seed                int64
}

// DefaultOptions mirrors the tuning that works for handheld sweeps.
func DefaultOptions() Options {
	return Options{
		RatioThreshold:      0.7,
		RansacThreshold:     5.0,
		RansacMaxIters:      2000,
		DriftCorrection:     true,
		MinDriftInlierRatio: DriftMinInlierRatio,
		BlendMethod:         BlendAverage,
		CropThreshold:       DefaultCropThreshold,
		Workers:             4,
		Seed:                1,
	}
}

func (o *Options) normalize() error {
	if o.RatioThreshold == 0 {
		o.RatioThreshold = 0.7
	}
	if o.RatioThreshold <= 0 || o.RatioThreshold >= 1 {
		return fmt.Errorf("ratio threshold must be in (0,1), got %.3f", o.RatioThreshold)
	}
	if o.RansacThreshold <= 0 {
		o.RansacThreshold = 5.0
	}
	if o.RansacMaxIters <= 0 {
		o.RansacMaxIters = 2000
	}
	if o.MinDriftInlierRatio <= 0 {
		o.MinDriftInlierRatio = DriftMinInlierRatio
	}
	if o.CropThreshold == 0 {
		o.CropThreshold = DefaultCropThreshold
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	var err error
	o.BlendMethod, err = ParseBlendMethod(string(o.BlendMethod))
	return err
}

// PairRecord is the persisted outcome of aligning one image pair.
type PairRecord struct {
	PairA       int     `json:"pair_a"`
	PairB       int     `json:"pair_b"`
	DX          float64 `json:"dx"`
	DY          float64 `json:"dy"`
	NumMatches  int     `json:"num_matches"`
	NumInliers  int     `json:"num_inliers"`
	InlierRatio float64 `json:"inlier_ratio"`
}

// Result is everything one run produces: the cropped panorama plus the
// per-pair records and the optional drift correction for persistence.
type Result struct {
	Panorama    *Image
	Warped      []*Image // projections used for the final composite
	Pairs       []PairRecord
	FirstLast   *PairRecord
	Drift       *DriftCorrection
	Camera      CameraModel // final model, possibly drift-corrected
	Offsets     []PlacementOffset
	CropApplied bool
}

// Stitcher runs the full pipeline over an ordered image sequence. The
// detector and matcher are opaque collaborators; the random source feeds
// the estimator so runs are reproducible.
type Stitcher struct {
	opts    Options
	det     Detector
	matcher Matcher
	rng     *rand.Rand
	log     *slog.Logger
}

// NewStitcher validates options and wires the collaborators.
func NewStitcher(opts Options, det Detector, matcher Matcher, log *slog.Logger) (*Stitcher, error) {
	if det == nil || matcher == nil {
		return nil, fmt.Errorf("detector and matcher are required")
	}
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Stitcher{
		opts:    opts,
		det:     det,
		matcher: matcher,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		log:     log,
	}, nil
}

// Run stitches the ordered sequence into a single panorama. The sequence
// is fixed for the lifetime of the run; the input images are not retained
// past projection.
func (s *Stitcher) Run(ctx context.Context, images []*Image, cam CameraModel) (*Result, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("empty image sequence")
	}
	if err := cam.Validate(); err != nil {
		return nil, err
	}
	for i, im := range images {
		if err := ValidateAngularBound(im.Height, cam); err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
	}

	s.log.Info("stitching started",
		"images", len(images),
		"focal_length", cam.FocalLength,
		"blend", string(s.opts.BlendMethod),
		"drift_correction", s.opts.DriftCorrection)

	warped, err := s.projectAll(ctx, images, cam)
	if err != nil {
		return nil, err
	}

	keypoints, descriptors, err := s.detectAll(ctx, warped)
	if err != nil {
		return nil, err
	}

	res := &Result{Camera: cam}

	pairwise := make([]TranslationEstimate, 0, len(warped)-1)
	for i := 0; i+1 < len(warped); i++ {
		est, numMatches, err := s.alignPair(keypoints[i], descriptors[i], keypoints[i+1], descriptors[i+1])
		if err != nil {
			return nil, fmt.Errorf("pair %d-%d: %w", i, i+1, err)
		}
		pairwise = append(pairwise, est)
		res.Pairs = append(res.Pairs, pairRecord(i, i+1, est, numMatches))
		s.log.Info("pair aligned",
			"pair", fmt.Sprintf("%d-%d", i, i+1),
			"dx", est.DX, "dy", est.DY,
			"inliers", est.InlierCount, "matches", numMatches,
			"inlier_ratio", est.InlierRatio)
	}

	// Drift correction needs at least three images: with two, the 0-1
	// pair and the first/last pair are the same measurement, so any "gap"
	// is alignment noise rather than an unclosed sweep.
	if s.opts.DriftCorrection && len(warped) >= 3 {
		warped, cam, err = s.closeLoop(ctx, images, warped, cam, keypoints, descriptors, pairwise, res)
		if err != nil {
			return nil, err
		}
		res.Camera = cam
	}

	res.Offsets = AccumulateOffsets(pairwise)

	canvas, err := Composite(warped, res.Offsets, s.opts.BlendMethod, s.log)
	if err != nil {
		return nil, err
	}

	cropped := CropBorders(canvas, s.opts.CropThreshold, s.log)
	res.CropApplied = cropped != canvas
	res.Panorama = cropped
	res.Warped = warped

	s.log.Info("stitching finished",
		"width", cropped.Width, "height", cropped.Height,
		"focal_length", cam.FocalLength,
		"drift_applied", res.Drift != nil)
	return res, nil
}

func (s *Stitcher) projectAll(ctx context.Context, images []*Image, cam CameraModel) ([]*Image, error) {
	warped := make([]*Image, len(images))
	for i, im := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w, err := Project(im, cam, s.opts.Workers)
		if err != nil {
			return nil, fmt.Errorf("projecting image %d: %w", i, err)
		}
		warped[i] = w
	}
	return warped, nil
}

func (s *Stitcher) detectAll(ctx context.Context, warped []*Image) ([][]Keypoint, [][][]float32, error) {
	keypoints := make([][]Keypoint, len(warped))
	descriptors := make([][][]float32, len(warped))
	for i, im := range warped {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		kp, desc, err := s.det.Detect(im)
		if err != nil {
			return nil, nil, fmt.Errorf("detecting features in image %d: %w", i, err)
		}
		keypoints[i] = kp
		descriptors[i] = desc
		s.log.Debug("features detected", "image", i, "keypoints", len(kp))
	}
	return keypoints, descriptors, nil
}

// alignPair filters candidate matches and estimates the pair translation.
// Fewer than four accepted correspondences degrades to a zero estimate
// instead of failing the run.
func (s *Stitcher) alignPair(kpA []Keypoint, descA [][]float32, kpB []Keypoint, descB [][]float32) (TranslationEstimate, int, error) {
	if len(descA) == 0 || len(descB) == 0 {
		return TranslationEstimate{Inliers: []bool{}}, 0, nil
	}
	knn, err := s.matcher.KNNMatch(descA, descB, 2)
	if err != nil {
		return TranslationEstimate{}, 0, err
	}
	corrs := FilterMatches(knn, kpA, kpB, s.opts.RatioThreshold)
	if len(corrs) < 4 {
		s.log.Warn("not enough correspondences, using zero translation", "matches", len(corrs))
		return TranslationEstimate{Inliers: make([]bool, len(corrs)), TotalPoints: len(corrs)}, len(corrs), nil
	}
	ptsA, ptsB := SplitPoints(corrs)
	est := EstimateTranslation(ptsA, ptsB, s.opts.RansacThreshold, s.opts.RansacMaxIters, s.rng)
	return est, len(corrs), nil
}

// closeLoop matches the first and last images and, when the match is
// trustworthy, folds the gap angle into a corrected focal length and
// re-projects the whole sequence with it. The pairwise estimates and the
// placements derived from them stay as measured.
func (s *Stitcher) closeLoop(ctx context.Context, images, warped []*Image, cam CameraModel,
	keypoints [][]Keypoint, descriptors [][][]float32, pairwise []TranslationEstimate, res *Result) ([]*Image, CameraModel, error) {

	last := len(warped) - 1
	est, numMatches, err := s.alignPair(keypoints[0], descriptors[0], keypoints[last], descriptors[last])
	if err != nil {
		return nil, cam, fmt.Errorf("first/last pair: %w", err)
	}
	rec := pairRecord(0, last, est, numMatches)
	res.FirstLast = &rec

	if !ShouldApplyDriftCorrection(est, s.opts.MinDriftInlierRatio) {
		s.log.Warn("drift correction skipped, first/last match too weak",
			"inliers", est.InlierCount, "inlier_ratio", est.InlierRatio)
		return warped, cam, nil
	}

	corr := CorrectDrift(pairwise, est, cam.FocalLength)
	res.Drift = &corr
	s.log.Info("drift correction applied",
		"gap_angle_rad", corr.GapAngle,
		"gap_angle_deg", corr.GapAngleDegrees,
		"focal_length", corr.OriginalFocalLength,
		"corrected_focal_length", corr.CorrectedFocalLength)

	corrected := cam.WithFocalLength(corr.CorrectedFocalLength)
	rewarped, err := s.projectAll(ctx, images, corrected)
	if err != nil {
		return nil, cam, fmt.Errorf("re-projecting with corrected focal length: %w", err)
	}
	return rewarped, corrected, nil
}

func pairRecord(a, b int, est TranslationEstimate, numMatches int) PairRecord {
	return PairRecord{
		PairA:       a,
		PairB:       b,
		DX:          est.DX,
		DY:          est.DY,
		NumMatches:  numMatches,
		NumInliers:  est.InlierCount,
		InlierRatio: est.InlierRatio,
	}
}

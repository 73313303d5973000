package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"panostitch/internal/config"
	"panostitch/internal/features"
	"panostitch/internal/fsutil"
	"panostitch/internal/imgio"
	"panostitch/internal/stitch"
)

// StitchRequest describes one panorama job. Images are stitched in the
// given order; when the list is empty the input directory is scanned and
// its decodable files are used in name order.
type StitchRequest struct {
	InputDir      string
	Output        string
	Images        []string
	FocalOverride float64 // pixels, takes precedence over EXIF and config
	Stitching     config.Stitching
	Features      config.Features
	Workers       int
}

// StitchResult is the job outcome plus everything worth persisting.
type StitchResult struct {
	OutputFile   string                  `json:"output_file"`
	Width        int                     `json:"width"`
	Height       int                     `json:"height"`
	ImageCount   int                     `json:"image_count"`
	FocalLength  float64                 `json:"focal_length"`
	FocalSource  string                  `json:"focal_source"` // cli, exif, config
	Pairs        []stitch.PairRecord     `json:"pairs"`
	FirstLast    *stitch.PairRecord      `json:"first_last,omitempty"`
	Drift        *stitch.DriftCorrection `json:"drift,omitempty"`
	CropApplied  bool                    `json:"crop_applied"`
	Translations string                  `json:"translations_file,omitempty"`
}

// Stitch loads the sequence, resolves the focal length, runs the
// pipeline and writes the panorama plus its JSON sidecars.
func Stitch(ctx context.Context, req StitchRequest, log *slog.Logger) (StitchResult, error) {
	var res StitchResult

	paths := req.Images
	if len(paths) == 0 {
		var err error
		paths, err = fsutil.ListDecodable(req.InputDir)
		if err != nil {
			return res, fmt.Errorf("scanning %s: %w", req.InputDir, err)
		}
	}
	if len(paths) == 0 {
		return res, fmt.Errorf("no input images in %s", req.InputDir)
	}

	images := make([]*stitch.Image, len(paths))
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		im, err := imgio.Load(p)
		if err != nil {
			return res, fmt.Errorf("loading %s: %w", p, err)
		}
		images[i] = im
	}

	focal, source := resolveFocalLength(ctx, req, paths[0], images[0].Width, log)
	res.FocalLength = focal
	res.FocalSource = source
	res.ImageCount = len(images)

	det, err := features.NewCornerDetector(features.DetectorOptions{
		MaxFeatures:  req.Features.MaxFeatures,
		QualityLevel: req.Features.QualityLevel,
		MinDistance:  req.Features.MinDistance,
		PatchSize:    req.Features.PatchSize,
	})
	if err != nil {
		return res, fmt.Errorf("configuring detector: %w", err)
	}

	opts := stitch.Options{
		RatioThreshold:      req.Stitching.RatioThreshold,
		RansacThreshold:     req.Stitching.RansacThreshold,
		RansacMaxIters:      req.Stitching.RansacMaxIters,
		DriftCorrection:     req.Stitching.DriftCorrection,
		MinDriftInlierRatio: req.Stitching.MinDriftInlierRatio,
		BlendMethod:         stitch.BlendMethod(req.Stitching.BlendMethod),
		CropThreshold:       uint8(req.Stitching.CropThreshold),
		Workers:             req.Workers,
		Seed:                req.Stitching.Seed,
	}
	stitcher, err := stitch.NewStitcher(opts, det, features.NewBruteForceMatcher(), log)
	if err != nil {
		return res, err
	}

	cam := stitch.CameraForImage(focal, images[0])
	run, err := stitcher.Run(ctx, images, cam)
	if err != nil {
		return res, err
	}

	res.Pairs = run.Pairs
	res.FirstLast = run.FirstLast
	res.Drift = run.Drift
	res.CropApplied = run.CropApplied
	res.FocalLength = run.Camera.FocalLength
	res.Width = run.Panorama.Width
	res.Height = run.Panorama.Height

	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return res, fmt.Errorf("creating output directory: %w", err)
	}
	if err := imgio.Save(run.Panorama, req.Output, req.Stitching.OutputQuality); err != nil {
		return res, err
	}
	res.OutputFile = req.Output

	if req.Stitching.SaveIntermediates {
		if err := saveIntermediates(run.Warped, req.Output); err != nil {
			log.Warn("saving intermediates failed", "error", err)
		}
	}

	sidecar, err := writeTranslationsSidecar(req.Output, res)
	if err != nil {
		log.Warn("writing translations sidecar failed", "error", err)
	} else {
		res.Translations = sidecar
	}
	if run.Drift != nil {
		if err := writeDriftSidecar(req.Output, run.Drift); err != nil {
			log.Warn("writing drift sidecar failed", "error", err)
		}
	}

	return res, nil
}

// resolveFocalLength picks the focal length in priority order: explicit
// override, EXIF estimate, configured default.
func resolveFocalLength(ctx context.Context, req StitchRequest, firstPath string, width int, log *slog.Logger) (float64, string) {
	if req.FocalOverride > 0 {
		return req.FocalOverride, "cli"
	}
	if req.Stitching.FocalFromEXIF {
		meta, err := imgio.ExtractMetadata(ctx, firstPath)
		if err == nil {
			if focal, ok := imgio.EstimateFocalPixels(meta, width); ok {
				log.Info("focal length estimated from metadata",
					"file", firstPath, "focal_mm", meta.FocalLengthMM, "focal_px", focal)
				return focal, "exif"
			}
		}
	}
	return req.Stitching.FocalLength, "config"
}

func saveIntermediates(warped []*stitch.Image, output string) error {
	dir := filepath.Dir(output)
	base := filepath.Base(output)
	stem := base[:len(base)-len(filepath.Ext(base))]
	for i, im := range warped {
		path := filepath.Join(dir, fmt.Sprintf("%s_warped_%03d.png", stem, i))
		if err := imgio.Save(im, path, 0); err != nil {
			return err
		}
	}
	return nil
}

type translationsSidecar struct {
	Pairs     []stitch.PairRecord `json:"pairs"`
	FirstLast *stitch.PairRecord  `json:"first_last,omitempty"`
}

func writeTranslationsSidecar(output string, res StitchResult) (string, error) {
	path := sidecarPath(output, "_translations.json")
	body, err := json.MarshalIndent(translationsSidecar{Pairs: res.Pairs, FirstLast: res.FirstLast}, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, body, 0o644)
}

func writeDriftSidecar(output string, drift *stitch.DriftCorrection) error {
	path := sidecarPath(output, "_drift_correction.json")
	body, err := json.MarshalIndent(drift, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}

func sidecarPath(output, suffix string) string {
	ext := filepath.Ext(output)
	return output[:len(output)-len(ext)] + suffix
}

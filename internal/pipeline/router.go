package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"panostitch/internal/config"
	"panostitch/internal/storage"
	"panostitch/internal/tasks"
)

// router implements Processor and routes jobs to their concrete handlers.
type router struct {
	log      *slog.Logger
	store    *storage.Store
	cfg      *config.Config
	stitchFn stitchFunc
	scanFn   scanFunc
	rawConv  rawPreprocessor
}

type stitchFunc func(ctx context.Context, req tasks.StitchRequest, log *slog.Logger) (tasks.StitchResult, error)

type scanFunc func(ctx context.Context, root string) (tasks.ScanSummary, error)

type rawPreprocessor interface {
	PreprocessDirectory(ctx context.Context, inputDir string) (string, int, error)
}

func newRouter(logger *slog.Logger, store *storage.Store, cfg *config.Config) Processor {
	r := &router{
		log:      logger,
		store:    store,
		cfg:      cfg,
		stitchFn: tasks.Stitch,
		scanFn:   tasks.Scan,
	}
	if cfg != nil && cfg.Raw.Enabled {
		r.rawConv = tasks.NewRawConverter(cfg.Raw, logger)
	}
	return r
}

func (r *router) Process(ctx context.Context, job Job) Result {
	switch job.Type {
	case JobStitch:
		return r.handleStitch(ctx, job)
	case JobScan:
		return r.handleScan(ctx, job)
	case JobRaw:
		return r.handleRaw(ctx, job)
	default:
		return Result{Job: job, Error: fmt.Errorf("unknown job type: %s", job.Type)}
	}
}

func (r *router) handleStitch(ctx context.Context, job Job) Result {
	stitchCfg := r.cfg.Stitching
	if blend, ok := job.Options["blend"].(string); ok && blend != "" {
		stitchCfg.BlendMethod = blend
	}
	if drift, ok := job.Options["drift"].(bool); ok {
		stitchCfg.DriftCorrection = drift
	}
	if save, ok := job.Options["saveIntermediates"].(bool); ok {
		stitchCfg.SaveIntermediates = save
	}
	focalOverride := getFloat64Option(job.Options, "focal")

	inputDir := job.InputPath
	if r.rawConv != nil {
		dir, converted, err := r.rawConv.PreprocessDirectory(ctx, inputDir)
		if err != nil {
			return Result{Job: job, Error: fmt.Errorf("raw preprocessing: %w", err)}
		}
		if converted > 0 {
			inputDir = dir
		}
	}

	images, _ := job.Options["images"].([]string)

	res, err := r.stitchFn(ctx, tasks.StitchRequest{
		InputDir:      inputDir,
		Output:        job.Output,
		Images:        images,
		FocalOverride: focalOverride,
		Stitching:     stitchCfg,
		Features:      r.cfg.Features,
		Workers:       r.cfg.Processing.Workers,
	}, r.log)

	meta := map[string]any{
		"output":       res.OutputFile,
		"width":        res.Width,
		"height":       res.Height,
		"imageCount":   res.ImageCount,
		"focalLength":  res.FocalLength,
		"focalSource":  res.FocalSource,
		"driftApplied": res.Drift != nil,
		"cropApplied":  res.CropApplied,
	}
	if err != nil {
		return Result{Job: job, Error: err, Meta: meta}
	}

	r.persistStitch(job.ID, res)
	return Result{Job: job, Meta: meta}
}

// persistStitch records the alignment evidence of a finished run. Store
// failures are logged, not fatal; the panorama is already on disk.
func (r *router) persistStitch(jobID string, res tasks.StitchResult) {
	if r.store == nil {
		return
	}
	recs := make([]storage.PairTranslation, 0, len(res.Pairs))
	for _, p := range res.Pairs {
		recs = append(recs, storage.PairTranslation{
			JobID:       jobID,
			PairA:       p.PairA,
			PairB:       p.PairB,
			DX:          p.DX,
			DY:          p.DY,
			NumMatches:  p.NumMatches,
			NumInliers:  p.NumInliers,
			InlierRatio: p.InlierRatio,
		})
	}
	if err := r.store.RecordPairTranslations(recs); err != nil {
		r.log.Warn("persisting pair translations failed", "job", jobID, "error", err)
	}
	if res.Drift != nil {
		err := r.store.RecordDriftCorrection(storage.DriftRecord{
			JobID:          jobID,
			GapAngleRad:    res.Drift.GapAngle,
			GapAngleDeg:    res.Drift.GapAngleDegrees,
			OriginalFocal:  res.Drift.OriginalFocalLength,
			CorrectedFocal: res.Drift.CorrectedFocalLength,
			NumImages:      res.Drift.NumImages,
			Applied:        res.Drift.Applied,
		})
		if err != nil {
			r.log.Warn("persisting drift correction failed", "job", jobID, "error", err)
		}
	}
}

func (r *router) handleScan(ctx context.Context, job Job) Result {
	sum, err := r.scanFn(ctx, job.InputPath)
	meta := map[string]any{
		"images":   len(sum.Images),
		"rawFiles": len(sum.RawFiles),
	}
	if r.store != nil {
		for _, m := range sum.Metadata {
			_ = r.store.RecordImageMetadata(storage.ImageMetadata{
				FilePath:      m.FilePath,
				CameraMake:    m.CameraMake,
				CameraModel:   m.CameraModel,
				FocalLengthMM: m.FocalLengthMM,
				FocalIn35mm:   m.FocalIn35mm,
				Timestamp:     m.Timestamp,
				Width:         m.Width,
				Height:        m.Height,
			})
		}
	}
	return Result{Job: job, Error: err, Meta: meta}
}

func (r *router) handleRaw(ctx context.Context, job Job) Result {
	if r.rawConv == nil {
		return Result{Job: job, Error: fmt.Errorf("raw preprocessing is disabled")}
	}
	dir, converted, err := r.rawConv.PreprocessDirectory(ctx, job.InputPath)
	meta := map[string]any{
		"outputDir": dir,
		"converted": converted,
	}
	return Result{Job: job, Error: err, Meta: meta}
}

func getFloat64Option(options map[string]any, key string) float64 {
	if val, ok := options[key].(float64); ok {
		return val
	}
	return 0.0
}

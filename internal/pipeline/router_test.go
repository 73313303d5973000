package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"panostitch/internal/config"
	"panostitch/internal/stitch"
	"panostitch/internal/tasks"
)

func testConfig() *config.Config {
	return &config.Config{
		Processing: config.Processing{ParallelJobs: 1, Workers: 2},
		Stitching: config.Stitching{
			FocalLength:     500,
			RatioThreshold:  0.7,
			RansacThreshold: 5,
			RansacMaxIters:  100,
			DriftCorrection: true,
			BlendMethod:     "average",
			CropThreshold:   10,
		},
		Features: config.Features{MaxFeatures: 100, QualityLevel: 0.01, MinDistance: 4, PatchSize: 9},
	}
}

func TestRouterStitchAppliesJobOverrides(t *testing.T) {
	stitchStub := &stubStitcher{}
	r := &router{
		log:      slog.Default(),
		cfg:      testConfig(),
		stitchFn: stitchStub.stitch,
		scanFn:   tasks.Scan,
	}

	job := Job{
		ID:        "stitch-1",
		Type:      JobStitch,
		InputPath: t.TempDir(),
		Output:    filepath.Join(t.TempDir(), "pano.jpg"),
		Options: map[string]any{
			"focal": 850.0,
			"blend": "average",
			"drift": false,
		},
	}

	res := r.handleStitch(context.Background(), job)
	if res.Error != nil {
		t.Fatalf("expected nil error, got %v", res.Error)
	}
	if stitchStub.calls != 1 {
		t.Fatalf("expected one stitch call, got %d", stitchStub.calls)
	}
	if stitchStub.lastReq.FocalOverride != 850 {
		t.Fatalf("focal override not forwarded: %v", stitchStub.lastReq.FocalOverride)
	}
	if stitchStub.lastReq.Stitching.DriftCorrection {
		t.Fatalf("drift override not applied")
	}
	if stitchStub.lastReq.Workers != 2 {
		t.Fatalf("worker count not taken from config: %d", stitchStub.lastReq.Workers)
	}
	if res.Meta["imageCount"] != 3 {
		t.Fatalf("unexpected meta: %v", res.Meta)
	}
}

func TestRouterStitchReportsFailure(t *testing.T) {
	r := &router{
		log: slog.Default(),
		cfg: testConfig(),
		stitchFn: func(ctx context.Context, req tasks.StitchRequest, log *slog.Logger) (tasks.StitchResult, error) {
			return tasks.StitchResult{}, errors.New("no input images")
		},
		scanFn: tasks.Scan,
	}

	job := Job{ID: "stitch-2", Type: JobStitch, InputPath: t.TempDir(), Output: "out.jpg"}
	res := r.handleStitch(context.Background(), job)
	if res.Error == nil {
		t.Fatalf("expected error to propagate")
	}
}

func TestRouterScanCountsContents(t *testing.T) {
	r := &router{
		log: slog.Default(),
		cfg: testConfig(),
		scanFn: func(ctx context.Context, root string) (tasks.ScanSummary, error) {
			return tasks.ScanSummary{
				Images:   []string{"a.jpg", "b.jpg"},
				RawFiles: []string{"c.nef"},
			}, nil
		},
	}

	res := r.handleScan(context.Background(), Job{ID: "scan-1", Type: JobScan, InputPath: "/in"})
	if res.Error != nil {
		t.Fatalf("expected nil error, got %v", res.Error)
	}
	if res.Meta["images"] != 2 || res.Meta["rawFiles"] != 1 {
		t.Fatalf("unexpected meta: %v", res.Meta)
	}
}

func TestRouterRawRequiresConverter(t *testing.T) {
	r := &router{log: slog.Default(), cfg: testConfig(), scanFn: tasks.Scan}

	res := r.Process(context.Background(), Job{ID: "raw-1", Type: JobRaw, InputPath: "/in"})
	if res.Error == nil {
		t.Fatalf("expected error when raw preprocessing is disabled")
	}
}

func TestRouterRejectsUnknownJobType(t *testing.T) {
	r := &router{log: slog.Default(), cfg: testConfig(), scanFn: tasks.Scan}

	res := r.Process(context.Background(), Job{ID: "x", Type: JobType("bogus")})
	if res.Error == nil {
		t.Fatalf("expected error for unknown job type")
	}
}

func TestRouterStitchUsesRawPreprocessorOutput(t *testing.T) {
	stitchStub := &stubStitcher{}
	rawStub := &stubRawConverter{outputDir: "/tmp/converted", converted: 5}
	r := &router{
		log:      slog.Default(),
		cfg:      testConfig(),
		stitchFn: stitchStub.stitch,
		scanFn:   tasks.Scan,
		rawConv:  rawStub,
	}

	job := Job{ID: "stitch-3", Type: JobStitch, InputPath: "/in", Output: "out.jpg"}
	res := r.handleStitch(context.Background(), job)
	if res.Error != nil {
		t.Fatalf("expected nil error, got %v", res.Error)
	}
	if rawStub.calls != 1 {
		t.Fatalf("expected raw preprocessing to run")
	}
	if stitchStub.lastReq.InputDir != "/tmp/converted" {
		t.Fatalf("stitch should read the converted directory, got %q", stitchStub.lastReq.InputDir)
	}
}

// Stubs

type stubStitcher struct {
	calls   int
	lastReq tasks.StitchRequest
}

func (s *stubStitcher) stitch(ctx context.Context, req tasks.StitchRequest, log *slog.Logger) (tasks.StitchResult, error) {
	s.calls++
	s.lastReq = req
	return tasks.StitchResult{
		OutputFile:  req.Output,
		Width:       1200,
		Height:      400,
		ImageCount:  3,
		FocalLength: 500,
		FocalSource: "config",
		Pairs: []stitch.PairRecord{
			{PairA: 0, PairB: 1, DY: -40, NumMatches: 50, NumInliers: 40, InlierRatio: 0.8},
		},
	}, nil
}

type stubRawConverter struct {
	calls     int
	outputDir string
	converted int
}

func (s *stubRawConverter) PreprocessDirectory(ctx context.Context, inputDir string) (string, int, error) {
	s.calls++
	return s.outputDir, s.converted, nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("PANOSTITCH_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Stitching.FocalLength != 500 {
		t.Fatalf("default focal length %.1f, want 500", cfg.Stitching.FocalLength)
	}
	if cfg.Stitching.RatioThreshold != 0.7 {
		t.Fatalf("default ratio threshold %.2f, want 0.7", cfg.Stitching.RatioThreshold)
	}
	if !cfg.Stitching.DriftCorrection {
		t.Fatalf("drift correction should default on")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"stitching": {
			"focal_length": 850,
			"ratio_threshold": 0.75,
			"ransac_threshold": 3,
			"ransac_max_iters": 500,
			"blend_method": "average",
			"crop_threshold": 5
		},
		"processing": {"parallel_jobs": 2, "workers": 8}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PANOSTITCH_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Stitching.FocalLength != 850 {
		t.Fatalf("focal length %.1f, want 850", cfg.Stitching.FocalLength)
	}
	if cfg.Processing.Workers != 8 {
		t.Fatalf("workers %d, want 8", cfg.Processing.Workers)
	}
	// Untouched sections keep their defaults.
	if cfg.Paths.DefaultOutput != "./output" {
		t.Fatalf("default output path changed: %q", cfg.Paths.DefaultOutput)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"stitching": {"focal_length": -10}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PANOSTITCH_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatalf("negative focal length must be rejected")
	}
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	cfg = defaultConfig()
	cfg.Stitching.RatioThreshold = 1.2
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ratio threshold out of range must be rejected")
	}

	cfg = defaultConfig()
	cfg.Stitching.BlendMethod = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("unknown blend method must be rejected")
	}

	cfg = defaultConfig()
	cfg.Stitching.CropThreshold = 300
	if err := cfg.Validate(); err == nil {
		t.Fatalf("crop threshold over 255 must be rejected")
	}
}

func TestExpandUser(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err := expandUser("~/x/config.json")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got != filepath.Join(home, "x/config.json") {
		t.Fatalf("got %q", got)
	}
	got, err = expandUser("/abs/path")
	if err != nil || got != "/abs/path" {
		t.Fatalf("absolute path must pass through, got %q %v", got, err)
	}
}

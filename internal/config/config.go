package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	defaultConfigPath = "~/.config/panostitch/config.json"
	defaultParallel   = 4
)

// Config holds user-editable settings for the stitching pipeline.
type Config struct {
	Processing Processing      `json:"processing"`
	Logging    Logging         `json:"logging"`
	Paths      Paths           `json:"paths"`
	Stitching  Stitching       `json:"stitching"`
	Features   Features        `json:"features"`
	Raw        RawPreprocessing `json:"raw_preprocessing"`
	Watch      Watch           `json:"watch"`
	Server     Server          `json:"server"`
}

// Processing captures execution preferences.
type Processing struct {
	ParallelJobs int    `json:"parallel_jobs"`
	Workers      int    `json:"workers"` // projection workers per job
	TempDir      string `json:"temp_dir"`
}

// Logging controls logging verbosity and format.
type Logging struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
}

// Paths configures default input/output locations.
type Paths struct {
	DefaultInput  string `json:"default_input"`
	DefaultOutput string `json:"default_output"`
	DatabasePath  string `json:"database_path"`
}

// Stitching tunes the panorama pipeline itself.
type Stitching struct {
	FocalLength         float64 `json:"focal_length"`     // pixels, used when EXIF gives nothing
	FocalFromEXIF       bool    `json:"focal_from_exif"`  // estimate focal length from metadata
	RatioThreshold      float64 `json:"ratio_threshold"`  // match distinctiveness, (0,1)
	RansacThreshold     float64 `json:"ransac_threshold"` // inlier distance in pixels
	RansacMaxIters      int     `json:"ransac_max_iters"`
	DriftCorrection     bool    `json:"drift_correction"`
	MinDriftInlierRatio float64 `json:"min_drift_inlier_ratio"`
	BlendMethod         string  `json:"blend_method"` // average, linear, multiband
	CropThreshold       int     `json:"crop_threshold"`
	Seed                int64   `json:"seed"`
	SaveIntermediates   bool    `json:"save_intermediates"` // keep warped frames next to the output
	OutputQuality       int     `json:"output_quality"`
}

// Features tunes corner detection.
type Features struct {
	MaxFeatures  int     `json:"max_features"`
	QualityLevel float64 `json:"quality_level"`
	MinDistance  float64 `json:"min_distance"`
	PatchSize    int     `json:"patch_size"`
}

// RawPreprocessing configures RAW to TIFF conversion ahead of stitching.
type RawPreprocessing struct {
	Enabled      bool   `json:"enabled"`
	OutputFormat string `json:"output_format"`
	Quality      int    `json:"quality"`
	TempDir      string `json:"temp_dir"`
}

// Watch configures the inbox watcher.
type Watch struct {
	Enabled       bool   `json:"enabled"`
	InboxDir      string `json:"inbox_dir"`
	SettleSeconds int    `json:"settle_seconds"` // quiet time before a drop is considered complete
}

// Server configures the HTTP surface.
type Server struct {
	Addr string `json:"addr"`
}

// Load reads configuration from disk, falling back to sensible defaults.
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("PANOSTITCH_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	expanded, err := expandUser(configPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	s := c.Stitching
	if s.FocalLength <= 0 {
		return fmt.Errorf("stitching.focal_length must be positive, got %.2f", s.FocalLength)
	}
	if s.RatioThreshold <= 0 || s.RatioThreshold >= 1 {
		return fmt.Errorf("stitching.ratio_threshold must be in (0,1), got %.3f", s.RatioThreshold)
	}
	if s.RansacThreshold <= 0 {
		return fmt.Errorf("stitching.ransac_threshold must be positive, got %.2f", s.RansacThreshold)
	}
	if s.RansacMaxIters < 1 {
		return fmt.Errorf("stitching.ransac_max_iters must be at least 1, got %d", s.RansacMaxIters)
	}
	if s.CropThreshold < 0 || s.CropThreshold > 255 {
		return fmt.Errorf("stitching.crop_threshold must be in [0,255], got %d", s.CropThreshold)
	}
	switch s.BlendMethod {
	case "", "average", "linear", "multiband":
	default:
		return fmt.Errorf("stitching.blend_method %q is not supported", s.BlendMethod)
	}
	if c.Processing.ParallelJobs < 1 {
		return fmt.Errorf("processing.parallel_jobs must be at least 1, got %d", c.Processing.ParallelJobs)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Processing: Processing{
			ParallelJobs: defaultParallel,
			Workers:      4,
			TempDir:      os.TempDir(),
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Paths: Paths{
			DefaultInput:  ".",
			DefaultOutput: "./output",
			DatabasePath:  filepath.Join(os.TempDir(), "panostitch.db"),
		},
		Stitching: Stitching{
			FocalLength:         500,
			FocalFromEXIF:       true,
			RatioThreshold:      0.7,
			RansacThreshold:     5.0,
			RansacMaxIters:      2000,
			DriftCorrection:     true,
			MinDriftInlierRatio: 0.3,
			BlendMethod:         "average",
			CropThreshold:       10,
			Seed:                1,
			OutputQuality:       95,
		},
		Features: Features{
			MaxFeatures:  500,
			QualityLevel: 0.01,
			MinDistance:  8,
			PatchSize:    9,
		},
		Raw: RawPreprocessing{
			Enabled:      true,
			OutputFormat: "tiff",
			Quality:      95,
			TempDir:      filepath.Join(os.TempDir(), "panostitch-raw"),
		},
		Watch: Watch{
			InboxDir:      "./inbox",
			SettleSeconds: 3,
		},
		Server: Server{
			Addr: ":8686",
		},
	}
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}

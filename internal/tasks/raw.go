package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/gographics/imagick.v3/imagick"

	"panostitch/internal/config"
	"panostitch/internal/fsutil"
)

// RawConverter turns RAW camera files into stitchable rasters ahead of a
// run. Conversion is deliberately plain: demosaic, strip metadata, write
// the configured format. Any look adjustments would shift pixel values
// between frames and poison the matcher.
type RawConverter struct {
	cfg config.RawPreprocessing
	log *slog.Logger
}

// NewRawConverter returns a converter for the given settings.
func NewRawConverter(cfg config.RawPreprocessing, log *slog.Logger) *RawConverter {
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "tiff"
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 95
	}
	return &RawConverter{cfg: cfg, log: log}
}

// PreprocessDirectory converts every RAW file under inputDir into
// tempDir, keeping file name order. It returns the directory holding the
// complete, decodable sequence: tempDir when anything was converted, or
// inputDir untouched when the directory holds no RAW files.
func (c *RawConverter) PreprocessDirectory(ctx context.Context, inputDir string) (string, int, error) {
	files, err := fsutil.ListImages(inputDir)
	if err != nil {
		return "", 0, fmt.Errorf("scanning %s: %w", inputDir, err)
	}
	rawFiles, processed := fsutil.SeparateRAWAndProcessed(files)
	if len(rawFiles) == 0 {
		return inputDir, 0, nil
	}

	tempDir := c.cfg.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "panostitch-raw")
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating temp directory: %w", err)
	}

	imagick.Initialize()
	defer imagick.Terminate()

	converted := 0
	for _, raw := range rawFiles {
		if err := ctx.Err(); err != nil {
			return "", converted, err
		}
		out := filepath.Join(tempDir, stemOf(raw)+"."+c.cfg.OutputFormat)
		if err := c.convertOne(raw, out); err != nil {
			return "", converted, fmt.Errorf("converting %s: %w", raw, err)
		}
		converted++
		c.log.Debug("raw file converted", "input", raw, "output", out)
	}

	// Already-decodable frames join the converted ones so the sequence
	// stays complete.
	for _, p := range processed {
		dst := filepath.Join(tempDir, filepath.Base(p))
		if err := copyFile(p, dst); err != nil {
			return "", converted, fmt.Errorf("copying %s: %w", p, err)
		}
	}

	c.log.Info("raw preprocessing finished",
		"raw_files", len(rawFiles), "passthrough", len(processed), "temp_dir", tempDir)
	return tempDir, converted, nil
}

func (c *RawConverter) convertOne(input, output string) error {
	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	if err := mw.ReadImage(input); err != nil {
		return fmt.Errorf("reading raw: %w", err)
	}
	if err := mw.StripImage(); err != nil {
		return fmt.Errorf("stripping metadata: %w", err)
	}
	if err := mw.SetImageFormat(strings.ToUpper(c.cfg.OutputFormat)); err != nil {
		return fmt.Errorf("setting format: %w", err)
	}
	if err := mw.SetImageCompressionQuality(uint(c.cfg.Quality)); err != nil {
		return fmt.Errorf("setting quality: %w", err)
	}
	return mw.WriteImage(output)
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func copyFile(src, dst string) error {
	body, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, body, 0o644)
}

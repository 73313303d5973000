// Package imgio loads and saves rasters in the formats a stitching run
// meets in the wild and converts them to the pipeline's interleaved RGB
// representation.
package imgio

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"panostitch/internal/stitch"
)

// Load decodes the image at path into the pipeline representation.
// Standard formats go through the registered decoders; webp gets its own
// decoder because the standard registry does not cover it.
func Load(path string) (*stitch.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err == nil {
		return FromImage(img), nil
	}

	if strings.EqualFold(filepath.Ext(path), ".webp") {
		f, werr := os.Open(path)
		if werr != nil {
			return nil, fmt.Errorf("opening %s: %w", path, werr)
		}
		defer f.Close()
		img, werr := webp.Decode(f)
		if werr != nil {
			return nil, fmt.Errorf("decoding webp %s: %w", path, werr)
		}
		return FromImage(img), nil
	}

	return nil, fmt.Errorf("decoding %s: %w", path, err)
}

// Save encodes the image to path, picking the codec from the extension.
// Unknown extensions are an error rather than a silent format change.
func Save(im *stitch.Image, path string, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	img := ToNRGBA(im)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".webp":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		if err := webp.Encode(f, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return fmt.Errorf("encoding webp %s: %w", path, err)
		}
		return nil
	case ".jpg", ".jpeg":
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	case ".png", ".tif", ".tiff", ".bmp":
		return imaging.Save(img, path)
	default:
		return fmt.Errorf("unsupported output format %q", filepath.Ext(path))
	}
}

// FromImage converts any decoded image to interleaved RGB, dropping
// alpha.
func FromImage(img image.Image) *stitch.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()
	out := stitch.NewImage(w, h)
	for y := 0; y < h; y++ {
		src := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < w; x++ {
			out.Set(x, y, src[x*4], src[x*4+1], src[x*4+2])
		}
	}
	return out
}

// ToNRGBA converts the pipeline representation back to a standard image
// with opaque alpha.
func ToNRGBA(im *stitch.Image) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, im.Width, im.Height))
	for y := 0; y < im.Height; y++ {
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < im.Width; x++ {
			r, g, b := im.At(x, y)
			dst[x*4] = r
			dst[x*4+1] = g
			dst[x*4+2] = b
			dst[x*4+3] = 255
		}
	}
	return out
}

package stitch

import "log/slog"

// DefaultCropThreshold treats near-black pixels as empty border when
// trimming the composited canvas.
const DefaultCropThreshold = 10

// CropBorders trims the canvas to the tight bounding box of pixels whose
// grayscale brightness exceeds threshold. When nothing exceeds it the
// canvas is returned unmodified, a degenerate but valid result that the
// caller logs rather than fails on.
func CropBorders(im *Image, threshold uint8, log *slog.Logger) *Image {
	minX, minY := im.Width, im.Height
	maxX, maxY := -1, -1

	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			r, g, b := im.At(x, y)
			// Luma approximation; exact weights don't matter at a
			// threshold this low.
			gray := (299*int(r) + 587*int(g) + 114*int(b)) / 1000
			if gray <= int(threshold) {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < 0 {
		log.Warn("no pixels above crop threshold, returning canvas uncropped", "threshold", threshold)
		return im
	}

	out := NewImage(maxX-minX+1, maxY-minY+1)
	for y := minY; y <= maxY; y++ {
		srcStart := (y*im.Width + minX) * Channels
		srcEnd := (y*im.Width + maxX + 1) * Channels
		dstStart := (y - minY) * out.Width * Channels
		copy(out.Pix[dstStart:], im.Pix[srcStart:srcEnd])
	}

	log.Info("cropped panorama borders",
		"from_width", im.Width, "from_height", im.Height,
		"to_width", out.Width, "to_height", out.Height,
		"left", minX, "top", minY)
	return out
}

package stitch

import "fmt"

// CameraModel describes the camera used for one stitching run. Values are
// immutable; drift correction produces a replacement model rather than
// mutating this one.
type CameraModel struct {
	FocalLength float64 // pixels
	CenterX     float64
	CenterY     float64
}

// CameraForImage builds a model centered on the given image.
func CameraForImage(focalLength float64, im *Image) CameraModel {
	return CameraModel{
		FocalLength: focalLength,
		CenterX:     float64(im.Width) / 2.0,
		CenterY:     float64(im.Height) / 2.0,
	}
}

// WithFocalLength returns a copy of the model with a new focal length,
// keeping the center.
func (c CameraModel) WithFocalLength(f float64) CameraModel {
	c.FocalLength = f
	return c
}

// Validate rejects models that cannot produce a meaningful projection.
func (c CameraModel) Validate() error {
	if c.FocalLength <= 0 {
		return fmt.Errorf("focal length must be positive, got %.2f", c.FocalLength)
	}
	return nil
}

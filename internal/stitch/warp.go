package stitch

import (
	"fmt"
	"math"
	"sync"
)

// maxThetaMargin keeps the angular coordinate away from ±π/2 where the
// cylindrical mapping diverges. Images whose height would push θ past
// this bound are rejected before any warping starts.
const maxThetaMargin = 0.087 // ~5 degrees

// CylindricalSource maps a destination (cylindrical) pixel back to its
// source position in the planar image.
//
// The camera rotates about the vertical axis, so the cylinder wraps in the
// horizontal image direction while the angular variable comes from the
// vertical pixel coordinate:
//
//	θ = (yCyl - yc) / f
//	u = (xCyl - xc) / f
//	xSrc = f·u/cos(θ) + xc
//	ySrc = f·tan(θ) + yc
//
// Swapping the roles of x and y here silently produces a vertically warped,
// horizontally flat result, so the inversion is load-bearing.
func CylindricalSource(cam CameraModel, xCyl, yCyl float64) (xSrc, ySrc float64) {
	theta := (yCyl - cam.CenterY) / cam.FocalLength
	u := (xCyl - cam.CenterX) / cam.FocalLength
	cosT := math.Cos(theta)
	xSrc = cam.FocalLength*u/cosT + cam.CenterX
	ySrc = cam.FocalLength*math.Tan(theta) + cam.CenterY
	return xSrc, ySrc
}

// ValidateAngularBound checks that every row of an image of the given
// height maps to an angle safely inside (-π/2, π/2). This is the
// precondition for Project; a violation means the focal length is far too
// short for the frame and the warp would be numerically meaningless.
func ValidateAngularBound(height int, cam CameraModel) error {
	if err := cam.Validate(); err != nil {
		return err
	}
	limit := math.Pi/2 - maxThetaMargin
	top := math.Abs((0 - cam.CenterY) / cam.FocalLength)
	bottom := math.Abs((float64(height-1) - cam.CenterY) / cam.FocalLength)
	if top >= limit || bottom >= limit {
		return fmt.Errorf("angular coordinate reaches %.3f rad for height %d at focal length %.1f; mapping diverges near ±π/2",
			math.Max(top, bottom), height, cam.FocalLength)
	}
	return nil
}

// Project warps a planar image onto the cylindrical surface described by
// cam, using backward mapping with bilinear sampling. Output has the same
// dimensions as the input; pixels whose source falls outside the input are
// left at the zero sentinel. workers bounds row-level parallelism; values
// below 1 mean single-threaded.
func Project(im *Image, cam CameraModel, workers int) (*Image, error) {
	if err := im.validate(); err != nil {
		return nil, err
	}
	if err := ValidateAngularBound(im.Height, cam); err != nil {
		return nil, err
	}

	out := NewImage(im.Width, im.Height)
	if workers < 1 {
		workers = 1
	}
	if workers > im.Height {
		workers = im.Height
	}

	var wg sync.WaitGroup
	rows := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				projectRow(im, out, cam, y)
			}
		}()
	}
	for y := 0; y < im.Height; y++ {
		rows <- y
	}
	close(rows)
	wg.Wait()

	return out, nil
}

func projectRow(src, dst *Image, cam CameraModel, yCyl int) {
	for xCyl := 0; xCyl < src.Width; xCyl++ {
		xSrc, ySrc := CylindricalSource(cam, float64(xCyl), float64(yCyl))
		r, g, b, ok := src.SampleBilinear(xSrc, ySrc)
		if !ok {
			continue // sentinel stays zero
		}
		dst.Set(xCyl, yCyl, clampU8(r), clampU8(g), clampU8(b))
	}
}

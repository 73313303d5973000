package stitch

import "fmt"

// Channels is the number of color samples per pixel. All pipeline images
// are interleaved RGB.
const Channels = 3

// Image is an interleaved 8-bit RGB raster. The zero pixel doubles as the
// sentinel for "no data" regions introduced by warping; Mask reports it.
type Image struct {
	Width  int
	Height int
	Pix    []uint8 // len = Width*Height*Channels
}

// NewImage allocates a zeroed image of the given size.
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*Channels),
	}
}

// At returns the pixel at (x, y). Callers must stay in bounds.
func (im *Image) At(x, y int) (r, g, b uint8) {
	i := (y*im.Width + x) * Channels
	return im.Pix[i], im.Pix[i+1], im.Pix[i+2]
}

// Set writes the pixel at (x, y). Callers must stay in bounds.
func (im *Image) Set(x, y int, r, g, b uint8) {
	i := (y*im.Width + x) * Channels
	im.Pix[i], im.Pix[i+1], im.Pix[i+2] = r, g, b
}

// Mask reports whether the pixel at (x, y) carries data, i.e. any channel
// is non-zero. Warped borders are all-zero by construction.
func (im *Image) Mask(x, y int) bool {
	i := (y*im.Width + x) * Channels
	return im.Pix[i] != 0 || im.Pix[i+1] != 0 || im.Pix[i+2] != 0
}

// Clone returns a deep copy.
func (im *Image) Clone() *Image {
	out := NewImage(im.Width, im.Height)
	copy(out.Pix, im.Pix)
	return out
}

func (im *Image) validate() error {
	if im == nil {
		return fmt.Errorf("nil image")
	}
	if im.Width <= 0 || im.Height <= 0 {
		return fmt.Errorf("invalid image dimensions %dx%d", im.Width, im.Height)
	}
	if len(im.Pix) != im.Width*im.Height*Channels {
		return fmt.Errorf("pixel buffer length %d does not match %dx%d", len(im.Pix), im.Width, im.Height)
	}
	return nil
}

// SampleBilinear samples the image at a fractional position, interpolating
// between the four surrounding pixels. ok is false when (x, y) falls
// outside the raster; the caller writes the sentinel in that case.
func (im *Image) SampleBilinear(x, y float64) (r, g, b float64, ok bool) {
	if x < 0 || y < 0 || x > float64(im.Width-1) || y > float64(im.Height-1) {
		return 0, 0, 0, false
	}

	x0 := int(x)
	y0 := int(y)
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 > im.Width-1 {
		x1 = im.Width - 1
	}
	if y1 > im.Height-1 {
		y1 = im.Height - 1
	}

	fx := x - float64(x0)
	fy := y - float64(y0)

	w00 := (1 - fx) * (1 - fy)
	w10 := fx * (1 - fy)
	w01 := (1 - fx) * fy
	w11 := fx * fy

	r00, g00, b00 := im.At(x0, y0)
	r10, g10, b10 := im.At(x1, y0)
	r01, g01, b01 := im.At(x0, y1)
	r11, g11, b11 := im.At(x1, y1)

	r = w00*float64(r00) + w10*float64(r10) + w01*float64(r01) + w11*float64(r11)
	g = w00*float64(g00) + w10*float64(g10) + w01*float64(g01) + w11*float64(g11)
	b = w00*float64(b00) + w10*float64(b10) + w01*float64(b01) + w11*float64(b11)
	return r, g, b, true
}

func clampU8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

package stitch

import (
	"fmt"
	"log/slog"
	"math"
)

// BlendMethod selects how overlapping pixels combine on the canvas.
type BlendMethod string

const (
	BlendAverage   BlendMethod = "average"
	BlendLinear    BlendMethod = "linear"
	BlendMultiband BlendMethod = "multiband"
)

// ParseBlendMethod validates a configured method name. Unknown names are a
// configuration error, reported before any compositing starts.
func ParseBlendMethod(name string) (BlendMethod, error) {
	switch BlendMethod(name) {
	case BlendAverage, BlendLinear, BlendMultiband:
		return BlendMethod(name), nil
	case "":
		return BlendAverage, nil
	default:
		return "", fmt.Errorf("unknown blending method %q", name)
	}
}

// Composite places every image at its absolute offset on a shared canvas
// and resolves overlaps with the selected method. Only average blending is
// implemented; linear and multiband fall back to it with a warning.
//
// Average blending keeps a float accumulator and a parallel weight buffer
// sized to the tight bounding box of all placed images. Each image adds its
// non-sentinel pixels at its integer-rounded offset and increments the
// weights; the final value is accumulator/weight where weight > 0 and the
// zero sentinel elsewhere.
func Composite(images []*Image, placements []PlacementOffset, method BlendMethod, log *slog.Logger) (*Image, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to composite")
	}
	if len(images) != len(placements) {
		return nil, fmt.Errorf("got %d images but %d placements", len(images), len(placements))
	}
	for _, im := range images {
		if err := im.validate(); err != nil {
			return nil, err
		}
	}

	switch method {
	case BlendAverage:
	case BlendLinear, BlendMultiband:
		log.Warn("blending method not implemented, using average", "method", string(method))
	default:
		return nil, fmt.Errorf("unknown blending method %q", string(method))
	}

	minX, maxX, minY, maxY := canvasBounds(images, placements)
	width := int(math.Ceil(maxX - minX))
	height := int(math.Ceil(maxY - minY))
	log.Info("compositing canvas", "width", width, "height", height, "images", len(images))

	acc := make([]float64, width*height*Channels)
	weights := make([]float64, width*height)

	for i, im := range images {
		xOff := int(math.Round(placements[i].X - minX))
		yOff := int(math.Round(placements[i].Y - minY))

		w, h := im.Width, im.Height
		if xOff+w > width {
			w = width - xOff
		}
		if yOff+h > height {
			h = height - yOff
		}
		srcX, srcY := 0, 0
		if xOff < 0 {
			srcX = -xOff
			w -= srcX
			xOff = 0
		}
		if yOff < 0 {
			srcY = -yOff
			h -= srcY
			yOff = 0
		}
		// The accumulator box is the bounding box of these very
		// placements, so a fully clipped image means the chain
		// invariants were broken upstream.
		if w <= 0 || h <= 0 {
			return nil, fmt.Errorf("image %d placed entirely outside canvas bounds", i)
		}

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if !im.Mask(srcX+x, srcY+y) {
					continue
				}
				r, g, b := im.At(srcX+x, srcY+y)
				ci := (yOff+y)*width + (xOff + x)
				acc[ci*Channels] += float64(r)
				acc[ci*Channels+1] += float64(g)
				acc[ci*Channels+2] += float64(b)
				weights[ci]++
			}
		}
	}

	out := NewImage(width, height)
	for i, wgt := range weights {
		if wgt == 0 {
			continue
		}
		out.Pix[i*Channels] = clampU8(acc[i*Channels] / wgt)
		out.Pix[i*Channels+1] = clampU8(acc[i*Channels+1] / wgt)
		out.Pix[i*Channels+2] = clampU8(acc[i*Channels+2] / wgt)
	}
	return out, nil
}

func canvasBounds(images []*Image, placements []PlacementOffset) (minX, maxX, minY, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for i, im := range images {
		p := placements[i]
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X+float64(im.Width))
		maxY = math.Max(maxY, p.Y+float64(im.Height))
	}
	return minX, maxX, minY, maxY
}

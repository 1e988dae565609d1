package raster

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/gift"
	"github.com/ericpauley/go-quantize/quantize"
)

var errBadColors = errors.New("raster: number of colors must be between 2 and 256")

// Resize scales m to width by height pixels using Lanczos resampling. If
// either dimension is zero the aspect ratio of m is preserved.
func Resize(m *image.NRGBA, width, height int) (*image.NRGBA, error) {
	if width < 0 || height < 0 || (width == 0 && height == 0) {
		return nil, errors.New("raster: invalid resize dimensions")
	}

	f := gift.Resize(width, height, gift.LanczosResampling)
	dst := image.NewNRGBA(f.Bounds(m.Bounds()))
	f.Draw(dst, m, &gift.Options{
		Parallelization: true,
	})

	if dst.Bounds().Empty() {
		return nil, errors.New("raster: resized image is empty")
	}

	return dst, nil
}

// Reduce limits m to at most colors distinct colors using median cut
// quantization. The alpha channel of every pixel is left untouched.
func Reduce(m *image.NRGBA, colors int) (*image.NRGBA, error) {
	if colors < 2 || colors > 256 {
		return nil, errBadColors
	}

	b := m.Bounds()

	// Quantize an opaque copy so transparent pixels still vote for their color
	opaque := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := m.NRGBAAt(x, y)
			c.A = 0xff
			opaque.SetNRGBA(x, y, c)
		}
	}

	q := quantize.MedianCutQuantizer{}
	pm := image.NewPaletted(b, q.Quantize(make(color.Palette, 0, colors), opaque))
	draw.Draw(pm, b, opaque, b.Min, draw.Src)

	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(pm.At(x, y)).(color.NRGBA)
			c.A = m.NRGBAAt(x, y).A
			out.SetNRGBA(x, y, c)
		}
	}

	return out, nil
}

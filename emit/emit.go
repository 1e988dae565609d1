/*
Package emit writes a stream of packed pixels to one or more renderers.

Every renderer sees the same pixels in the same row-major order; a single
loop in Emit drives all of them so their output cannot drift apart. Each
renderer is given both the original source pixel and its packed form.
*/
package emit

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"regexp"
	"strings"

	"github.com/bodgit/emwin/rgb565"
)

// ErrStreamLength is returned when the packed stream does not have one entry
// per source pixel.
var ErrStreamLength = errors.New("emit: stream length does not match image size")

// Header describes the image being emitted
type Header struct {
	Width  int
	Height int
	Symbol string
}

// BytesPerLine returns the number of packed bytes in a single row
func (h Header) BytesPerLine() int {
	return h.Width * rgb565.BytesPerPixel
}

func (h Header) last(x, y int) bool {
	return x == h.Width-1 && y == h.Height-1
}

// Renderer consumes pixels in row-major order. Begin is called once before
// the first pixel, EndRow after the last pixel of every row and End once
// after the final row.
type Renderer interface {
	Begin(h Header) error
	Pixel(x, y int, src color.NRGBA, p rgb565.Pixel) error
	EndRow(y int) error
	End() error
}

// Emit walks m and stream together and hands every pixel to each of the
// renderers in turn.
func Emit(m *image.NRGBA, stream []rgb565.Pixel, symbol string, renderers ...Renderer) error {
	b := m.Bounds()
	if len(stream) != b.Dx()*b.Dy() {
		return ErrStreamLength
	}

	h := Header{
		Width:  b.Dx(),
		Height: b.Dy(),
		Symbol: symbol,
	}

	for _, r := range renderers {
		if err := r.Begin(h); err != nil {
			return err
		}
	}

	i := 0
	for y := 0; y < h.Height; y++ {
		for x := 0; x < h.Width; x++ {
			src := m.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			for _, r := range renderers {
				if err := r.Pixel(x, y, src, stream[i]); err != nil {
					return err
				}
			}
			i++
		}
		for _, r := range renderers {
			if err := r.EndRow(y); err != nil {
				return err
			}
		}
	}

	for _, r := range renderers {
		if err := r.End(); err != nil {
			return err
		}
	}

	return nil
}

// Artifacts holds the three rendered outputs of a single image
type Artifacts struct {
	Source     []byte
	Raw        []byte
	Diagnostic []byte
}

// Render emits m and stream into memory, returning the C source, raw and
// diagnostic artifacts.
func Render(m *image.NRGBA, stream []rgb565.Pixel, symbol string, opts SourceOptions) (*Artifacts, error) {
	var source, raw, diagnostic bytes.Buffer

	if err := Emit(m, stream, symbol,
		NewSource(&source, opts),
		NewRaw(&raw),
		NewDiagnostic(&diagnostic),
	); err != nil {
		return nil, err
	}

	return &Artifacts{
		Source:     source.Bytes(),
		Raw:        raw.Bytes(),
		Diagnostic: diagnostic.Bytes(),
	}, nil
}

var (
	invalidSymbol = regexp.MustCompile(`[^A-Za-z0-9_]`)
	validSymbol   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Symbol derives a C identifier from name by replacing every character that
// is not allowed in an identifier with an underscore.
func Symbol(name string) string {
	s := invalidSymbol.ReplaceAllString(name, "_")
	switch {
	case s == "":
		return "Image"
	case strings.IndexAny(s[:1], "0123456789") == 0:
		return "_" + s
	}
	return s
}

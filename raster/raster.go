/*
Package raster validates decoded images and walks them to produce a stream of
packed pixels.

Only 8-bit non-premultiplied RGBA rasters are accepted. Images with fewer
channels or a different channel depth are rejected rather than converted.
*/
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"io/ioutil"

	"github.com/bodgit/emwin/rgb565"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode is returned when the image container cannot be parsed
	ErrDecode = errors.New("raster: cannot decode image")
	// ErrUnsupportedFormat is returned when the decoded image is not 8-bit RGBA
	ErrUnsupportedFormat = errors.New("raster: image must be 8-bit RGBA")
	// ErrEncodingInternal is returned for a raster whose pixel buffer does
	// not match its bounds
	ErrEncodingInternal = errors.New("raster: inconsistent pixel buffer")
)

func describe(m image.Image) string {
	switch m.(type) {
	case *image.RGBA:
		return "RGBA (premultiplied)"
	case *image.RGBA64:
		return "RGBA 16-bit"
	case *image.NRGBA64:
		return "NRGBA 16-bit"
	case *image.Gray:
		return "grayscale"
	case *image.Gray16:
		return "grayscale 16-bit"
	case *image.Paletted:
		return "paletted"
	case *image.YCbCr:
		return "YCbCr"
	case *image.NYCbCrA:
		return "YCbCr with alpha"
	case *image.CMYK:
		return "CMYK"
	}
	return fmt.Sprintf("%T", m)
}

// FromImage returns m as an *image.NRGBA with its top-left corner at (0, 0).
// Any other image type fails with ErrUnsupportedFormat.
func FromImage(m image.Image) (*image.NRGBA, error) {
	nm, ok := m.(*image.NRGBA)
	if !ok {
		return nil, fmt.Errorf("%w, got %s", ErrUnsupportedFormat, describe(m))
	}

	b := nm.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w, got an empty image", ErrUnsupportedFormat)
	}

	// Adjust image so that top-left corner is at (0, 0)
	if b.Min != (image.Point{}) {
		dup := *nm
		dup.Rect = b.Sub(b.Min)
		nm = &dup
	}

	return nm, nil
}

// PNG IHDR field offsets, counted from the start of the file
const (
	pngBitDepth  = 24
	pngColorType = 25

	pngColorTypeRGBA = 6
)

// pngHeader checks the IHDR of a PNG file describes 8-bit RGBA. The Go
// decoder also returns *image.NRGBA for grey+alpha images and for RGB or grey
// images carrying a tRNS chunk, so the decoded type alone is not enough.
func pngHeader(b []byte) error {
	if len(b) <= pngColorType {
		return fmt.Errorf("%w: truncated PNG header", ErrDecode)
	}
	if b[pngBitDepth] != 8 || b[pngColorType] != pngColorTypeRGBA {
		return fmt.Errorf("%w, got PNG color type %d bit depth %d", ErrUnsupportedFormat, b[pngColorType], b[pngBitDepth])
	}
	return nil
}

// Decode reads an image from r and validates it with FromImage. It also
// returns the format name used during decoding.
func Decode(r io.Reader) (*image.NRGBA, string, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	m, format, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if format == "png" {
		if err := pngHeader(b); err != nil {
			return nil, format, err
		}
	}

	nm, err := FromImage(m)
	if err != nil {
		return nil, format, err
	}

	return nm, format, nil
}

func validate(m *image.NRGBA) error {
	b := m.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return ErrEncodingInternal
	}
	if m.Stride < b.Dx()*4 {
		return ErrEncodingInternal
	}
	// The last row only needs to be as long as the image is wide
	if len(m.Pix) < (b.Dy()-1)*m.Stride+b.Dx()*4 {
		return ErrEncodingInternal
	}
	return nil
}

// Encode packs every pixel of m, walking rows top to bottom and each row left
// to right. The returned stream has exactly width × height entries.
func Encode(m *image.NRGBA, l rgb565.Layout) ([]rgb565.Pixel, error) {
	if err := validate(m); err != nil {
		return nil, err
	}

	b := m.Bounds()
	stream := make([]rgb565.Pixel, 0, b.Dx()*b.Dy())

	for y := 0; y < b.Dy(); y++ {
		row := m.Pix[y*m.Stride:]
		for x := 0; x < b.Dx(); x++ {
			s := row[x*4 : x*4+4 : x*4+4]
			stream = append(stream, rgb565.Pack(color.NRGBA{s[0], s[1], s[2], s[3]}, l))
		}
	}

	return stream, nil
}

/*
Package rgb565 implements the packed pixel format used by emWin A565 bitmaps.

Each pixel is stored as three bytes. The first byte is the inverted alpha
channel, so 0x00 is fully opaque and 0xFF fully transparent. The remaining two
bytes hold a 16-bit 5-6-5 color word, most significant byte first. The
Layout decides whether red or blue occupies the top five bits of the word.
*/
package rgb565

import (
	"fmt"
	"image/color"
	"math"
	"strings"
)

const (
	// MaxRed is the largest quantized value of the red channel
	MaxRed = 1<<5 - 1
	// MaxGreen is the largest quantized value of the green channel
	MaxGreen = 1<<6 - 1
	// MaxBlue is the largest quantized value of the blue channel
	MaxBlue = 1<<5 - 1

	// BitsPerPixel is the size of a packed pixel in bits
	BitsPerPixel = 24
	// BytesPerPixel is the size of a packed pixel in bytes
	BytesPerPixel = BitsPerPixel / 8
)

// Layout selects which color channel occupies which bit field of the
// packed 5-6-5 word.
type Layout int

const (
	// Swapped places blue in the high five bits and red in the low five
	// bits, producing a BGR ordered word. This is the default.
	Swapped Layout = iota
	// Standard places red in the high five bits and blue in the low five
	// bits.
	Standard
)

var layoutNames = map[Layout]string{
	Swapped:  "swapped",
	Standard: "standard",
}

func (l Layout) String() string {
	if s, ok := layoutNames[l]; ok {
		return s
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// ParseLayout returns the Layout matching the given name, ignoring case.
// Both "bgr" and "rgb" are accepted as aliases.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(s) {
	case "swapped", "bgr", "":
		return Swapped, nil
	case "standard", "rgb":
		return Standard, nil
	}
	return Swapped, fmt.Errorf("rgb565: unknown layout %q", s)
}

// Quantize scales an 8-bit channel value down to the range [0, level] using
// rounded linear scaling. Halves round away from zero.
func Quantize(v, level uint8) uint8 {
	return uint8(math.Round(float64(v) * float64(level) / 255))
}

// Pixel is a packed pixel; the inverted alpha byte followed by the high and
// low bytes of the color word.
type Pixel [BytesPerPixel]byte

// Alpha returns the inverted alpha byte
func (p Pixel) Alpha() uint8 {
	return p[0]
}

// Word returns the 16-bit color word
func (p Pixel) Word() uint16 {
	return uint16(p[1])<<8 | uint16(p[2])
}

// Pack converts a non-premultiplied color into a packed pixel.
func Pack(c color.NRGBA, l Layout) Pixel {
	r := Quantize(c.R, MaxRed)
	g := Quantize(c.G, MaxGreen)
	b := Quantize(c.B, MaxBlue)

	// The high field is whichever of red or blue the layout puts first
	hi, lo := b, r
	if l == Standard {
		hi, lo = r, b
	}

	var p Pixel
	p[0] = 255 - c.A
	p[1] = hi<<3&0xf8 | g>>3&0x07
	p[2] = g&0x07<<5&0xe0 | lo&0x1f
	return p
}

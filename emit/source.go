package emit

import (
	"bufio"
	"fmt"
	"image/color"
	"io"

	"github.com/bodgit/emwin/rgb565"
)

// DefaultStorage is the storage qualifier placed in front of the pixel
// array unless overridden.
const DefaultStorage = "IN_EXTERNAL_FLASH"

// NoStorage can be passed as SourceOptions.Storage to omit the qualifier.
const NoStorage = "none"

// SourceOptions controls the generated C source
type SourceOptions struct {
	// Storage is the qualifier placed before the pixel array. An empty
	// string selects DefaultStorage.
	Storage string
}

func (o SourceOptions) qualifier() string {
	switch o.Storage {
	case "":
		return DefaultStorage + " "
	case NoStorage:
		return ""
	}
	return o.Storage + " "
}

type source struct {
	w    *bufio.Writer
	opts SourceOptions
	h    Header
}

// NewSource returns a Renderer writing an emWin GUI_BITMAP definition in C
// to w. The pixel array is named _ac<symbol> and the bitmap bm<symbol>.
func NewSource(w io.Writer, opts SourceOptions) Renderer {
	return &source{
		w:    bufio.NewWriter(w),
		opts: opts,
	}
}

func (s *source) Begin(h Header) error {
	if !validSymbol.MatchString(h.Symbol) {
		return fmt.Errorf("emit: invalid symbol %q", h.Symbol)
	}
	s.h = h

	_, err := fmt.Fprintf(s.w,
		"// Generated by emwinconv\n\n"+
			"#include <stdlib.h>\n\n"+
			"#include \"GUI.h\"\n\n"+
			"#ifndef GUI_CONST_STORAGE\n"+
			"\t#define GUI_CONST_STORAGE const\n"+
			"#endif\n\n"+
			"extern GUI_CONST_STORAGE GUI_BITMAP bm%s;\n\n"+
			"%sstatic GUI_CONST_STORAGE unsigned char _ac%s[] = {\n",
		h.Symbol, s.opts.qualifier(), h.Symbol)
	return err
}

func (s *source) Pixel(x, y int, _ color.NRGBA, p rgb565.Pixel) error {
	// The last pixel shouldn't have a trailing comma
	format := "0x%X, 0x%X, 0x%X, "
	if s.h.last(x, y) {
		format = "0x%X, 0x%X, 0x%X\n};\n"
	}
	_, err := fmt.Fprintf(s.w, format, p[0], p[1], p[2])
	return err
}

func (s *source) EndRow(int) error {
	return s.w.WriteByte('\n')
}

func (s *source) End() error {
	if _, err := fmt.Fprintf(s.w,
		"\nGUI_CONST_STORAGE GUI_BITMAP bm%s = {\n"+
			"\t\t%d, // xSize\n"+
			"\t\t%d, // ySize\n"+
			"\t\t%d, // BytesPerLine\n"+
			"\t\t%d, // BitsPerPixel\n"+
			"\t\t(unsigned char *)_ac%s, // Pointer to picture data\n"+
			"\t\tNULL, // Pointer to palette\n"+
			"\t\tGUI_DRAW_BMPA565\n"+
			"};\n\n",
		s.h.Symbol, s.h.Width, s.h.Height, s.h.BytesPerLine(), rgb565.BitsPerPixel, s.h.Symbol); err != nil {
		return err
	}
	return s.w.Flush()
}

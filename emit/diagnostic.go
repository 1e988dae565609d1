package emit

import (
	"bufio"
	"fmt"
	"image/color"
	"io"

	"github.com/bodgit/emwin/rgb565"
)

type diagnostic struct {
	w *bufio.Writer
}

// NewDiagnostic returns a Renderer writing one line per source pixel to w.
// The line reports the channel values before packing.
func NewDiagnostic(w io.Writer) Renderer {
	return &diagnostic{
		w: bufio.NewWriter(w),
	}
}

func (d *diagnostic) Begin(Header) error {
	return nil
}

func (d *diagnostic) Pixel(_, _ int, src color.NRGBA, _ rgb565.Pixel) error {
	_, err := fmt.Fprintf(d.w, "Red: %d, Green:%d, Blue:%d, Alpha:%d\n", src.R, src.G, src.B, src.A)
	return err
}

func (d *diagnostic) EndRow(int) error {
	return nil
}

func (d *diagnostic) End() error {
	return d.w.Flush()
}

package emit

import (
	"bufio"
	"image/color"
	"io"

	"github.com/bodgit/emwin/rgb565"
	"github.com/klauspost/compress/zstd"
)

type raw struct {
	w *bufio.Writer
}

// NewRaw returns a Renderer writing the packed pixels to w with no header,
// separators or padding.
func NewRaw(w io.Writer) Renderer {
	return &raw{
		w: bufio.NewWriter(w),
	}
}

func (r *raw) Begin(Header) error {
	return nil
}

func (r *raw) Pixel(_, _ int, _ color.NRGBA, p rgb565.Pixel) error {
	_, err := r.w.Write(p[:])
	return err
}

func (r *raw) EndRow(int) error {
	return nil
}

func (r *raw) End() error {
	return r.w.Flush()
}

type compressedRaw struct {
	raw
	enc *zstd.Encoder
}

// NewCompressedRaw returns a Renderer writing the same bytes as NewRaw but
// compressed as a single zstd frame.
func NewCompressedRaw(w io.Writer) (Renderer, error) {
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
	)
	if err != nil {
		return nil, err
	}

	return &compressedRaw{
		raw: raw{
			w: bufio.NewWriter(enc),
		},
		enc: enc,
	}, nil
}

func (c *compressedRaw) End() error {
	if err := c.raw.End(); err != nil {
		c.Close()
		return err
	}
	return c.Close()
}

// Close releases the encoder. It is a no-op once End or Close has already
// been called.
func (c *compressedRaw) Close() error {
	if c.enc == nil {
		return nil
	}
	err := c.enc.Close()
	c.enc = nil
	return err
}

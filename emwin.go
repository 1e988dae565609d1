/*
Package emwin is a library for converting images into emWin A565 bitmaps.

Each converted image produces three artifacts next to the input file; a C
source file defining a GUI_BITMAP, a raw binary blob of the packed pixels
suitable for writing to external flash and a text dump of the original pixel
values for debugging.
*/
package emwin

import (
	"errors"
	"fmt"
	"log"
	"runtime"

	"github.com/bodgit/emwin/emit"
	"github.com/bodgit/emwin/rgb565"
)

// Options configures a Converter. The zero value converts with the Swapped
// layout, the default storage qualifier and no resizing or color reduction.
type Options struct {
	Layout rgb565.Layout

	// Storage is the qualifier placed before the pixel array in the C
	// source, see emit.SourceOptions
	Storage string

	// Colors, if non-zero, limits the image to that many colors
	Colors int

	// Width and Height, if either is non-zero, resize the image first
	Width  int
	Height int

	// Compress additionally writes a zstd compressed copy of the raw
	// artifact
	Compress bool

	// Workers is the number of concurrent conversions used by Scan
	Workers int
}

// Validate checks the options are usable
func (o Options) Validate() error {
	switch {
	case o.Layout != rgb565.Swapped && o.Layout != rgb565.Standard:
		return fmt.Errorf("emwin: invalid layout %s", o.Layout)
	case o.Colors != 0 && (o.Colors < 2 || o.Colors > 256):
		return errors.New("emwin: colors must be between 2 and 256")
	case o.Width < 0 || o.Height < 0:
		return errors.New("emwin: resize dimensions cannot be negative")
	}
	return nil
}

func (o Options) sourceOptions() emit.SourceOptions {
	return emit.SourceOptions{
		Storage: o.Storage,
	}
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// Converter converts image files into emWin bitmaps
type Converter struct {
	db     *Catalog
	logger *log.Logger
	opts   Options
}

// New returns a Converter. The catalog db is optional and may be nil.
func New(db *Catalog, logger *log.Logger, opts Options) *Converter {
	return &Converter{
		db:     db,
		logger: logger,
		opts:   opts,
	}
}

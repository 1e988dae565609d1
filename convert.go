package emwin

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"hash"
	"image"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/emwin/emit"
	"github.com/bodgit/emwin/raster"
	"github.com/bodgit/emwin/rgb565"
)

// Artifact file extensions
const (
	SourceExt     = ".c"
	RawExt        = ".raw"
	DiagnosticExt = ".txt"
	CompressedExt = ".raw.zst"
)

// Result describes a successful conversion
type Result struct {
	Source     string
	Raw        string
	Diagnostic string
	// Compressed is empty unless Options.Compress is set
	Compressed string

	Symbol string
	Width  int
	Height int

	// Skipped is set when the catalog shows the artifacts are already up
	// to date
	Skipped bool
}

func (r *Result) paths() []string {
	p := []string{r.Source, r.Raw, r.Diagnostic}
	if r.Compressed != "" {
		p = append(p, r.Compressed)
	}
	return p
}

func exists(files ...string) bool {
	for _, f := range files {
		if info, err := os.Stat(f); err != nil || !info.Mode().IsRegular() {
			return false
		}
	}
	return true
}

func (c *Converter) prepare(m *image.NRGBA) (*image.NRGBA, error) {
	var err error
	if c.opts.Width != 0 || c.opts.Height != 0 {
		if m, err = raster.Resize(m, c.opts.Width, c.opts.Height); err != nil {
			return nil, err
		}
	}
	if c.opts.Colors != 0 {
		if m, err = raster.Reduce(m, c.opts.Colors); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (c *Converter) key() string {
	return fmt.Sprintf("layout=%s storage=%s colors=%d size=%dx%d zstd=%t",
		c.opts.Layout, c.opts.Storage, c.opts.Colors, c.opts.Width, c.opts.Height, c.opts.Compress)
}

// Convert converts the image file into its artifacts, which are written
// alongside it using the same name minus the extension. If the conversion
// fails no artifacts are left behind.
func (c *Converter) Convert(file string) (*Result, error) {
	if err := c.opts.Validate(); err != nil {
		return nil, err
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, &Error{IOError, file, err}
	}
	defer f.Close()

	b, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, &Error{IOError, file, err}
	}
	sum := sha1.Sum(b)
	sha := fmt.Sprintf("%X", sum[:])

	m, format, err := raster.Decode(bytes.NewReader(b))
	switch {
	case errors.Is(err, raster.ErrUnsupportedFormat):
		return nil, &Error{UnsupportedFormat, file, err}
	case err != nil:
		return nil, &Error{DecodeError, file, err}
	}
	c.logger.Printf("Decoded %s image \"%s\", %dx%d\n", format, file, m.Bounds().Dx(), m.Bounds().Dy())

	if m, err = c.prepare(m); err != nil {
		return nil, &Error{EncodingInternal, file, err}
	}

	base := strings.TrimSuffix(file, filepath.Ext(file))
	result := &Result{
		Source:     base + SourceExt,
		Raw:        base + RawExt,
		Diagnostic: base + DiagnosticExt,
		Symbol:     emit.Symbol(filepath.Base(base)),
		Width:      m.Bounds().Dx(),
		Height:     m.Bounds().Dy(),
	}
	if c.opts.Compress {
		result.Compressed = base + CompressedExt
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, &Error{IOError, file, err}
	}

	if c.db != nil {
		record, err := c.db.Find(abs, c.key())
		if err != nil {
			return nil, &Error{IOError, file, err}
		}
		if record != nil && record.SHA1 == sha && exists(result.paths()...) {
			c.logger.Printf("Skipping \"%s\", unchanged since last conversion\n", file)
			result.Skipped = true
			return result, nil
		}
	}

	stream, err := raster.Encode(m, c.opts.Layout)
	if err != nil {
		return nil, &Error{EncodingInternal, file, err}
	}

	raw, err := c.write(result, m, stream)
	if err != nil {
		return nil, err
	}
	c.logger.Printf("Wrote \"%s\", \"%s\" and \"%s\"\n", result.Source, result.Raw, result.Diagnostic)

	if c.db != nil {
		if err := c.db.Add(Record{
			Source:  abs,
			SHA1:    sha,
			Options: c.key(),
			Symbol:  result.Symbol,
			Width:   result.Width,
			Height:  result.Height,
			Layout:  c.opts.Layout.String(),
			RawSHA1: fmt.Sprintf("%X", raw.Sum(nil)),
		}); err != nil {
			return nil, &Error{IOError, file, err}
		}
	}

	return result, nil
}

// write creates every artifact of result and emits the stream into them.
// On failure any artifact already created is removed.
func (c *Converter) write(result *Result, m *image.NRGBA, stream []rgb565.Pixel) (h hash.Hash, err error) {
	var (
		files     []*os.File
		renderers []emit.Renderer
	)
	defer func() {
		if err != nil {
			// Renderers that never reached End still hold resources
			for _, r := range renderers {
				if closer, ok := r.(io.Closer); ok {
					closer.Close()
				}
			}
		}
		for _, f := range files {
			f.Close()
			if err != nil {
				os.Remove(f.Name())
			}
		}
	}()

	create := func(name string) (*os.File, error) {
		f, err := os.Create(name)
		if err != nil {
			return nil, &Error{IOError, name, err}
		}
		files = append(files, f)
		return f, nil
	}

	source, err := create(result.Source)
	if err != nil {
		return nil, err
	}
	raw, err := create(result.Raw)
	if err != nil {
		return nil, err
	}
	diagnostic, err := create(result.Diagnostic)
	if err != nil {
		return nil, err
	}

	h = sha1.New()
	renderers = append(renderers,
		emit.NewSource(source, c.opts.sourceOptions()),
		emit.NewRaw(io.MultiWriter(raw, h)),
		emit.NewDiagnostic(diagnostic),
	)

	if result.Compressed != "" {
		compressed, err := create(result.Compressed)
		if err != nil {
			return nil, err
		}
		r, err := emit.NewCompressedRaw(compressed)
		if err != nil {
			return nil, &Error{IOError, result.Compressed, err}
		}
		renderers = append(renderers, r)
	}

	if err = emit.Emit(m, stream, result.Symbol, renderers...); err != nil {
		if errors.Is(err, emit.ErrStreamLength) {
			return nil, &Error{EncodingInternal, result.Source, err}
		}
		return nil, &Error{IOError, result.Source, err}
	}

	for _, f := range files {
		if err = f.Close(); err != nil {
			return nil, &Error{IOError, f.Name(), err}
		}
	}
	files = nil

	return h, nil
}

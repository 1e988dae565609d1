package emwin

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bodgit/emwin/raster"
	"github.com/bodgit/emwin/rgb565"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *log.Logger {
	return log.New(ioutil.Discard, "", 0)
}

func writePNG(t *testing.T, file string, m image.Image) {
	t.Helper()

	f, err := os.Create(file)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, png.Encode(f, m))
}

func twoPixels() *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	m.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	m.SetNRGBA(1, 0, color.NRGBA{0, 255, 0, 0})
	return m
}

func checker(w, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 0x80, A: 0xff}
			if (x+y)%2 == 0 {
				c.A = 0x40
			}
			m.SetNRGBA(x, y, c)
		}
	}
	return m
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logo.png")
	writePNG(t, file, twoPixels())

	c := New(nil, discard(), Options{})
	result, err := c.Convert(file)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "logo.c"), result.Source)
	assert.Equal(t, filepath.Join(dir, "logo.raw"), result.Raw)
	assert.Equal(t, filepath.Join(dir, "logo.txt"), result.Diagnostic)
	assert.Equal(t, "", result.Compressed)
	assert.Equal(t, "logo", result.Symbol)
	assert.Equal(t, 2, result.Width)
	assert.Equal(t, 1, result.Height)
	assert.False(t, result.Skipped)

	raw, err := ioutil.ReadFile(result.Raw)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x1f, 0xff, 0x07, 0xe0}, raw)

	source, err := ioutil.ReadFile(result.Source)
	require.NoError(t, err)
	assert.Contains(t, string(source), "IN_EXTERNAL_FLASH static GUI_CONST_STORAGE unsigned char _aclogo[] = {\n0x0, 0x0, 0x1F, 0xFF, 0x7, 0xE0\n};\n")
	assert.Contains(t, string(source), "GUI_CONST_STORAGE GUI_BITMAP bmlogo = {\n")

	diagnostic, err := ioutil.ReadFile(result.Diagnostic)
	require.NoError(t, err)
	assert.Equal(t, "Red: 255, Green:0, Blue:0, Alpha:255\nRed: 0, Green:255, Blue:0, Alpha:0\n", string(diagnostic))
}

func TestConvertStandardLayout(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logo.png")
	writePNG(t, file, twoPixels())

	result, err := New(nil, discard(), Options{Layout: rgb565.Standard}).Convert(file)
	require.NoError(t, err)

	raw, err := ioutil.ReadFile(result.Raw)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xf8, 0x00, 0xff, 0x07, 0xe0}, raw)
}

// writeRawPNG writes an 8-bit PNG with the given color type and optional
// tRNS chunk, neither of which the standard encoder lets us choose.
func writeRawPNG(t *testing.T, file string, w, h int, colorType uint8, pix, trns []byte) {
	t.Helper()

	b := new(bytes.Buffer)
	chunk := func(name string, data []byte) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(data)))
		b.Write(n[:])
		b.WriteString(name)
		b.Write(data)
		binary.BigEndian.PutUint32(n[:], crc32.ChecksumIEEE(append([]byte(name), data...)))
		b.Write(n[:])
	}

	b.WriteString("\x89PNG\r\n\x1a\n")
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:], uint32(h))
	ihdr[8] = 8
	ihdr[9] = colorType
	chunk("IHDR", ihdr)
	if trns != nil {
		chunk("tRNS", trns)
	}

	stride := len(pix) / h
	idat := new(bytes.Buffer)
	z := zlib.NewWriter(idat)
	for y := 0; y < h; y++ {
		_, err := z.Write(append([]byte{0}, pix[y*stride:(y+1)*stride]...))
		require.NoError(t, err)
	}
	require.NoError(t, z.Close())
	chunk("IDAT", idat.Bytes())
	chunk("IEND", nil)

	require.NoError(t, ioutil.WriteFile(file, b.Bytes(), 0644))
}

func TestConvertUnsupported(t *testing.T) {
	tables := []struct {
		name  string
		write func(t *testing.T, file string)
	}{
		{
			"opaque",
			func(t *testing.T, file string) {
				// Fully opaque images are written without an alpha channel
				m := image.NewNRGBA(image.Rect(0, 0, 3, 3))
				for i := range m.Pix {
					m.Pix[i] = 0xff
				}
				writePNG(t, file, m)
			},
		},
		{
			"grey+alpha",
			func(t *testing.T, file string) {
				writeRawPNG(t, file, 2, 1, 4, []byte{0x80, 0xff, 0x40, 0x00}, nil)
			},
		},
		{
			"rgb+trns",
			func(t *testing.T, file string) {
				writeRawPNG(t, file, 1, 1, 2, []byte{0x10, 0x20, 0x30}, []byte{0x00, 0x10, 0x00, 0x20, 0x00, 0x30})
			},
		},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			dir := t.TempDir()
			file := filepath.Join(dir, "image.png")
			table.write(t, file)

			_, err := New(nil, discard(), Options{}).Convert(file)
			require.Error(t, err)

			var e *Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, UnsupportedFormat, e.Kind)
			assert.Equal(t, file, e.Path)
			assert.True(t, errors.Is(err, raster.ErrUnsupportedFormat))

			files, err := ioutil.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, files, 1)
		})
	}
}

func TestConvertErrors(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.png")
	require.NoError(t, ioutil.WriteFile(garbage, []byte("\x89PNG but not really"), 0644))

	tables := []struct {
		name string
		file string
		kind Kind
	}{
		{"missing", filepath.Join(dir, "missing.png"), IOError},
		{"garbage", garbage, DecodeError},
	}

	c := New(nil, discard(), Options{})
	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			_, err := c.Convert(table.file)
			var e *Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, table.kind, e.Kind)
		})
	}

	_, err := New(nil, discard(), Options{Colors: 1}).Convert(garbage)
	assert.Error(t, err)
	assert.False(t, errors.As(err, new(*Error)))
}

func TestConvertCleanup(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logo.png")
	writePNG(t, file, twoPixels())

	// A directory where the diagnostic file should go stops it being created
	require.NoError(t, os.Mkdir(filepath.Join(dir, "logo.txt"), 0755))

	_, err := New(nil, discard(), Options{}).Convert(file)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, IOError, e.Kind)

	for _, ext := range []string{SourceExt, RawExt} {
		_, err := os.Stat(filepath.Join(dir, "logo"+ext))
		assert.True(t, os.IsNotExist(err), ext)
	}
}

func TestConvertCompressAndPrepare(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "checker.png")
	writePNG(t, file, checker(16, 8))

	result, err := New(nil, discard(), Options{
		Compress: true,
		Colors:   8,
		Width:    8,
		Storage:  "none",
	}).Convert(file)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "checker.raw.zst"), result.Compressed)
	assert.Equal(t, 8, result.Width)
	assert.Equal(t, 4, result.Height)

	raw, err := ioutil.ReadFile(result.Raw)
	require.NoError(t, err)
	assert.Len(t, raw, 8*4*3)

	compressed, err := ioutil.ReadFile(result.Compressed)
	require.NoError(t, err)

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()

	out, err := dec.DecodeAll(compressed, nil)
	require.NoError(t, err)
	assert.Equal(t, raw, out)

	source, err := ioutil.ReadFile(result.Source)
	require.NoError(t, err)
	assert.Contains(t, string(source), "\nstatic GUI_CONST_STORAGE unsigned char _acchecker[] = {\n")

	diagnostic, err := ioutil.ReadFile(result.Diagnostic)
	require.NoError(t, err)
	assert.Equal(t, 8*4, strings.Count(string(diagnostic), "\n"))
}

func TestCatalog(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logo.png")
	writePNG(t, file, twoPixels())

	db, err := NewCatalog(filepath.Join(dir, "emwin.db"))
	require.NoError(t, err)
	defer db.Close()

	c := New(db, discard(), Options{})

	result, err := c.Convert(file)
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	records, err := db.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "logo", records[0].Symbol)
	assert.Equal(t, 2, records[0].Width)
	assert.Equal(t, 1, records[0].Height)
	assert.Equal(t, "swapped", records[0].Layout)
	assert.Len(t, records[0].RawSHA1, 40)

	// Unchanged input and artifacts present
	result, err = c.Convert(file)
	require.NoError(t, err)
	assert.True(t, result.Skipped)

	// A missing artifact forces a conversion
	require.NoError(t, os.Remove(result.Diagnostic))
	result, err = c.Convert(file)
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	// Different options are recorded separately
	result, err = New(db, discard(), Options{Layout: rgb565.Standard}).Convert(file)
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	records, err = db.List()
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// Changing the image invalidates the record
	m := twoPixels()
	m.SetNRGBA(0, 0, color.NRGBA{0, 0, 255, 255})
	writePNG(t, file, m)

	result, err = c.Convert(file)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "icons", "small"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".hidden"), 0755))

	writePNG(t, filepath.Join(dir, "logo.png"), twoPixels())
	writePNG(t, filepath.Join(dir, "icons", "home.png"), checker(4, 4))
	writePNG(t, filepath.Join(dir, "icons", "small", "back.PNG"), checker(2, 2))
	writePNG(t, filepath.Join(dir, ".hidden", "secret.png"), twoPixels())

	// Not RGBA, so logged and skipped
	writePNG(t, filepath.Join(dir, "gray.png"), image.NewGray(image.Rect(0, 0, 2, 2)))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "notes.md"), []byte("# notes"), 0644))

	var logs bytes.Buffer
	c := New(nil, log.New(&logs, "", 0), Options{Workers: 2})
	require.NoError(t, c.Scan(dir))

	for _, base := range []string{"logo", filepath.Join("icons", "home"), filepath.Join("icons", "small", "back")} {
		for _, ext := range []string{SourceExt, RawExt, DiagnosticExt} {
			_, err := os.Stat(filepath.Join(dir, base+ext))
			assert.NoError(t, err, base+ext)
		}
	}

	_, err := os.Stat(filepath.Join(dir, ".hidden", "secret.c"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "gray.c"))
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, logs.String(), "gray.png")
}

func TestScanFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "broken.png"), []byte("nope"), 0644))

	err := New(nil, discard(), Options{}).Scan(dir)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, DecodeError, e.Kind)
}

func TestScanSharedName(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.PNG"), checker(4, 4))
	writePNG(t, filepath.Join(dir, "a.png"), twoPixels())

	files, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	if len(files) != 2 {
		t.Skip("filesystem is case-insensitive")
	}

	var logs bytes.Buffer
	c := New(nil, log.New(&logs, "", 0), Options{Workers: 2})
	require.NoError(t, c.Scan(dir))

	// Walk order is lexical so the upper case name claims the artifacts
	raw, err := ioutil.ReadFile(filepath.Join(dir, "a.raw"))
	require.NoError(t, err)
	assert.Len(t, raw, 4*4*3)
	assert.Contains(t, logs.String(), "Ignoring \""+filepath.Join(dir, "a.png")+"\"")
}

func TestImageWorkerCancelled(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logo.png")
	writePNG(t, file, twoPixels())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := make(chan string, 1)
	in <- file
	close(in)

	c := New(nil, discard(), Options{})
	errc, err := c.imageWorker(ctx, in)
	require.NoError(t, err)
	for err := range errc {
		assert.NoError(t, err)
	}

	_, err = os.Stat(filepath.Join(dir, "logo.c"))
	assert.True(t, os.IsNotExist(err))
}

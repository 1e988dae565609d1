package emwin

import "fmt"

// Kind classifies a conversion failure
type Kind int

const (
	// IOError means a file could not be opened, read or written
	IOError Kind = iota + 1
	// DecodeError means the input is not a recognised image container
	DecodeError
	// UnsupportedFormat means the image is not 8-bit RGBA
	UnsupportedFormat
	// EncodingInternal means the decoded raster was inconsistent
	EncodingInternal
)

var kindNames = map[Kind]string{
	IOError:           "i/o error",
	DecodeError:       "decode error",
	UnsupportedFormat: "unsupported format",
	EncodingInternal:  "internal encoding error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error records a failed conversion and the file it concerns
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

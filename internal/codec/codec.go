// Package codec adapts image decoding and JPEG encoding behind a narrow,
// concurrency-safe interface. The adapter never writes to disk; callers own
// the destination file.
package codec

import (
	"bytes"
	"fmt"
	"os"

	"github.com/disintegration/imaging"
)

// ErrorKind classifies codec failures.
type ErrorKind string

const (
	// Unreadable means the source file could not be opened or read.
	Unreadable ErrorKind = "unreadable"
	// UnsupportedFormat means the file content is not a decodable image.
	UnsupportedFormat ErrorKind = "unsupported_format"
	// EncodeFailure means decoding succeeded but JPEG encoding failed.
	EncodeFailure ErrorKind = "encode_failure"
)

// Error is a codec failure with its classification.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec %s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Codec encodes a source image file to JPEG bytes at a quality setting.
// Implementations must be safe for concurrent use with distinct inputs.
type Codec interface {
	EncodeJPEG(path string, quality int) ([]byte, error)
}

// JPEGCodec is the default Codec built on the imaging library.
type JPEGCodec struct{}

// NewJPEGCodec returns a new JPEGCodec.
func NewJPEGCodec() *JPEGCodec {
	return &JPEGCodec{}
}

// EncodeJPEG decodes the image at path and re-encodes it as JPEG at the
// given quality. It is a pure function of its inputs: per-call buffers only,
// no shared state.
func (c *JPEGCodec) EncodeJPEG(path string, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		return nil, &Error{Kind: EncodeFailure, Path: path, Err: fmt.Errorf("quality %d out of range 1..100", quality)}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Kind: Unreadable, Path: path, Err: err}
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &Error{Kind: UnsupportedFormat, Path: path, Err: err}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, &Error{Kind: EncodeFailure, Path: path, Err: err}
	}

	return buf.Bytes(), nil
}

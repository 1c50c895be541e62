package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"image-compressor-go/internal/codec"
	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/metadata"

	"github.com/sirupsen/logrus"
)

// Success action tags.
const (
	ActionCompressed = "compressed"
	ActionOriginal   = "original"
)

// CompressExecutor executes compression tasks: decode, encode to JPEG,
// write the destination atomically. Safe for concurrent use; all buffers
// are per call.
type CompressExecutor struct {
	codec        codec.Codec
	logger       *logrus.Logger
	captureTimer *metadata.CaptureTimer
	copier       metadata.Copier
	keepLarger   bool
}

// ExecutorOption configures a CompressExecutor.
type ExecutorOption func(*CompressExecutor)

// WithCaptureTimer makes the executor carry the source capture time over to
// the destination file's modification time.
func WithCaptureTimer(ct *metadata.CaptureTimer) ExecutorOption {
	return func(e *CompressExecutor) { e.captureTimer = ct }
}

// WithEXIFCopier makes the executor copy EXIF tags onto the destination.
func WithEXIFCopier(c metadata.Copier) ExecutorOption {
	return func(e *CompressExecutor) { e.copier = c }
}

// WithKeepLarger keeps the encoded file even when it is larger than the
// source. By default the original bytes are used instead.
func WithKeepLarger(keep bool) ExecutorOption {
	return func(e *CompressExecutor) { e.keepLarger = keep }
}

// NewCompressExecutor returns a new CompressExecutor.
func NewCompressExecutor(c codec.Codec, logger *logrus.Logger, opts ...ExecutorOption) *CompressExecutor {
	e := &CompressExecutor{codec: c, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute processes one task fully: encode, write to a temp file, rename
// into place. The destination never holds a partial write.
func (e *CompressExecutor) Execute(ctx context.Context, t Task) Outcome {
	started := time.Now()
	log := logger.WithFile(e.logger, t.Source.Path)
	log.Debug("Compressing file")

	encoded, err := e.codec.EncodeJPEG(t.Source.Path, t.Quality)
	if err != nil {
		return Failed(t, failureKindForCodec(err), err, started)
	}

	if err := os.MkdirAll(filepath.Dir(t.Destination), 0755); err != nil {
		return Failed(t, FailDestinationUnwritable, fmt.Errorf("create destination dir: %w", err), started)
	}

	action := ActionCompressed
	if int64(len(encoded)) >= t.Source.Size && !e.keepLarger {
		// Encoding did not shrink the file; ship the original bytes instead.
		action = ActionOriginal
		encoded, err = os.ReadFile(t.Source.Path)
		if err != nil {
			return Failed(t, FailUnreadable, fmt.Errorf("read original: %w", err), started)
		}
	}

	tmpPath := t.Destination + ".tmp"
	if err := writeAndSync(tmpPath, encoded); err != nil {
		_ = os.Remove(tmpPath)
		return Failed(t, failureKindForWrite(err), fmt.Errorf("write destination: %w", err), started)
	}

	if err := os.Rename(tmpPath, t.Destination); err != nil {
		_ = os.Remove(tmpPath)
		return Failed(t, FailDestinationUnwritable, fmt.Errorf("rename destination: %w", err), started)
	}

	outcome := Succeeded(t, action, int64(len(encoded)), started)

	if e.copier != nil && action == ActionCompressed {
		if err := e.copier.CopyEXIF(t.Source.Path, t.Destination); err != nil {
			log.Warnf("Could not copy EXIF to %s: %v", t.Destination, err)
			outcome.Message = fmt.Sprintf("warning: exif not copied: %v", err)
		}
	}

	if e.captureTimer != nil {
		if captured, err := e.captureTimer.CaptureTime(t.Source.Path); err == nil {
			if err := os.Chtimes(t.Destination, captured, captured); err != nil {
				log.Warnf("Could not set capture time on %s: %v", t.Destination, err)
			}
		}
	}

	log.Infof("Compressed -> %s (%d -> %d bytes)", t.Destination, outcome.InputSize, outcome.OutputSize)
	return outcome
}

// writeAndSync writes data to path and flushes it to stable storage before
// the rename that publishes it.
func writeAndSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func failureKindForCodec(err error) FailureKind {
	var cerr *codec.Error
	if errors.As(err, &cerr) {
		switch cerr.Kind {
		case codec.Unreadable:
			return FailUnreadable
		case codec.UnsupportedFormat:
			return FailUnsupportedFormat
		case codec.EncodeFailure:
			return FailEncode
		}
	}
	return FailEncode
}

func failureKindForWrite(err error) FailureKind {
	if errors.Is(err, syscall.ENOSPC) {
		return FailDiskFull
	}
	return FailDestinationUnwritable
}

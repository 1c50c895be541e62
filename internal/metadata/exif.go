// Package metadata reads and carries over EXIF metadata for compressed
// copies: capture time lookup for timestamp preservation and a full tag
// copy via the exiftool helper.
package metadata

import (
	"fmt"
	"os"
	"time"

	"github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
)

// CaptureTimer resolves the capture time of an image so the compressed copy
// can keep it as its modification time.
type CaptureTimer struct {
	logger *logrus.Logger
}

// NewCaptureTimer returns a new CaptureTimer.
func NewCaptureTimer(logger *logrus.Logger) *CaptureTimer {
	return &CaptureTimer{logger: logger}
}

// CaptureTime returns the EXIF capture time of the image at path. If the
// file carries no usable EXIF data, the file modification time is returned
// instead.
func (c *CaptureTimer) CaptureTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat file: %w", err)
	}

	if t, err := c.extractWithGoExif(path); err == nil {
		return t, nil
	}

	return info.ModTime(), nil
}

func (c *CaptureTimer) extractWithGoExif(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}

	t, err := x.DateTime()
	if err != nil {
		return time.Time{}, err
	}

	c.logger.Debugf("Extracted capture time %s from %s", t.Format("2006-01-02 15:04:05"), path)
	return t, nil
}

// Copier carries EXIF tags from a source image to its compressed copy.
type Copier interface {
	CopyEXIF(src, dst string) error
}

// ExiftoolCopier copies EXIF tags using the exiftool helper process.
type ExiftoolCopier struct{}

// NewExiftoolCopier returns a new ExiftoolCopier. It fails when the
// exiftool binary is not available on the host.
func NewExiftoolCopier() (*ExiftoolCopier, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("exiftool unavailable: %w", err)
	}
	defer et.Close()
	return &ExiftoolCopier{}, nil
}

// CopyEXIF copies all EXIF tags from src onto dst.
func (c *ExiftoolCopier) CopyEXIF(src, dst string) error {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return fmt.Errorf("exiftool unavailable: %w", err)
	}
	defer et.Close()

	metas := et.ExtractMetadata(src)
	if len(metas) == 0 {
		return fmt.Errorf("no metadata extracted from %s", src)
	}
	if metas[0].Err != nil {
		return fmt.Errorf("extract metadata: %w", metas[0].Err)
	}

	out := exiftool.EmptyFileMetadata()
	out.File = dst
	out.Fields = metas[0].Fields

	targets := []exiftool.FileMetadata{out}
	et.WriteMetadata(targets)
	if targets[0].Err != nil {
		return fmt.Errorf("write metadata: %w", targets[0].Err)
	}
	return nil
}

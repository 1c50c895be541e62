package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"
)

// ZipInvoker archives a directory into a .zip file in-process, so the zip
// format works with no external tool installed.
type ZipInvoker struct {
	logger *logrus.Logger
}

// NewZipInvoker returns a new ZipInvoker.
func NewZipInvoker(logger *logrus.Logger) *ZipInvoker {
	return &ZipInvoker{logger: logger}
}

// Archive writes <ArchiveDir>/<base(OutputDir)>.zip containing the output
// directory tree. The archive is written to a temp file and renamed into
// place, so a failed run leaves no partial archive behind.
func (z *ZipInvoker) Archive(req Request) error {
	if info, err := os.Stat(req.OutputDir); err != nil {
		return &Error{Kind: IO, Err: fmt.Errorf("output directory: %w", err)}
	} else if !info.IsDir() {
		return &Error{Kind: IO, Err: fmt.Errorf("output path %s is not a directory", req.OutputDir)}
	}

	if err := os.MkdirAll(req.ArchiveDir, 0755); err != nil {
		return &Error{Kind: IO, Err: fmt.Errorf("create archive dir: %w", err)}
	}

	archivePath := filepath.Join(req.ArchiveDir, filepath.Base(req.OutputDir)+".zip")
	z.logger.Infof("Archiving %s -> %s", req.OutputDir, archivePath)

	tmpPath := archivePath + ".tmp"
	if err := z.writeZip(tmpPath, req.OutputDir); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, archivePath); err != nil {
		_ = os.Remove(tmpPath)
		return &Error{Kind: IO, Err: fmt.Errorf("rename archive: %w", err)}
	}

	z.logger.Infof("Archive complete: %s", archivePath)
	return nil
}

func (z *ZipInvoker) writeZip(path, root string) error {
	out, err := os.Create(path)
	if err != nil {
		return &Error{Kind: IO, Err: fmt.Errorf("create archive: %w", err)}
	}
	defer out.Close()

	w := zip.NewWriter(out)
	base := filepath.Base(root)

	walkErr := filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		entryName := filepath.ToSlash(filepath.Join(base, rel))

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		dst, err := w.Create(entryName)
		if err != nil {
			return err
		}
		_, err = io.Copy(dst, f)
		return err
	})
	if walkErr != nil {
		_ = w.Close()
		return &Error{Kind: IO, Err: fmt.Errorf("write archive entries: %w", walkErr)}
	}

	if err := w.Close(); err != nil {
		return &Error{Kind: IO, Err: fmt.Errorf("finalize archive: %w", err)}
	}
	if err := out.Sync(); err != nil {
		return &Error{Kind: IO, Err: fmt.Errorf("sync archive: %w", err)}
	}
	return nil
}

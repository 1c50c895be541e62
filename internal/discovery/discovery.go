// Package discovery walks a source directory and yields candidate image
// files for compression.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrorKind classifies discovery failures.
type ErrorKind string

const (
	// NotFound means the root directory does not exist.
	NotFound ErrorKind = "not_found"
	// NotADirectory means the root path exists but is not a directory.
	NotADirectory ErrorKind = "not_a_directory"
)

// Error is a discovery failure with its classification.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("discovery %s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// SourceFile describes one discovered file. Immutable once discovered.
type SourceFile struct {
	Path   string // absolute path
	Size   int64
	Format string // extension tag, e.g. "JPG"; empty for files without one
	// Supported reports whether the extension belongs to the candidate
	// image set. Unsupported files are still listed so the job can account
	// for them instead of silently skipping them.
	Supported bool
}

// Options controls a discovery walk.
type Options struct {
	Recursive bool
	// Extensions is the set of candidate image extensions, lowercased with
	// a leading dot.
	Extensions []string
	// ExcludeDir is skipped entirely when it sits inside the root. Used to
	// keep already-compressed output out of a new run.
	ExcludeDir string
}

// Discoverer finds candidate image files under a root directory.
type Discoverer struct {
	logger *logrus.Logger
}

// NewDiscoverer returns a new Discoverer.
func NewDiscoverer(logger *logrus.Logger) *Discoverer {
	return &Discoverer{logger: logger}
}

// Discover walks root and returns every regular file it finds, with files
// outside the candidate extension set marked unsupported. The extension
// check is deliberately cheap: file contents are only opened later, by the
// codec. An empty directory yields an empty slice and no error.
func (d *Discoverer) Discover(root string, opts Options) ([]SourceFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &Error{Kind: NotFound, Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &Error{Kind: NotADirectory, Path: root, Err: fmt.Errorf("not a directory")}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &Error{Kind: NotFound, Path: root, Err: err}
	}

	extSet := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		extSet[strings.ToLower(ext)] = struct{}{}
	}

	var excludeAbs string
	if opts.ExcludeDir != "" {
		excludeAbs, _ = filepath.Abs(opts.ExcludeDir)
	}

	var files []SourceFile
	walkErr := filepath.WalkDir(absRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			d.logger.Warnf("Error accessing path %s: %v", path, err)
			return nil
		}

		if entry.IsDir() {
			if path == absRoot {
				return nil
			}
			if excludeAbs != "" && path == excludeAbs {
				d.logger.Debugf("Skipping output directory: %s", path)
				return filepath.SkipDir
			}
			if !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		_, supported := extSet[ext]

		fi, err := entry.Info()
		if err != nil {
			d.logger.Warnf("Error reading file info for %s: %v", path, err)
			return nil
		}

		files = append(files, SourceFile{
			Path:      path,
			Size:      fi.Size(),
			Format:    strings.ToUpper(strings.TrimPrefix(ext, ".")),
			Supported: supported,
		})
		return nil
	})
	if walkErr != nil {
		return nil, &Error{Kind: NotFound, Path: root, Err: walkErr}
	}

	return files, nil
}

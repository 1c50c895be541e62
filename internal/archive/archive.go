// Package archive turns a finished output directory into a single archive
// file placed alongside it. Archiving is additive: the directory being
// archived is never mutated, even on failure.
package archive

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrorKind classifies archive failures.
type ErrorKind string

const (
	// ToolNotFound means the required external archiver is not installed.
	ToolNotFound ErrorKind = "tool_not_found"
	// ProcessFailed means the archiver ran but reported failure.
	ProcessFailed ErrorKind = "process_failed"
	// IO means reading the output directory or writing the archive failed.
	IO ErrorKind = "io_error"
)

// Error is an archive failure with its classification.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Request describes one archive invocation. Built once by the coordinator,
// consumed once by the invoker.
type Request struct {
	// OutputDir is the finished compression output directory to archive.
	OutputDir string
	// ArchiveDir is where the archive file is placed. The file is named
	// after OutputDir with the format's extension.
	ArchiveDir string
}

// Invoker produces an archive from a finished output directory.
type Invoker interface {
	Archive(req Request) error
}

// NewInvoker returns the invoker for a configured format, or nil when the
// format is "none" or unknown.
func NewInvoker(format, tool string, logger *logrus.Logger) Invoker {
	switch format {
	case "zip":
		return NewZipInvoker(logger)
	case "7z":
		return NewSevenZipInvoker(tool, logger)
	default:
		return nil
	}
}

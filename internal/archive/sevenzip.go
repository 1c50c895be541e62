package archive

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// SevenZipInvoker archives a directory by invoking an external 7z-compatible
// executable. The executable name comes from configuration; no install
// location is assumed.
type SevenZipInvoker struct {
	tool   string
	logger *logrus.Logger
}

// NewSevenZipInvoker returns an invoker running the given executable.
func NewSevenZipInvoker(tool string, logger *logrus.Logger) *SevenZipInvoker {
	if tool == "" {
		tool = "7z"
	}
	return &SevenZipInvoker{tool: tool, logger: logger}
}

// Archive runs the external archiver against the output directory. Absence
// of the executable is reported as ToolNotFound, distinct from a run that
// started and failed.
func (s *SevenZipInvoker) Archive(req Request) error {
	toolPath, err := exec.LookPath(s.tool)
	if err != nil {
		return &Error{Kind: ToolNotFound, Err: fmt.Errorf("archiver %q not found: %w", s.tool, err)}
	}

	if _, err := os.Stat(req.OutputDir); err != nil {
		return &Error{Kind: IO, Err: fmt.Errorf("output directory: %w", err)}
	}

	if err := os.MkdirAll(req.ArchiveDir, 0755); err != nil {
		return &Error{Kind: IO, Err: fmt.Errorf("create archive dir: %w", err)}
	}

	archivePath := filepath.Join(req.ArchiveDir, filepath.Base(req.OutputDir)+".7z")
	s.logger.Infof("Archiving %s -> %s", req.OutputDir, archivePath)

	cmd := exec.Command(toolPath, "a", "-mx=9", "-t7z", archivePath, req.OutputDir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &Error{
			Kind: ProcessFailed,
			Err:  fmt.Errorf("%s failed: %w: %s", s.tool, err, string(output)),
		}
	}

	s.logger.Infof("Archive complete: %s", archivePath)
	return nil
}

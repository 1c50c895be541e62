// Package job owns a full compression run: discovery, fan-out over the
// worker pool, outcome aggregation, deletion of originals, and the optional
// archive step.
package job

import (
	"fmt"
	"strings"
	"time"

	"image-compressor-go/internal/task"
)

// Status is the terminal result of a job.
type Status string

const (
	StatusCompletedOk         Status = "completed_ok"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusCancelled           Status = "cancelled"
)

// State is the coordinator's current phase.
type State string

const (
	StateIdle        State = "idle"
	StateDiscovering State = "discovering"
	StateRunning     State = "running"
	StateCancelling  State = "cancelling"
	StateFinalizing  State = "finalizing"
	StateDone        State = "done"
)

// WarningKind classifies a deletion warning.
type WarningKind string

const (
	WarnPermissionDenied WarningKind = "permission_denied"
	WarnInUse            WarningKind = "in_use"
	WarnIO               WarningKind = "io_error"
)

// DeletionWarning records a failed deletion of an original. Deletion
// failures never roll anything back; the compressed output already exists.
type DeletionWarning struct {
	Path    string      `json:"path"`
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// FileFailure is one per-file failure for the final report.
type FileFailure struct {
	Path    string           `json:"path"`
	Kind    task.FailureKind `json:"kind"`
	Message string           `json:"message"`
}

// Report is the aggregate result of one job, handed to the caller when the
// run ends.
type Report struct {
	Status           Status            `json:"status"`
	SourceDirectory  string            `json:"source_directory"`
	OutputDirectory  string            `json:"output_directory"`
	TotalTasks       int               `json:"total_tasks"`
	CompletedTasks   int               `json:"completed_tasks"`
	Succeeded        int               `json:"succeeded"`
	Failures         []FileFailure     `json:"failures,omitempty"`
	DeletedOriginals int               `json:"deleted_originals"`
	DeletionWarnings []DeletionWarning `json:"deletion_warnings,omitempty"`
	ArchiveError     string            `json:"archive_error,omitempty"`
	ArchiveErrorKind string            `json:"archive_error_kind,omitempty"`
	BytesIn          int64             `json:"bytes_in"`
	BytesOut         int64             `json:"bytes_out"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
}

// Duration returns the wall-clock duration of the job.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// PercentSaved returns the byte savings across all succeeded tasks.
func (r *Report) PercentSaved() float64 {
	if r.BytesIn == 0 {
		return 0
	}
	return float64(r.BytesIn-r.BytesOut) * 100 / float64(r.BytesIn)
}

// Summary returns a human-readable report. Every failed file is listed
// individually with its error kind; archive and deletion problems are kept
// apart from per-file failures.
func (r *Report) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Compression Job Summary:\n")
	fmt.Fprintf(&b, "\tStatus: %s\n", r.Status)
	fmt.Fprintf(&b, "\tSource: %s\n", r.SourceDirectory)
	fmt.Fprintf(&b, "\tOutput: %s\n", r.OutputDirectory)
	fmt.Fprintf(&b, "\tTasks: %d total, %d completed, %d succeeded, %d failed\n",
		r.TotalTasks, r.CompletedTasks, r.Succeeded, len(r.Failures))
	fmt.Fprintf(&b, "\tBytes: %s in, %s out (%.1f%% saved)\n",
		formatBytes(r.BytesIn), formatBytes(r.BytesOut), r.PercentSaved())
	fmt.Fprintf(&b, "\tDuration: %v\n", r.Duration().Round(time.Millisecond))

	if r.DeletedOriginals > 0 || len(r.DeletionWarnings) > 0 {
		fmt.Fprintf(&b, "\tOriginals deleted: %d\n", r.DeletedOriginals)
	}

	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, "\nFailed files:\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "\t[%s] %s: %s\n", f.Kind, f.Path, f.Message)
		}
	}

	if len(r.DeletionWarnings) > 0 {
		fmt.Fprintf(&b, "\nDeletion warnings:\n")
		for _, w := range r.DeletionWarnings {
			fmt.Fprintf(&b, "\t[%s] %s: %s\n", w.Kind, w.Path, w.Message)
		}
	}

	if r.ArchiveError != "" {
		fmt.Fprintf(&b, "\nArchive step failed (%s): %s\n", r.ArchiveErrorKind, r.ArchiveError)
	}

	return b.String()
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"image-compressor-go/internal/archive"
	"image-compressor-go/internal/config"
	"image-compressor-go/internal/discovery"
	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/pool"
	"image-compressor-go/internal/progress"
	"image-compressor-go/internal/task"

	"github.com/sirupsen/logrus"
)

// Coordinator drives one compression job. It is the only writer of the
// aggregate run state; workers never touch it, they hand outcomes back over
// the pool's channel.
type Coordinator struct {
	cfg        *config.Config
	logger     *logrus.Logger
	discoverer *discovery.Discoverer
	executor   task.Executor
	archiver   archive.Invoker
	reporter   progress.Reporter

	stateMu sync.RWMutex
	state   State

	total     int64
	completed int64
}

// NewCoordinator returns a coordinator for one run. archiver may be nil
// when no archive step is configured; reporter may be nil to discard
// progress events.
func NewCoordinator(
	cfg *config.Config,
	logger *logrus.Logger,
	discoverer *discovery.Discoverer,
	executor task.Executor,
	archiver archive.Invoker,
	reporter progress.Reporter,
) *Coordinator {
	if reporter == nil {
		reporter = progress.NopReporter{}
	}
	return &Coordinator{
		cfg:        cfg,
		logger:     logger,
		discoverer: discoverer,
		executor:   executor,
		archiver:   archiver,
		reporter:   reporter,
		state:      StateIdle,
	}
}

// State returns the coordinator's current phase.
func (c *Coordinator) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
	c.logger.Debugf("Job state: %s", s)
}

// Run executes the full pipeline: discover, compress, finalize. A discovery
// failure is the only hard error; everything after that is captured in the
// report. Cancelling ctx stops dispatch of new tasks, waits for in-flight
// tasks, and yields a Cancelled report.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		SourceDirectory: c.cfg.SourceDirectory,
		OutputDirectory: c.cfg.GetOutputDirectory(),
		StartedAt:       time.Now(),
	}

	c.setState(StateDiscovering)
	logger.WithJob(c.logger, "discovery").Infof("Starting compression job for %s", c.cfg.SourceDirectory)

	sources, err := c.discoverer.Discover(c.cfg.SourceDirectory, discovery.Options{
		Recursive:  c.cfg.Recursive,
		Extensions: c.cfg.SupportedExtensions,
		ExcludeDir: c.cfg.GetOutputDirectory(),
	})
	if err != nil {
		c.setState(StateDone)
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	tasks, err := c.buildTasks(sources)
	if err != nil {
		c.setState(StateDone)
		return nil, err
	}

	report.TotalTasks = len(tasks)
	atomic.StoreInt64(&c.total, int64(len(tasks)))

	if len(tasks) == 0 {
		// A legitimately empty directory is a zero-task job that completes
		// immediately.
		c.logger.Info("No candidate images found, nothing to do")
		report.Status = StatusCompletedOk
		report.FinishedAt = time.Now()
		c.setState(StateDone)
		c.emit(progress.JobFinished, "", "")
		return report, nil
	}

	// Files with a non-candidate extension fail immediately; there is no
	// point decoding them. They still count as tasks so the report accounts
	// for every file the run looked at.
	runnable, rejected := c.rejectUnsupported(tasks)

	c.logger.Infof("Found %d files (%d compressible) to process with %d workers",
		len(tasks), len(runnable), c.cfg.Workers())

	outcomes := c.runPool(ctx, runnable, rejected, report)

	cancelled := ctx.Err() != nil && report.CompletedTasks < report.TotalTasks

	c.setState(StateFinalizing)
	c.finalize(outcomes, cancelled, report)

	report.FinishedAt = time.Now()
	c.setState(StateDone)
	c.emit(progress.JobFinished, "", report.ArchiveError)
	c.logger.Infof("Job finished with status %s (%d/%d tasks, %d failures)",
		report.Status, report.CompletedTasks, report.TotalTasks, len(report.Failures))

	return report, nil
}

// buildTasks maps each discovered source onto its destination under the
// output root, mirroring the source tree. A destination escaping the output
// root is a programming error and rejected outright.
func (c *Coordinator) buildTasks(sources []discovery.SourceFile) ([]task.Task, error) {
	outputRoot := c.cfg.GetOutputDirectory()
	absRoot, err := filepath.Abs(c.cfg.SourceDirectory)
	if err != nil {
		return nil, fmt.Errorf("resolve source directory: %w", err)
	}
	absOut, err := filepath.Abs(outputRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}

	tasks := make([]task.Task, 0, len(sources))
	for _, src := range sources {
		rel, err := filepath.Rel(absRoot, src.Path)
		if err != nil {
			return nil, fmt.Errorf("resolve relative path of %s: %w", src.Path, err)
		}
		ext := filepath.Ext(rel)
		dest := filepath.Join(absOut, strings.TrimSuffix(rel, ext)+".jpg")

		if destRel, err := filepath.Rel(absOut, dest); err != nil || strings.HasPrefix(destRel, "..") {
			return nil, fmt.Errorf("destination %s escapes output root %s", dest, absOut)
		}

		tasks = append(tasks, task.Task{
			Source:      src,
			Destination: dest,
			Quality:     c.cfg.Compression.Quality,
		})
	}
	return tasks, nil
}

// rejectUnsupported splits tasks into compressible ones and immediate
// failure outcomes for files whose extension is not a candidate image type.
func (c *Coordinator) rejectUnsupported(tasks []task.Task) ([]task.Task, []task.Outcome) {
	runnable := make([]task.Task, 0, len(tasks))
	var rejected []task.Outcome

	for _, t := range tasks {
		if t.Source.Supported {
			runnable = append(runnable, t)
			continue
		}
		err := fmt.Errorf("unsupported file extension %q", filepath.Ext(t.Source.Path))
		rejected = append(rejected, task.Failed(t, task.FailUnsupportedFormat, err, time.Now()))
	}
	return runnable, rejected
}

// runPool records the immediately rejected outcomes, then drives the worker
// pool and drains every outcome it produces. Returns all collected outcomes.
func (c *Coordinator) runPool(ctx context.Context, runnable []task.Task, rejected []task.Outcome, report *Report) []task.Outcome {
	c.setState(StateRunning)

	outcomes := make([]task.Outcome, 0, len(runnable)+len(rejected))
	for _, out := range rejected {
		outcomes = append(outcomes, out)
		c.record(out, report)
	}

	p := pool.New(c.cfg.Workers(), c.logger)
	p.OnTaskStart = func(t task.Task) {
		c.emit(progress.TaskStarted, t.Source.Path, "")
	}

	cancelSeen := false
	for out := range p.Run(ctx, c.executor, runnable) {
		if !cancelSeen && ctx.Err() != nil {
			cancelSeen = true
			c.setState(StateCancelling)
		}
		outcomes = append(outcomes, out)
		c.record(out, report)
	}

	return outcomes
}

// record folds one outcome into the aggregate and emits its progress event.
func (c *Coordinator) record(out task.Outcome, report *Report) {
	atomic.AddInt64(&c.completed, 1)
	report.CompletedTasks++

	if out.Success {
		report.Succeeded++
		report.BytesIn += out.InputSize
		report.BytesOut += out.OutputSize
		c.emit(progress.TaskCompleted, out.Task.Source.Path, "")
		return
	}

	report.Failures = append(report.Failures, FileFailure{
		Path:    out.Task.Source.Path,
		Kind:    out.Kind,
		Message: out.Message,
	})
	c.logger.Warnf("Task failed for %s: %s", out.Task.Source.Path, out.Message)
	c.emit(progress.TaskFailed, out.Task.Source.Path, out.Message)
}

// finalize partitions outcomes, deletes originals of successful tasks when
// configured, runs the archive step, and settles the final status.
func (c *Coordinator) finalize(outcomes []task.Outcome, cancelled bool, report *Report) {
	if c.cfg.Compression.DeleteOriginals {
		c.deleteOriginals(outcomes, report)
	}

	// Archiving a cancelled run would publish an incomplete output set.
	if c.archiver != nil && !cancelled && report.Succeeded > 0 {
		req := archive.Request{
			OutputDir:  c.cfg.GetOutputDirectory(),
			ArchiveDir: c.cfg.GetArchiveDirectory(),
		}
		if err := c.archiver.Archive(req); err != nil {
			report.ArchiveError = err.Error()
			var aerr *archive.Error
			if errors.As(err, &aerr) {
				report.ArchiveErrorKind = string(aerr.Kind)
			}
			logger.WithJob(c.logger, "archive").Errorf("Archive step failed: %v", err)
		}
	}

	switch {
	case cancelled:
		report.Status = StatusCancelled
	case len(report.Failures) > 0 || report.ArchiveError != "":
		report.Status = StatusCompletedWithErrors
	default:
		report.Status = StatusCompletedOk
	}
}

// deleteOriginals removes the source file of every successful outcome.
// Failure outcomes never trigger deletion; a failed delete is recorded as a
// warning and never rolled back, since the compressed output already exists.
func (c *Coordinator) deleteOriginals(outcomes []task.Outcome, report *Report) {
	for _, out := range outcomes {
		if !out.Success {
			continue
		}
		if out.Task.Source.Path == out.Task.Destination {
			// In-place compression overwrote the source; nothing to delete.
			continue
		}
		if err := os.Remove(out.Task.Source.Path); err != nil {
			warning := DeletionWarning{
				Path:    out.Task.Source.Path,
				Kind:    deletionWarningKind(err),
				Message: err.Error(),
			}
			report.DeletionWarnings = append(report.DeletionWarnings, warning)
			c.logger.Warnf("Could not delete original %s: %v", out.Task.Source.Path, err)
			continue
		}
		report.DeletedOriginals++
		c.logger.Debugf("Deleted original: %s", out.Task.Source.Path)
	}
}

func deletionWarningKind(err error) WarningKind {
	switch {
	case os.IsPermission(err):
		return WarnPermissionDenied
	case errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ETXTBSY):
		return WarnInUse
	default:
		return WarnIO
	}
}

// emit pushes one progress event. Safe to call from worker goroutines: the
// counters it reads are atomic and the reporter contract requires
// concurrency safety.
func (c *Coordinator) emit(t progress.EventType, path, errMsg string) {
	c.reporter.Report(progress.Event{
		Type:           t,
		CompletedCount: int(atomic.LoadInt64(&c.completed)),
		TotalCount:     int(atomic.LoadInt64(&c.total)),
		CurrentPath:    path,
		ErrorMessage:   errMsg,
	})
}

// Package task defines the unit of work of a compression job: one source
// image in, one outcome out.
package task

import (
	"context"
	"fmt"
	"os"
	"time"

	"image-compressor-go/internal/discovery"
)

// FailureKind classifies a failed task for the final report.
type FailureKind string

const (
	FailUnreadable            FailureKind = "unreadable"
	FailUnsupportedFormat     FailureKind = "unsupported_format"
	FailEncode                FailureKind = "encode_failure"
	FailDestinationUnwritable FailureKind = "destination_unwritable"
	FailDiskFull              FailureKind = "disk_full"
	FailTimeout               FailureKind = "timeout"
)

// Task is one source file's compression work item. Created once by the
// coordinator and handed to exactly one executor; never mutated afterwards.
type Task struct {
	Source      discovery.SourceFile
	Destination string
	Quality     int
}

// Outcome is the terminal result of a task. Exactly one Outcome is produced
// per Task.
type Outcome struct {
	Task       Task
	Success    bool
	InputSize  int64
	OutputSize int64
	// Action records what the executor did on success: "compressed" when the
	// encoded file was written, "original" when the source was copied because
	// encoding did not shrink it.
	Action     string
	Kind       FailureKind
	Message    string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded returns a success outcome for t.
func Succeeded(t Task, action string, outputSize int64, started time.Time) Outcome {
	return Outcome{
		Task:       t,
		Success:    true,
		InputSize:  t.Source.Size,
		OutputSize: outputSize,
		Action:     action,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
}

// Failed returns a failure outcome for t.
func Failed(t Task, kind FailureKind, err error, started time.Time) Outcome {
	return Outcome{
		Task:       t,
		Success:    false,
		InputSize:  t.Source.Size,
		Kind:       kind,
		Message:    err.Error(),
		Err:        err,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
}

// Executor processes a single task to completion.
type Executor interface {
	Execute(ctx context.Context, t Task) Outcome
}

// DeadlineExecutor wraps an Executor with a per-task deadline. Expiry is
// reported as a timeout failure; the wrapped execution is left to finish in
// the background so it never tears down a half-written destination. If that
// late execution still publishes its destination, the file is removed: a
// task reported as failed must not leave output behind.
type DeadlineExecutor struct {
	Inner   Executor
	Timeout time.Duration
}

// Execute runs the wrapped executor, converting deadline expiry into a
// timeout failure outcome.
func (d *DeadlineExecutor) Execute(ctx context.Context, t Task) Outcome {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	done := make(chan Outcome, 1)
	go func() {
		done <- d.Inner.Execute(ctx, t)
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		go func() {
			if out := <-done; out.Success {
				_ = os.Remove(t.Destination)
			}
		}()
		return Failed(t, FailTimeout, fmt.Errorf("task exceeded deadline of %s", d.Timeout), started)
	}
}

// Package progress defines the event stream a running job pushes to its
// consumers. The coordinator only writes events; rendering them is the
// consumer's business.
package progress

import (
	"github.com/sirupsen/logrus"
)

// EventType identifies a progress event.
type EventType string

const (
	TaskStarted   EventType = "task_started"
	TaskCompleted EventType = "task_completed"
	TaskFailed    EventType = "task_failed"
	JobFinished   EventType = "job_finished"
)

// Event is one structured progress update.
type Event struct {
	Type           EventType `json:"type"`
	CompletedCount int       `json:"completed_count"`
	TotalCount     int       `json:"total_count"`
	CurrentPath    string    `json:"current_path,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// Fraction returns the completed fraction of the job, in [0, 1].
func (e Event) Fraction() float64 {
	if e.TotalCount == 0 {
		return 1
	}
	return float64(e.CompletedCount) / float64(e.TotalCount)
}

// Reporter consumes progress events. Implementations must be safe for
// concurrent use; task-start events arrive from worker goroutines.
type Reporter interface {
	Report(Event)
}

// NopReporter discards all events.
type NopReporter struct{}

// Report implements Reporter.
func (NopReporter) Report(Event) {}

// LogReporter writes progress events to a structured logger.
type LogReporter struct {
	Logger *logrus.Logger
}

// Report implements Reporter.
func (r *LogReporter) Report(e Event) {
	entry := r.Logger.WithFields(logrus.Fields{
		"event":     string(e.Type),
		"completed": e.CompletedCount,
		"total":     e.TotalCount,
	})
	if e.CurrentPath != "" {
		entry = entry.WithField("file", e.CurrentPath)
	}
	switch e.Type {
	case TaskFailed:
		entry.Warn(e.ErrorMessage)
	case JobFinished:
		entry.Info("Job finished")
	default:
		entry.Debug("Progress")
	}
}

// ChannelReporter forwards events into a channel, for consumers that drain
// them on their own schedule.
type ChannelReporter struct {
	ch chan Event
}

// NewChannelReporter returns a ChannelReporter with the given buffer size.
func NewChannelReporter(buffer int) *ChannelReporter {
	return &ChannelReporter{ch: make(chan Event, buffer)}
}

// Report implements Reporter. It drops events when the buffer is full so a
// stalled consumer can never stall the job.
func (r *ChannelReporter) Report(e Event) {
	select {
	case r.ch <- e:
	default:
	}
}

// Events returns the event channel.
func (r *ChannelReporter) Events() <-chan Event {
	return r.ch
}

// Close closes the event channel. Call only after the job has finished.
func (r *ChannelReporter) Close() {
	close(r.ch)
}

// MultiReporter fans one event out to several reporters.
type MultiReporter []Reporter

// Report implements Reporter.
func (m MultiReporter) Report(e Event) {
	for _, r := range m {
		r.Report(e)
	}
}

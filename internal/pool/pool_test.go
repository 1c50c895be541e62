package pool

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"image-compressor-go/internal/discovery"
	"image-compressor-go/internal/task"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// countingExecutor records how many times each source path was executed.
// When gate is non-nil, every execution first takes one token from it.
type countingExecutor struct {
	mu     sync.Mutex
	counts map[string]int
	gate   chan struct{}
}

func newCountingExecutor(gate chan struct{}) *countingExecutor {
	return &countingExecutor{counts: make(map[string]int), gate: gate}
}

func (e *countingExecutor) Execute(ctx context.Context, t task.Task) task.Outcome {
	if e.gate != nil {
		<-e.gate
	}
	e.mu.Lock()
	e.counts[t.Source.Path]++
	e.mu.Unlock()
	return task.Succeeded(t, "compressed", 1, time.Now())
}

func (e *countingExecutor) executions() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(e.counts))
	for k, v := range e.counts {
		out[k] = v
	}
	return out
}

func makeTasks(n int) []task.Task {
	tasks := make([]task.Task, n)
	for i := range tasks {
		tasks[i] = task.Task{
			Source:  discovery.SourceFile{Path: fmt.Sprintf("/in/%03d.png", i), Size: 100},
			Quality: 80,
		}
	}
	return tasks
}

func TestRunExecutesEveryTaskExactlyOnce(t *testing.T) {
	const total = 100
	tasks := makeTasks(total)
	exec := newCountingExecutor(nil)
	p := New(8, testLogger())

	seen := make(map[string]int)
	for out := range p.Run(context.Background(), exec, tasks) {
		require.True(t, out.Success)
		seen[out.Task.Source.Path]++
	}

	require.Len(t, seen, total)
	for _, tk := range tasks {
		assert.Equal(t, 1, seen[tk.Source.Path], "one outcome per task")
	}
	for path, n := range exec.executions() {
		assert.Equal(t, 1, n, "task %s executed more than once", path)
	}
}

func TestRunWithSingleWorkerPreservesOrder(t *testing.T) {
	tasks := makeTasks(10)
	exec := newCountingExecutor(nil)
	p := New(1, testLogger())

	var got []string
	for out := range p.Run(context.Background(), exec, tasks) {
		got = append(got, out.Task.Source.Path)
	}

	require.Len(t, got, len(tasks))
	for i, tk := range tasks {
		assert.Equal(t, tk.Source.Path, got[i])
	}
}

func TestRunZeroWorkersFallsBackToHostParallelism(t *testing.T) {
	p := New(0, testLogger())
	assert.Greater(t, p.Workers(), 0)

	tasks := makeTasks(5)
	exec := newCountingExecutor(nil)

	n := 0
	for range p.Run(context.Background(), exec, tasks) {
		n++
	}
	assert.Equal(t, 5, n)
}

func TestRunCancelStopsDispatchAndFinishesInFlight(t *testing.T) {
	const total = 6
	tasks := makeTasks(total)
	gate := make(chan struct{})
	exec := newCountingExecutor(gate)

	ctx, cancel := context.WithCancel(context.Background())
	p := New(1, testLogger())
	outcomes := p.Run(ctx, exec, tasks)

	// Let exactly three tasks through, then cancel.
	for i := 0; i < 3; i++ {
		gate <- struct{}{}
		out, ok := <-outcomes
		require.True(t, ok)
		assert.True(t, out.Success)
	}
	cancel()

	// Unblock whatever task the worker may already hold, then drain.
	close(gate)
	var rest int
	for out := range outcomes {
		assert.True(t, out.Success)
		rest++
	}

	// At most the one in-flight task finishes after cancellation; nothing
	// new is dispatched.
	assert.LessOrEqual(t, rest, 1)

	executed := exec.executions()
	assert.Equal(t, 3+rest, len(executed))
	assert.Less(t, len(executed), total)
	for path, n := range executed {
		assert.Equal(t, 1, n, "task %s executed more than once", path)
	}
}

func TestRunPreCancelledContextDispatchesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := newCountingExecutor(nil)
	p := New(4, testLogger())

	n := 0
	for range p.Run(ctx, exec, makeTasks(20)) {
		n++
	}

	assert.Equal(t, 0, n)
	assert.Empty(t, exec.executions())
}

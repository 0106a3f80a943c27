package orchestrator

import "context"

// TaskHandle is the in-memory handle to one running deployment worker,
// the sole owner of that worker's lifetime (§9: "the registry is the single
// owner of task lifetimes, not ad-hoc done-callbacks").
type TaskHandle struct {
	deploymentID string
	cancel       context.CancelFunc
	done         chan struct{}
	result       error
}

func newTaskHandle(deploymentID string, cancel context.CancelFunc) *TaskHandle {
	return &TaskHandle{deploymentID: deploymentID, cancel: cancel, done: make(chan struct{})}
}

// Cancel requests cancellation of the task's current sleep or subprocess
// wait. The worker itself is responsible for writing a terminal status
// before exit.
func (t *TaskHandle) Cancel() {
	t.cancel()
}

// Done returns a channel closed when the task finishes; Result reports the
// task's outcome once that channel is closed.
func (t *TaskHandle) Done() <-chan struct{} {
	return t.done
}

// Result returns the task's terminal error (nil on success,
// context.Canceled on cancellation, the worker's last error otherwise),
// valid only after Done() closes.
func (t *TaskHandle) Result() error {
	return t.result
}

func (t *TaskHandle) finish(err error) {
	t.result = err
	close(t.done)
}

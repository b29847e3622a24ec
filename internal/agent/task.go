package agent

import (
	"context"
	"sync"
	"time"
)

// TaskState is the lifecycle state of a background task.
type TaskState string

const (
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// Terminal reports whether the state is final.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// TaskInfo is a snapshot of a task.
type TaskInfo struct {
	ID          string
	Agent       string
	Description string
	State       TaskState
	StartedAt   time.Time
	FinishedAt  time.Time
	Result      *Result
	Err         error
}

// task is a background sub-agent run. done is closed once the run
// goroutine has returned and the final state is recorded.
type task struct {
	id          string
	agent       string
	description string
	startedAt   time.Time
	cancel      context.CancelFunc
	done        chan struct{}

	mu         sync.Mutex
	state      TaskState
	finishedAt time.Time
	result     *Result
	err        error
}

func (t *task) info() TaskInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TaskInfo{
		ID:          t.id,
		Agent:       t.agent,
		Description: t.description,
		State:       t.state,
		StartedAt:   t.startedAt,
		FinishedAt:  t.finishedAt,
		Result:      t.result,
		Err:         t.err,
	}
}

// abort marks a running task cancelled. It reports false if the task had
// already finished.
func (t *task) abort(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return false
	}
	t.state = TaskCancelled
	t.err = ErrTaskAborted
	t.finishedAt = now
	return true
}

// finish records the run outcome unless the task was aborted first.
func (t *task) finish(res *Result, err error, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TaskCancelled {
		return
	}
	t.finishedAt = now
	t.result = res
	t.err = err
	if err != nil {
		t.state = TaskFailed
	} else {
		t.state = TaskCompleted
	}
}

// exited reports whether the task's goroutine has returned. A cancelled
// task can still be running until its backend call or tool gives up.
func (t *task) exited() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *task) terminalSince() (bool, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Terminal(), t.finishedAt
}

package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/Cyclone1070/agentcore/internal/tool/fsutil"
)

// ErrTimeout is returned when a command exceeds its timeout.
var ErrTimeout = errors.New("command timed out")

// DefaultGracePeriod is how long a timed-out command gets after SIGINT before it is killed.
const DefaultGracePeriod = 2 * time.Second

// CommandError reports a command that could not be started.
type CommandError struct {
	Command string
	Cause   error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("failed to start %q: %v", e.Command, e.Cause)
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}

// Result is the outcome of one command.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
}

// Executor runs commands through sh -c with bounded output.
type Executor struct {
	maxOutput int
	grace     time.Duration
	env       []string
}

// NewExecutor creates an executor that keeps at most maxOutput bytes of each stream.
func NewExecutor(maxOutput int64) *Executor {
	return &Executor{maxOutput: int(maxOutput), grace: DefaultGracePeriod, env: os.Environ()}
}

// Run executes command in dir. On timeout the process is interrupted, then
// killed after the grace period, and ErrTimeout is returned alongside the
// output gathered so far. Cancelling ctx kills the process and returns ctx.Err().
// A non-zero exit is not an error; it is reported in Result.ExitCode.
func (e *Executor) Run(ctx context.Context, command, dir string, timeout time.Duration) (*Result, error) {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = e.env
	stdout := newCollector(e.maxOutput, fsutil.BinarySampleSize)
	stderr := newCollector(e.maxOutput, fsutil.BinarySampleSize)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Bounds Wait when a background child keeps the output pipes open.
	cmd.WaitDelay = e.grace

	if err := cmd.Start(); err != nil {
		return nil, &CommandError{Command: command, Cause: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var execErr error
	select {
	case execErr = <-done:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		execErr = ctx.Err()
	case <-deadline:
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(e.grace):
			_ = cmd.Process.Kill()
			<-done
		}
		execErr = ErrTimeout
	}

	res := &Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  -1,
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	switch {
	case execErr == nil, errors.As(execErr, &exitErr), errors.Is(execErr, exec.ErrWaitDelay):
		return res, nil
	default:
		return res, execErr
	}
}

// collector keeps the head of a stream up to maxBytes and gives up on
// content that looks binary.
type collector struct {
	buffer    bytes.Buffer
	maxBytes  int
	truncated bool
	isBinary  bool

	bytesChecked int
	sampleSize   int
}

func newCollector(maxBytes, sampleSize int) *collector {
	return &collector{maxBytes: maxBytes, sampleSize: sampleSize}
}

func (c *collector) Write(p []byte) (int, error) {
	if c.isBinary {
		return len(p), nil
	}

	if c.bytesChecked < c.sampleSize {
		toCheck := p[:min(len(p), c.sampleSize-c.bytesChecked)]
		if fsutil.IsBinaryContent(toCheck) {
			c.isBinary = true
			c.truncated = true
			return len(p), nil
		}
		c.bytesChecked += len(toCheck)
	}

	remaining := c.maxBytes - c.buffer.Len()
	if remaining <= 0 {
		c.truncated = len(p) > 0 || c.truncated
		return len(p), nil
	}
	toWrite := p
	if len(toWrite) > remaining {
		toWrite = toWrite[:remaining]
		c.truncated = true
	}
	c.buffer.Write(toWrite)
	return len(p), nil
}

func (c *collector) String() string {
	if c.isBinary {
		return "[binary output omitted]"
	}
	return c.buffer.String()
}

func (c *collector) Truncated() bool {
	return c.truncated
}

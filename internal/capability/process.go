package capability

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Cyclone1070/agentcore/internal/config"
)

// Process is a running capability server.
type Process interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader

	// Kill terminates the process. It must cause Stdout to reach EOF.
	Kill() error

	// Wait blocks until the process has exited.
	Wait() error
}

// Spawner starts a server process from its configuration.
type Spawner func(ctx context.Context, cfg config.ServerConfig) (Process, error)

// DefaultExitGrace bounds how long a server's stdout may stay open after
// the server itself has exited, for example because a background child
// inherited it.
const DefaultExitGrace = 2 * time.Second

type osProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	stderr io.ReadCloser

	closeOut sync.Once
	exited   chan struct{}
	waitErr  error
}

func (p *osProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *osProcess) Stdout() io.Reader     { return p.stdout }
func (p *osProcess) Stderr() io.Reader     { return p.stderr }

// Kill terminates the server's whole process group.
func (p *osProcess) Kill() error {
	err := killProcessGroup(p.cmd)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *osProcess) Wait() error {
	<-p.exited
	return p.waitErr
}

// reap waits for the server to exit, then closes stdout after grace so
// readers see the end of the stream even if a descendant still holds the
// write side.
func (p *osProcess) reap(grace time.Duration) {
	p.waitErr = p.cmd.Wait()
	close(p.exited)
	time.AfterFunc(grace, p.closeStdout)
}

func (p *osProcess) closeStdout() {
	p.closeOut.Do(func() { _ = p.stdout.Close() })
}

// ExecSpawner starts servers with os/exec. The process outlives ctx, which
// only bounds the start itself; it ends on Kill or when the server exits.
// Each server runs in its own process group so Kill also reaches children
// it started.
func ExecSpawner(ctx context.Context, cfg config.ServerConfig) (Process, error) {
	return execSpawn(ctx, cfg, DefaultExitGrace)
}

func execSpawn(ctx context.Context, cfg config.ServerConfig, grace time.Duration) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = mergeEnv(os.Environ(), cfg.Env)
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	// A plain pipe rather than StdoutPipe: Wait must not close the read side
	// before the reader has drained it.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = stdoutW
	if err := cmd.Start(); err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return nil, err
	}
	_ = stdoutW.Close()

	p := &osProcess{cmd: cmd, stdin: stdin, stdout: stdoutR, stderr: stderr, exited: make(chan struct{})}
	go p.reap(grace)
	return p, nil
}

// mergeEnv overlays extra onto base. Overlay keys are appended in sorted
// order so the result is deterministic.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[name]; !overridden {
			out = append(out, kv)
		}
	}
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}

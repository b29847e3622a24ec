package shell

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Cyclone1070/agentcore/internal/config"
	"github.com/Cyclone1070/agentcore/internal/tool/pathutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	runFunc func(ctx context.Context, command, dir string, timeout time.Duration) (*Result, error)
	dir     string
	timeout time.Duration
}

func (m *mockRunner) Run(ctx context.Context, command, dir string, timeout time.Duration) (*Result, error) {
	m.dir, m.timeout = dir, timeout
	return m.runFunc(ctx, command, dir, timeout)
}

func newRoot(t *testing.T) string {
	t.Helper()
	root, err := pathutil.CanonicaliseRoot(t.TempDir())
	require.NoError(t, err)
	return root
}

func TestShellTool_Metadata(t *testing.T) {
	st := NewShellTool(&mockRunner{}, pathutil.NewResolver(newRoot(t)), config.DefaultConfig().Tools)

	args := map[string]any{"command": "  go test ./...", "working_dir": "pkg"}
	assert.Equal(t, RunShellName, st.Name())
	assert.Equal(t, "go", st.PermissionKey(args))
	assert.Equal(t, "  go test ./... (in pkg)", st.Describe(args))
}

func TestShellTool_Outcomes(t *testing.T) {
	root := newRoot(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "pkg"), 0o755))

	tests := []struct {
		name        string
		args        map[string]any
		result      *Result
		err         error
		wantSuccess bool
		wantOutput  string
		wantDetail  string
	}{
		{
			name:        "success",
			args:        map[string]any{"command": "ls"},
			result:      &Result{Stdout: "a\nb\n"},
			wantSuccess: true,
			wantOutput:  "a\nb\n",
		},
		{
			name:        "empty output",
			args:        map[string]any{"command": "true"},
			result:      &Result{},
			wantSuccess: true,
			wantOutput:  "(no output)",
		},
		{
			name:       "non-zero exit",
			args:       map[string]any{"command": "false"},
			result:     &Result{Stdout: "partial", Stderr: "boom\n", ExitCode: 2},
			wantOutput: "partial\n[stderr]\nboom\n",
			wantDetail: "command exited with code 2",
		},
		{
			name:       "timeout",
			args:       map[string]any{"command": "sleep 9", "timeout_seconds": 3},
			result:     &Result{Stdout: "x", Truncated: true},
			err:        ErrTimeout,
			wantOutput: "x\n[output truncated]\n",
			wantDetail: "command timed out after 3s",
		},
		{
			name:       "start failure",
			args:       map[string]any{"command": "x"},
			err:        &CommandError{Command: "x", Cause: errors.New("no sh")},
			wantDetail: `failed to start "x": no sh`,
		},
		{
			name:       "bad working dir",
			args:       map[string]any{"command": "ls", "working_dir": "../up"},
			wantDetail: "outside workspace",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{runFunc: func(context.Context, string, string, time.Duration) (*Result, error) {
				return tt.result, tt.err
			}}
			st := NewShellTool(runner, pathutil.NewResolver(root), config.DefaultConfig().Tools)

			res, err := st.Execute(context.Background(), tt.args)

			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Equal(t, tt.wantOutput, res.Output)
			assert.Contains(t, res.ErrorDetail, tt.wantDetail)
		})
	}
}

func TestShellTool_DefaultsAndWorkingDir(t *testing.T) {
	root := newRoot(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "pkg"), 0o755))
	runner := &mockRunner{runFunc: func(context.Context, string, string, time.Duration) (*Result, error) {
		return &Result{Stdout: "ok"}, nil
	}}
	cfg := config.DefaultConfig().Tools
	st := NewShellTool(runner, pathutil.NewResolver(root), cfg)

	_, err := st.Execute(context.Background(), map[string]any{"command": "ls", "working_dir": "pkg"})

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "pkg"), runner.dir)
	assert.Equal(t, time.Duration(cfg.DefaultShellTimeout)*time.Second, runner.timeout)
}

func TestShellTool_Cancelled(t *testing.T) {
	runner := &mockRunner{runFunc: func(ctx context.Context, _, _ string, _ time.Duration) (*Result, error) {
		return &Result{ExitCode: -1}, ctx.Err()
	}}
	st := NewShellTool(runner, pathutil.NewResolver(newRoot(t)), config.DefaultConfig().Tools)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.Execute(ctx, map[string]any{"command": "sleep 1"})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestShellTool_Validation(t *testing.T) {
	st := NewShellTool(&mockRunner{}, pathutil.NewResolver(newRoot(t)), config.DefaultConfig().Tools)

	res, err := st.Execute(context.Background(), map[string]any{"command": "   "})

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorDetail, "command is required")
}

func runReal(t *testing.T, e *Executor, command string, timeout time.Duration) (*Result, error) {
	t.Helper()
	return e.Run(context.Background(), command, t.TempDir(), timeout)
}

func TestExecutor_Run(t *testing.T) {
	e := NewExecutor(1024)

	res, err := runReal(t, e, "echo out; echo err >&2; exit 3", 5*time.Second)

	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Truncated)
}

func TestExecutor_Truncates(t *testing.T) {
	e := NewExecutor(4)

	res, err := runReal(t, e, "printf 0123456789", 5*time.Second)

	require.NoError(t, err)
	assert.Equal(t, "0123", res.Stdout)
	assert.True(t, res.Truncated)
}

func TestExecutor_Timeout(t *testing.T) {
	e := NewExecutor(1024)
	e.grace = 200 * time.Millisecond

	start := time.Now()
	_, err := runReal(t, e, "sleep 10", 200*time.Millisecond)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecutor_ContextCancel(t *testing.T) {
	e := NewExecutor(1024)
	e.grace = 200 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := e.Run(ctx, "sleep 10", t.TempDir(), 0)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCollector(t *testing.T) {
	c := newCollector(10, 4)
	n, err := c.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "abc", c.String())

	b := newCollector(10, 4)
	_, _ = b.Write([]byte("a\x00bc"))
	assert.Equal(t, "[binary output omitted]", b.String())
	assert.True(t, b.Truncated())
}

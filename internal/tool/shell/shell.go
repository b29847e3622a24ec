// Package shell implements the run_shell tool.
package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Cyclone1070/agentcore/internal/config"
	"github.com/Cyclone1070/agentcore/internal/tool"
)

const RunShellName = "run_shell"

// ShellRequest runs one shell command line.
type ShellRequest struct {
	Command        string `json:"command"`
	WorkingDir     string `json:"working_dir"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (r ShellRequest) String() string {
	if r.WorkingDir != "" && r.WorkingDir != "." {
		return fmt.Sprintf("%s (in %s)", r.Command, r.WorkingDir)
	}
	return r.Command
}

func (r *ShellRequest) Validate() error {
	if strings.TrimSpace(r.Command) == "" {
		return errors.New("command is required")
	}
	if r.TimeoutSeconds < 0 {
		return errors.New("timeout_seconds must be >= 0")
	}
	return nil
}

// PermissionKey is the program name, so approving "go test ./..." for the
// session also covers "go build".
func (r *ShellRequest) PermissionKey() string {
	fields := strings.Fields(r.Command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

type commandRunner interface {
	Run(ctx context.Context, command, dir string, timeout time.Duration) (*Result, error)
}

type pathResolver interface {
	Resolve(path string) (abs, rel string, err error)
}

// NewShellTool creates run_shell. Commands run in the workspace unless
// working_dir names a subdirectory.
func NewShellTool(runner commandRunner, paths pathResolver, cfg config.ToolsConfig) tool.Tool {
	if runner == nil {
		panic("runner is required")
	}
	if paths == nil {
		panic("paths is required")
	}
	return tool.NewTyped(tool.Declaration{
		Name: RunShellName,
		Description: fmt.Sprintf("Run a command with sh -c in the workspace and return stdout, stderr and the exit status. "+
			"A non-zero exit is reported as an error. Default timeout %ds.", cfg.DefaultShellTimeout),
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"command":         {Type: tool.TypeString, Description: "Command line to run."},
				"working_dir":     {Type: tool.TypeString, Description: "Directory relative to the workspace root (default '.')."},
				"timeout_seconds": {Type: tool.TypeInteger, Description: "Timeout in seconds."},
			},
			Required: []string{"command"},
		},
	}, func(ctx context.Context, req ShellRequest) (tool.Result, error) {
		dir := req.WorkingDir
		if dir == "" {
			dir = "."
		}
		abs, _, err := paths.Resolve(dir)
		if err != nil {
			return tool.Failf("working_dir %s: %v", dir, err), nil
		}

		timeoutSec := req.TimeoutSeconds
		if timeoutSec == 0 {
			timeoutSec = cfg.DefaultShellTimeout
		}
		timeout := time.Duration(timeoutSec) * time.Second

		res, err := runner.Run(ctx, req.Command, abs, timeout)
		switch {
		case errors.Is(err, ErrTimeout):
			return tool.Result{
				ErrorDetail: fmt.Sprintf("command timed out after %ds", timeoutSec),
				Output:      formatOutput(res),
			}, nil
		case err != nil && ctx.Err() != nil:
			return tool.Result{}, ctx.Err()
		case err != nil:
			return tool.Failf("%v", err), nil
		case res.ExitCode != 0:
			return tool.Result{
				ErrorDetail: fmt.Sprintf("command exited with code %d", res.ExitCode),
				Output:      formatOutput(res),
			}, nil
		}
		out := formatOutput(res)
		if out == "" {
			out = "(no output)"
		}
		return tool.OK(out), nil
	})
}

func formatOutput(res *Result) string {
	if res == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(res.Stdout)
	if res.Stderr != "" {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
		sb.WriteString("[stderr]\n")
		sb.WriteString(res.Stderr)
	}
	if res.Truncated {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
		sb.WriteString("[output truncated]\n")
	}
	return sb.String()
}

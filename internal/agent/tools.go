package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Cyclone1070/agentcore/internal/tool"
)

// TaskRequest is the argument set of the task tool.
type TaskRequest struct {
	Description     string `json:"description"`
	Prompt          string `json:"prompt"`
	SubagentType    string `json:"subagent_type"`
	Thoroughness    string `json:"thoroughness"`
	RunInBackground bool   `json:"run_in_background"`
}

func (r TaskRequest) String() string {
	if r.Description != "" {
		return fmt.Sprintf("%s: %s", r.SubagentType, r.Description)
	}
	return fmt.Sprintf("%s agent", r.SubagentType)
}

func (r *TaskRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if r.SubagentType == "" {
		return errors.New("subagent_type is required")
	}
	return nil
}

// TaskTool lets the parent delegate to a sub-agent.
func TaskTool(m *Manager) tool.Tool {
	defs := m.Definitions()
	names := make([]string, 0, len(defs))
	var listing strings.Builder
	for _, d := range defs {
		names = append(names, d.Name)
		fmt.Fprintf(&listing, "\n- %s: %s", d.Name, d.Description)
	}

	return tool.NewTyped(tool.Declaration{
		Name: TaskToolName,
		Description: "Delegate a self-contained task to an isolated sub-agent and return its final answer. " +
			"Sub-agents cannot see this conversation, so the prompt must be complete. Available agents:" + listing.String(),
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"description":       {Type: tool.TypeString, Description: "Short (3-5 word) label for the task."},
				"prompt":            {Type: tool.TypeString, Description: "The full task for the agent."},
				"subagent_type":     {Type: tool.TypeString, Description: "Agent to run.", Enum: names},
				"thoroughness":      {Type: tool.TypeString, Description: "Preset for agents that support it.", Enum: []string{string(Quick), string(Medium), string(VeryThorough)}},
				"run_in_background": {Type: tool.TypeBoolean, Description: "Start the agent detached and return a task id for task_output."},
			},
			Required: []string{"prompt", "subagent_type"},
		},
	}, func(ctx context.Context, req TaskRequest) (tool.Result, error) {
		mode := ModeDefault
		if req.RunInBackground {
			mode = ModeBackground
		}
		res, err := m.RunAgent(ctx, req.SubagentType, Options{
			Task:         req.Prompt,
			Description:  req.Description,
			Thoroughness: Thoroughness(req.Thoroughness),
			Mode:         mode,
		})
		if err != nil {
			return tool.Result{}, err
		}
		if res.Background {
			return tool.OK(res.Output), nil
		}
		out := res.Output
		if out == "" {
			out = "(agent returned no text)"
		}
		if res.MaxTurnsReached {
			out += fmt.Sprintf("\n\n[agent stopped after reaching its %d-turn budget]", res.TurnsTaken)
		}
		return tool.OK(out), nil
	})
}

// TaskOutputRequest is the argument set of the task_output tool.
type TaskOutputRequest struct {
	TaskID         string `json:"task_id"`
	Block          *bool  `json:"block"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (r TaskOutputRequest) String() string {
	return "output of task " + r.TaskID
}

func (r *TaskOutputRequest) Validate() error {
	if r.TaskID == "" {
		return errors.New("task_id is required")
	}
	if r.TimeoutSeconds < 0 {
		return errors.New("timeout_seconds must be >= 0")
	}
	return nil
}

// defaultOutputWait bounds a blocking task_output call without a timeout.
const defaultOutputWait = 5 * time.Minute

// TaskOutputTool retrieves or awaits a background task's result.
func TaskOutputTool(m *Manager) tool.Tool {
	return tool.NewTyped(tool.Declaration{
		Name:        TaskOutputToolName,
		Description: "Get the result of a background agent task. Blocks until it finishes unless block is false.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"task_id":         {Type: tool.TypeString, Description: "Id returned when the task was started."},
				"block":           {Type: tool.TypeBoolean, Description: "Wait for completion (default true)."},
				"timeout_seconds": {Type: tool.TypeInteger, Description: "Maximum wait when blocking (default 300)."},
			},
			Required: []string{"task_id"},
		},
	}, func(ctx context.Context, req TaskOutputRequest) (tool.Result, error) {
		if req.Block == nil || *req.Block {
			wait := defaultOutputWait
			if req.TimeoutSeconds > 0 {
				wait = time.Duration(req.TimeoutSeconds) * time.Second
			}
			waitCtx, cancel := context.WithTimeout(ctx, wait)
			_, err := m.WaitForTask(waitCtx, req.TaskID)
			cancel()
			if errors.Is(err, ErrUnknownTask) {
				return tool.Result{}, err
			}
			if err != nil && ctx.Err() != nil {
				return tool.Result{}, ctx.Err()
			}
		}

		info, err := m.TaskStatus(req.TaskID)
		if err != nil {
			return tool.Result{}, err
		}
		return formatTask(info), nil
	})
}

func formatTask(info TaskInfo) tool.Result {
	header := fmt.Sprintf("Task %s (%s) is %s.", info.ID, info.Agent, info.State)
	switch info.State {
	case TaskRunning:
		return tool.OK(fmt.Sprintf("%s Started %s ago.", header, time.Since(info.StartedAt).Round(time.Second)))
	case TaskCompleted:
		return tool.OK(header + "\n\n" + info.Result.Output)
	default:
		return tool.Failf("%s %v", header, info.Err)
	}
}

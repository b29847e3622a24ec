package workflow

import (
	"context"

	"github.com/Cyclone1070/agentcore/internal/provider"
	"github.com/Cyclone1070/agentcore/internal/tool"
)

// Event is the interface for all workflow events.
// UI handles events via type switch.
type Event interface {
	isEvent()
}

// ThinkingEvent is emitted before each backend call.
type ThinkingEvent struct {
	Turn int // 1-based backend call number within the run
}

func (ThinkingEvent) isEvent() {}

// TextEvent carries a streamed text delta from the backend.
type TextEvent struct {
	Text string
}

func (TextEvent) isEvent() {}

// ToolStartEvent is emitted when a tool invocation is dispatched.
type ToolStartEvent struct {
	InvocationID   string
	ToolName       string
	RequestDisplay string // e.g., "Reading src/index.ts"
}

func (ToolStartEvent) isEvent() {}

// ToolResultEvent is emitted when a tool invocation has a result,
// including denials and unknown tools.
type ToolResultEvent struct {
	InvocationID string
	ToolName     string
	Result       tool.Result
}

func (ToolResultEvent) isEvent() {}

// UsageEvent reports token usage after each backend call.
type UsageEvent struct {
	Turn  provider.Usage
	Total provider.Usage
}

func (UsageEvent) isEvent() {}

// ErrorEvent is emitted when a backend call fails and the run aborts.
type ErrorEvent struct {
	Err error
}

func (ErrorEvent) isEvent() {}

// TaskDoneEvent is emitted when a background sub-agent task finishes.
type TaskDoneEvent struct {
	TaskID string
	Agent  string
	Status string
	Err    error
}

func (TaskDoneEvent) isEvent() {}

// DoneEvent is emitted when a run completes, successfully or not.
type DoneEvent struct {
	TurnsTaken      int
	MaxTurnsReached bool
}

func (DoneEvent) isEvent() {}

// Send delivers ev unless events is nil or ctx is done first.
// It reports whether the event was delivered.
func Send(ctx context.Context, events chan<- Event, ev Event) bool {
	if events == nil {
		return false
	}
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

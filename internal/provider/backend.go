package provider

import (
	"context"

	"github.com/Cyclone1070/agentcore/internal/tool"
)

// StopReason explains why the backend ended a response.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
	StopError        StopReason = "error"
)

// Usage is token accounting for one or more backend calls.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
	}
}

func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Request is one completion call.
type Request struct {
	Messages     Conversation
	SystemPrompt string
	Tools        []tool.Declaration
	MaxTokens    int
}

// Response is the structured result of a completion call.
type Response struct {
	Content    []ContentBlock
	StopReason StopReason
	Usage      Usage
}

// Turn returns the response as an assistant turn.
func (r *Response) Turn() Turn {
	return Turn{Role: RoleAssistant, Content: r.Content}
}

// Callbacks observe a completion while it streams. Either field may be nil.
type Callbacks struct {
	// OnText receives text deltas as they arrive.
	OnText func(delta string)

	// OnToolUse receives each tool invocation once it is complete.
	OnToolUse func(inv ToolInvocation)
}

// EmitText forwards a non-empty text delta to OnText if set.
func (c Callbacks) EmitText(delta string) {
	if c.OnText != nil && delta != "" {
		c.OnText(delta)
	}
}

// EmitToolUse forwards a completed invocation to OnToolUse if set.
func (c Callbacks) EmitToolUse(inv ToolInvocation) {
	if c.OnToolUse != nil {
		c.OnToolUse(inv)
	}
}

// Backend is a language-completion service.
type Backend interface {
	// Complete sends the conversation and returns the backend's response.
	// Errors abort the caller's run; they are not retried.
	Complete(ctx context.Context, req *Request, cb Callbacks) (*Response, error)
}

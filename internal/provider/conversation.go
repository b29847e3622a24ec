package provider

import (
	"errors"
	"fmt"
	"strings"
)

// Role tags a turn as coming from the user or the assistant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType identifies the kind of a content block.
type BlockType string

const (
	BlockText           BlockType = "text"
	BlockToolInvocation BlockType = "tool_invocation"
	BlockToolResult     BlockType = "tool_result"
)

// ToolInvocation is a backend request to run a tool.
// ID is opaque and unique within a turn.
type ToolInvocation struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResultBlock answers a ToolInvocation with the same ID.
type ToolResultBlock struct {
	InvocationID string
	Name         string
	Content      string
	IsError      bool
}

// ContentBlock is one typed element of a turn. Exactly one of Text,
// Invocation or Result is meaningful, selected by Type.
type ContentBlock struct {
	Type       BlockType
	Text       string
	Invocation *ToolInvocation
	Result     *ToolResultBlock
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func InvocationBlock(inv ToolInvocation) ContentBlock {
	return ContentBlock{Type: BlockToolInvocation, Invocation: &inv}
}

func ResultBlock(res ToolResultBlock) ContentBlock {
	return ContentBlock{Type: BlockToolResult, Result: &res}
}

// Turn is one role-tagged message in the conversation.
type Turn struct {
	Role    Role
	Content []ContentBlock
}

// Text concatenates the turn's text blocks.
func (t Turn) Text() string {
	var sb strings.Builder
	for _, b := range t.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// Invocations returns the turn's tool invocations in order.
func (t Turn) Invocations() []ToolInvocation {
	var out []ToolInvocation
	for _, b := range t.Content {
		if b.Type == BlockToolInvocation && b.Invocation != nil {
			out = append(out, *b.Invocation)
		}
	}
	return out
}

// Results returns the turn's tool results in order.
func (t Turn) Results() []ToolResultBlock {
	var out []ToolResultBlock
	for _, b := range t.Content {
		if b.Type == BlockToolResult && b.Result != nil {
			out = append(out, *b.Result)
		}
	}
	return out
}

// ErrUnansweredInvocation reports a conversation where some tool invocation
// is not answered by the immediately following user turn.
var ErrUnansweredInvocation = errors.New("unanswered tool invocation")

// Conversation is the ordered sequence of turns of one session.
type Conversation []Turn

// Snapshot returns a deep copy that shares no mutable state with c.
func (c Conversation) Snapshot() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	for i, t := range c {
		blocks := make([]ContentBlock, len(t.Content))
		for j, b := range t.Content {
			blocks[j] = b
			if b.Invocation != nil {
				inv := *b.Invocation
				inv.Arguments = copyMap(inv.Arguments)
				blocks[j].Invocation = &inv
			}
			if b.Result != nil {
				res := *b.Result
				blocks[j].Result = &res
			}
		}
		out[i] = Turn{Role: t.Role, Content: blocks}
	}
	return out
}

// Validate checks that every assistant turn with N invocations is followed
// immediately by a user turn with exactly N results correlated in order.
func (c Conversation) Validate() error {
	for i, t := range c {
		if t.Role != RoleAssistant {
			continue
		}
		invs := t.Invocations()
		if len(invs) == 0 {
			continue
		}
		if i+1 >= len(c) || c[i+1].Role != RoleUser {
			return fmt.Errorf("turn %d: %w", i, ErrUnansweredInvocation)
		}
		results := c[i+1].Results()
		if len(results) != len(invs) {
			return fmt.Errorf("turn %d: %d invocations but %d results: %w", i, len(invs), len(results), ErrUnansweredInvocation)
		}
		for k := range invs {
			if results[k].InvocationID != invs[k].ID {
				return fmt.Errorf("turn %d: result %d answers %q, want %q: %w",
					i, k, results[k].InvocationID, invs[k].ID, ErrUnansweredInvocation)
			}
		}
	}
	return nil
}

// LastText returns the text of the most recent assistant turn that has any.
func (c Conversation) LastText() string {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Role != RoleAssistant {
			continue
		}
		if text := c[i].Text(); text != "" {
			return text
		}
	}
	return ""
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return copyMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

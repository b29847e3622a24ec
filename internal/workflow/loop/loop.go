package loop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Cyclone1070/agentcore/internal/provider"
	"github.com/Cyclone1070/agentcore/internal/tool"
	"github.com/Cyclone1070/agentcore/internal/workflow"
)

// DefaultMaxTurns bounds backend calls per Run when none is configured.
const DefaultMaxTurns = 50

// cancelledResult answers invocations that were never started because the
// run was cancelled.
const cancelledResult = "cancelled before execution"

// Config wires an Orchestrator.
type Config struct {
	Backend      backend
	Tools        toolExecutor
	SystemPrompt string
	MaxTurns     int
	MaxTokens    int
	Events       chan<- workflow.Event // optional
	Logger       *slog.Logger          // optional
}

// RunResult is the outcome of one Run.
type RunResult struct {
	FinalText       string
	Conversation    provider.Conversation
	Usage           provider.Usage // this run only
	TurnsTaken      int            // backend calls made by this run
	MaxTurnsReached bool
}

// Orchestrator drives one conversation: it calls the backend, runs the
// requested tools in order, and feeds their results back until the backend
// stops or the turn budget is spent. It exclusively owns its conversation.
type Orchestrator struct {
	backend      backend
	tools        toolExecutor
	systemPrompt string
	maxTurns     int
	maxTokens    int
	events       chan<- workflow.Event
	logger       *slog.Logger

	runMu sync.Mutex // one Run at a time

	mu    sync.RWMutex // protects conv and usage
	conv  provider.Conversation
	usage provider.Usage
}

// New creates an Orchestrator with an empty conversation.
func New(cfg Config) *Orchestrator {
	if cfg.Backend == nil {
		panic("backend is required")
	}
	if cfg.Tools == nil {
		panic("tools is required")
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		backend:      cfg.Backend,
		tools:        cfg.Tools,
		systemPrompt: cfg.SystemPrompt,
		maxTurns:     maxTurns,
		maxTokens:    cfg.MaxTokens,
		events:       cfg.Events,
		logger:       logger,
	}
}

// Run appends input as a user turn and loops until the backend stops, the
// turn budget is exhausted, or an error occurs.
//
// Exhausting the budget is not an error: the last assistant text is
// returned with MaxTurnsReached set. Backend errors abort the run and are
// returned; the conversation then ends with the last complete turn.
// If ctx is cancelled while tools run, the remaining invocations are
// answered with cancelled results before ctx.Err() is returned.
func (o *Orchestrator) Run(ctx context.Context, input string) (*RunResult, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	o.appendTurn(provider.Turn{
		Role:    provider.RoleUser,
		Content: []provider.ContentBlock{provider.TextBlock(input)},
	})

	var (
		turns    int
		runUsage provider.Usage
		lastText string
		natural  bool
	)

	defer func() {
		// Done must reach the consumer even when ctx is already cancelled.
		workflow.Send(context.WithoutCancel(ctx), o.events, workflow.DoneEvent{
			TurnsTaken:      turns,
			MaxTurnsReached: turns >= o.maxTurns && !natural,
		})
	}()

	for turns < o.maxTurns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		workflow.Send(ctx, o.events, workflow.ThinkingEvent{Turn: turns + 1})

		req := &provider.Request{
			Messages:     o.Conversation(),
			SystemPrompt: o.systemPrompt,
			Tools:        o.tools.Declarations(),
			MaxTokens:    o.maxTokens,
		}
		o.logger.Debug("backend call", "turn", turns+1, "turns_in_conversation", len(req.Messages))

		resp, err := o.backend.Complete(ctx, req, provider.Callbacks{
			OnText: func(delta string) {
				workflow.Send(ctx, o.events, workflow.TextEvent{Text: delta})
			},
		})
		if err != nil {
			if ctx.Err() == nil {
				workflow.Send(ctx, o.events, workflow.ErrorEvent{Err: err})
			}
			o.logger.Error("backend call failed", "turn", turns+1, "error", err)
			return nil, fmt.Errorf("backend completion (turn %d): %w", turns+1, err)
		}
		turns++

		runUsage = runUsage.Add(resp.Usage)
		total := o.addUsage(resp.Usage)
		workflow.Send(ctx, o.events, workflow.UsageEvent{Turn: resp.Usage, Total: total})
		o.logger.Debug("backend response", "turn", turns, "stop_reason", resp.StopReason,
			"input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)

		assistant := resp.Turn()
		o.appendTurn(assistant)
		if text := assistant.Text(); text != "" {
			lastText = text
		}

		invs := assistant.Invocations()
		if resp.StopReason != provider.StopToolUse && len(invs) > 0 {
			// An invocation must always be answered, so treat it as tool use.
			o.logger.Warn("backend returned invocations without tool_use stop reason",
				"stop_reason", resp.StopReason, "invocations", len(invs))
		}
		if len(invs) == 0 {
			natural = true
			return o.result(assistant.Text(), runUsage, turns, false), nil
		}

		results, err := o.executeAll(ctx, invs)
		o.appendTurn(provider.Turn{Role: provider.RoleUser, Content: results})
		if err != nil {
			return nil, err
		}
	}

	o.logger.Info("max turns reached", "max_turns", o.maxTurns)
	return o.result(lastText, runUsage, turns, true), nil
}

// executeAll runs invocations sequentially in backend order. On
// cancellation it answers the rest with cancelled results and returns
// ctx.Err() alongside the complete result list.
func (o *Orchestrator) executeAll(ctx context.Context, invs []provider.ToolInvocation) ([]provider.ContentBlock, error) {
	results := make([]provider.ContentBlock, 0, len(invs))
	for i, inv := range invs {
		if err := ctx.Err(); err != nil {
			for _, rest := range invs[i:] {
				results = append(results, provider.ResultBlock(provider.ToolResultBlock{
					InvocationID: rest.ID,
					Name:         rest.Name,
					Content:      tool.Fail(cancelledResult).Content(),
					IsError:      true,
				}))
			}
			return results, err
		}

		res := o.tools.Execute(ctx, inv, o.events)
		results = append(results, provider.ResultBlock(provider.ToolResultBlock{
			InvocationID: inv.ID,
			Name:         inv.Name,
			Content:      res.Content(),
			IsError:      !res.Success,
		}))
	}
	return results, nil
}

func (o *Orchestrator) result(text string, usage provider.Usage, turns int, maxReached bool) *RunResult {
	return &RunResult{
		FinalText:       text,
		Conversation:    o.Conversation(),
		Usage:           usage,
		TurnsTaken:      turns,
		MaxTurnsReached: maxReached,
	}
}

func (o *Orchestrator) appendTurn(t provider.Turn) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conv = append(o.conv, t)
}

func (o *Orchestrator) addUsage(u provider.Usage) provider.Usage {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.usage = o.usage.Add(u)
	return o.usage
}

// Conversation returns an immutable snapshot of the conversation.
func (o *Orchestrator) Conversation() provider.Conversation {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.conv.Snapshot()
}

// SetConversation replaces the conversation, e.g. with a compacted one.
// It must satisfy the answered-invocation invariant.
func (o *Orchestrator) SetConversation(conv provider.Conversation) error {
	if err := conv.Validate(); err != nil {
		return fmt.Errorf("set conversation: %w", err)
	}
	o.runMu.Lock()
	defer o.runMu.Unlock()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conv = conv.Snapshot()
	return nil
}

// Reset clears the conversation and usage totals.
func (o *Orchestrator) Reset() {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conv = nil
	o.usage = provider.Usage{}
}

// Usage returns token totals across all runs.
func (o *Orchestrator) Usage() provider.Usage {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.usage
}

// MaxTurns returns the per-run backend call budget.
func (o *Orchestrator) MaxTurns() int {
	return o.maxTurns
}

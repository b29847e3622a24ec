package loop

import (
	"context"

	"github.com/Cyclone1070/agentcore/internal/provider"
	"github.com/Cyclone1070/agentcore/internal/tool"
	"github.com/Cyclone1070/agentcore/internal/workflow"
)

// backend communicates with the completion service.
type backend interface {
	// Complete sends the conversation and returns the structured response.
	Complete(ctx context.Context, req *provider.Request, cb provider.Callbacks) (*provider.Response, error)
}

// toolExecutor holds the tools available to the loop.
type toolExecutor interface {
	// Declarations returns all tool schemas for the backend.
	Declarations() []tool.Declaration

	// Execute runs one invocation, including its permission check, and
	// always returns a result. It emits ToolStartEvent and ToolResultEvent.
	Execute(ctx context.Context, inv provider.ToolInvocation, events chan<- workflow.Event) tool.Result
}

package toolmanager

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/Cyclone1070/agentcore/internal/permission"
	"github.com/Cyclone1070/agentcore/internal/provider"
	"github.com/Cyclone1070/agentcore/internal/tool"
	"github.com/Cyclone1070/agentcore/internal/workflow"
)

// Restriction narrows a registry. When Allow is non-empty only those tools
// are kept and Block is ignored; otherwise every tool not in Block is kept.
type Restriction struct {
	Allow []string
	Block []string
}

// Permits reports whether a tool name survives the restriction.
func (r Restriction) Permits(name string) bool {
	if len(r.Allow) > 0 {
		return slices.Contains(r.Allow, name)
	}
	return !slices.Contains(r.Block, name)
}

// Registry maps tool names to tools and dispatches invocations through the
// permission checker. A tool missing from a registry cannot be dispatched
// through it, whatever other registries hold.
type Registry struct {
	checker permissionChecker
	logger  *slog.Logger

	mu    sync.RWMutex
	tools map[string]tool.Tool
}

// NewRegistry creates a registry holding tools.
func NewRegistry(checker permissionChecker, tools ...tool.Tool) *Registry {
	if checker == nil {
		panic("checker is required")
	}
	r := &Registry{
		checker: checker,
		logger:  slog.New(slog.DiscardHandler),
		tools:   make(map[string]tool.Tool, len(tools)),
	}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// WithLogger sets the logger and returns r.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Register adds t, replacing any tool with the same name.
func (r *Registry) Register(t tool.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Unregister removes the named tools.
func (r *Registry) Unregister(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		delete(r.tools, n)
	}
}

func (r *Registry) Lookup(name string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Tools returns the registered tools sorted by name.
func (r *Registry) Tools() []tool.Tool {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]tool.Tool, 0, len(names))
	for _, n := range names {
		out = append(out, r.tools[n])
	}
	return out
}

// Declarations returns all tool schemas for the backend, sorted by name.
func (r *Registry) Declarations() []tool.Declaration {
	tools := r.Tools()
	decls := make([]tool.Declaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, t.Declaration())
	}
	return decls
}

// Restrict returns a new registry with the same checker holding only the
// tools that res permits. r is not modified.
func (r *Registry) Restrict(res Restriction) *Registry {
	out := NewRegistry(r.checker).WithLogger(r.logger)
	for _, t := range r.Tools() {
		if res.Permits(t.Name()) {
			out.Register(t)
		}
	}
	return out
}

// Execute runs one invocation and always returns a result.
// Unknown tools fail without a permission check; denied invocations fail
// with "permission denied" without running the tool. Handler errors and
// panics become failed results.
func (r *Registry) Execute(ctx context.Context, inv provider.ToolInvocation, events chan<- workflow.Event) tool.Result {
	args := inv.Arguments
	if args == nil {
		args = map[string]any{}
	}

	t, ok := r.Lookup(inv.Name)
	if !ok {
		res := tool.Failf("unknown tool: %s", inv.Name)
		workflow.Send(ctx, events, workflow.ToolStartEvent{InvocationID: inv.ID, ToolName: inv.Name})
		workflow.Send(ctx, events, workflow.ToolResultEvent{InvocationID: inv.ID, ToolName: inv.Name, Result: res})
		r.logger.Warn("unknown tool requested", "tool", inv.Name)
		return res
	}

	display := t.Describe(args)
	workflow.Send(ctx, events, workflow.ToolStartEvent{
		InvocationID:   inv.ID,
		ToolName:       inv.Name,
		RequestDisplay: display,
	})

	req := permission.Request{
		Tool:        inv.Name,
		Args:        args,
		Key:         t.PermissionKey(args),
		Description: display,
	}

	var res tool.Result
	decision, err := r.checker.Check(ctx, req)
	switch {
	case err != nil:
		res = tool.Failf("permission request failed: %v", err)
	case !decision.Allowed:
		res = tool.Fail(permission.ErrPermissionDenied.Error())
	default:
		res = invoke(ctx, t, args)
	}

	r.logger.Debug("tool executed", "tool", inv.Name, "id", inv.ID,
		"source", decision.Source, "allowed", decision.Allowed, "success", res.Success)

	workflow.Send(ctx, events, workflow.ToolResultEvent{InvocationID: inv.ID, ToolName: inv.Name, Result: res})
	return res
}

func invoke(ctx context.Context, t tool.Tool, args map[string]any) (res tool.Result) {
	defer func() {
		if p := recover(); p != nil {
			res = tool.Failf("tool %s panicked: %v", t.Name(), p)
		}
	}()

	out, err := t.Execute(ctx, args)
	if err != nil {
		return tool.Fail(err.Error())
	}
	return out
}

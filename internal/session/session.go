// Package session assembles one interactive session: the permission gateway,
// the workspace tools, capability servers, the sub-agent manager and the
// parent conversation. Everything is constructed explicitly and owned here.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/Cyclone1070/agentcore/internal/agent"
	"github.com/Cyclone1070/agentcore/internal/capability"
	"github.com/Cyclone1070/agentcore/internal/config"
	"github.com/Cyclone1070/agentcore/internal/permission"
	"github.com/Cyclone1070/agentcore/internal/provider"
	"github.com/Cyclone1070/agentcore/internal/tool"
	"github.com/Cyclone1070/agentcore/internal/tool/pathutil"
	"github.com/Cyclone1070/agentcore/internal/tool/todo"
	"github.com/Cyclone1070/agentcore/internal/workflow"
	"github.com/Cyclone1070/agentcore/internal/workflow/loop"
	"github.com/Cyclone1070/agentcore/internal/workflow/toolmanager"
)

// shutdownTimeout bounds how long Close waits for background agents.
const shutdownTimeout = 5 * time.Second

// refreshTimeout bounds re-listing a server's tools after it announced a change.
const refreshTimeout = 30 * time.Second

// Deps are the collaborators a Session is built from.
type Deps struct {
	Config        *config.Config
	Backend       provider.Backend
	WorkspaceRoot string

	Prompter  permission.Prompter  // nil denies everything that needs a prompt
	RuleStore permission.RuleStore // nil keeps permanent rules in memory
	Events    chan<- workflow.Event

	Spawner    capability.Spawner // nil uses os/exec
	HTTPClient *http.Client       // nil uses a client with the configured fetch timeout
	Logger     *slog.Logger
}

// Session owns every long-lived component of one run of the assistant.
type Session struct {
	cfg    *config.Config
	root   string
	events chan<- workflow.Event
	logger *slog.Logger

	gateway      *permission.Gateway
	base         *toolmanager.Registry
	parent       *toolmanager.Registry
	capabilities *capability.Manager
	agents       *agent.Manager
	orchestrator *loop.Orchestrator

	ctx    context.Context // cancelled by Close
	cancel context.CancelFunc

	mu              sync.Mutex
	capabilityTools []string
	closed          bool
}

// New builds a session. Nothing is spawned until ConnectServers.
func New(deps Deps) (*Session, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.Backend == nil {
		return nil, errors.New("backend is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	root, err := pathutil.CanonicaliseRoot(deps.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}

	gateway, err := permission.NewGateway(permission.Options{
		SafeTools:      cfg.Permission.SafeTools,
		RequireForSafe: cfg.Orchestrator.RequirePermissionForSafeTools,
		Store:          deps.RuleStore,
		Prompter:       deps.Prompter,
		Logger:         logger.With("component", "permission"),
	})
	if err != nil {
		return nil, err
	}

	baseTools := BaseTools(cfg.Tools, root, deps.HTTPClient, logger)
	base := toolmanager.NewRegistry(gateway, baseTools...).WithLogger(logger.With("component", "tools"))

	capabilities := capability.NewManager(cfg.Capability.Servers, capability.ClientOptions{
		Spawner:         deps.Spawner,
		Timeout:         time.Duration(cfg.Capability.RequestTimeoutMs) * time.Millisecond,
		ProtocolVersion: cfg.Capability.ProtocolVersion,
		Logger:          logger.With("component", "capability"),
	})

	agents := agent.NewManager(agent.Config{
		Backend:          deps.Backend,
		BaseTools:        base,
		MaxTokens:        cfg.Orchestrator.MaxTokens,
		Logger:           logger.With("component", "agent"),
		MaxRetainedTasks: cfg.Agents.MaxRetainedTasks,
		TaskRetention:    time.Duration(cfg.Agents.TaskRetentionMinutes) * time.Minute,
	})
	if dir := agentsDir(root, cfg.Agents.Dir); dir != "" {
		defs, err := agent.LoadDir(dir)
		if err != nil {
			logger.Warn("some agent definitions were skipped", "dir", dir, "error", err)
		}
		for _, d := range defs {
			if err := agents.Register(d); err != nil {
				logger.Warn("agent definition rejected", "agent", d.Name, "error", err)
			}
		}
	}

	parentTools := append([]tool.Tool(nil), baseTools...)
	parentTools = append(parentTools, todo.Tools(todo.NewStore())...)
	parentTools = append(parentTools, agent.TaskTool(agents), agent.TaskOutputTool(agents))
	parent := toolmanager.NewRegistry(gateway, parentTools...).WithLogger(logger.With("component", "tools"))

	orch := loop.New(loop.Config{
		Backend:      deps.Backend,
		Tools:        parent,
		SystemPrompt: cfg.Orchestrator.SystemPrompt,
		MaxTurns:     cfg.Orchestrator.MaxTurns,
		MaxTokens:    cfg.Orchestrator.MaxTokens,
		Events:       deps.Events,
		Logger:       logger.With("component", "loop"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:          cfg,
		root:         root,
		events:       deps.Events,
		logger:       logger,
		gateway:      gateway,
		base:         base,
		parent:       parent,
		capabilities: capabilities,
		agents:       agents,
		orchestrator: orch,
		ctx:          ctx,
		cancel:       cancel,
	}
	agents.OnComplete(s.taskDone)
	capabilities.Subscribe(s.serverNotification)
	return s, nil
}

func agentsDir(root, dir string) string {
	if dir == "" {
		return ""
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// taskDone forwards background completions to the presenter. It gives up
// when the session is closed so a departed reader cannot block a task.
func (s *Session) taskDone(info agent.TaskInfo) {
	workflow.Send(s.ctx, s.events, workflow.TaskDoneEvent{
		TaskID: info.ID,
		Agent:  info.Agent,
		Status: string(info.State),
		Err:    info.Err,
	})
}

// ConnectServers starts every configured capability server and exposes the
// tools of those that connected. Servers that fail are reported in the
// returned error; the others stay usable.
func (s *Session) ConnectServers(ctx context.Context) error {
	connectErr := s.capabilities.ConnectAll(ctx)
	s.refreshCapabilityTools()
	return connectErr
}

// refreshCapabilityTools replaces the previously registered remote tools
// with the current set from connected servers.
func (s *Session) refreshCapabilityTools() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.base.Unregister(s.capabilityTools...)
	s.parent.Unregister(s.capabilityTools...)
	s.capabilityTools = s.capabilityTools[:0]

	for _, t := range s.capabilities.Tools() {
		s.base.Register(t)
		s.parent.Register(t)
		s.capabilityTools = append(s.capabilityTools, t.Name())
	}
	s.logger.Info("capability tools registered", "count", len(s.capabilityTools))
}

// serverNotification re-registers a server's tools when it reports that they
// changed. It runs on the server's reader goroutine, so the re-listing, which
// needs that goroutine, happens on its own.
func (s *Session) serverNotification(n capability.Notification) {
	if n.Method != capability.NotificationToolsListChanged {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, refreshTimeout)
		defer cancel()
		if err := s.capabilities.RefreshTools(ctx, n.Server); err != nil {
			s.logger.Warn("capability tools not refreshed", "server", n.Server, "error", err)
			return
		}
		s.refreshCapabilityTools()
	}()
}

// ExpandPrompt fetches a server prompt template filled with args and returns
// its text, ready to be sent with Run.
func (s *Session) ExpandPrompt(ctx context.Context, server, name string, args map[string]string) (string, error) {
	res, err := s.capabilities.GetPrompt(ctx, server, name, args)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}

// Run sends one user message through the parent conversation.
func (s *Session) Run(ctx context.Context, input string) (*loop.RunResult, error) {
	return s.orchestrator.Run(ctx, input)
}

// Reset clears the parent conversation and the session permission grants.
func (s *Session) Reset() {
	s.orchestrator.Reset()
	s.gateway.ResetSession()
}

// Close stops background agents and disconnects capability servers.
// It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Stop event delivery first; nobody may be reading any more.
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.agents.Shutdown(ctx)
	s.capabilities.DisconnectAll()
	if err != nil {
		return fmt.Errorf("shutdown agents: %w", err)
	}
	return nil
}

func (s *Session) WorkspaceRoot() string                { return s.root }
func (s *Session) Gateway() *permission.Gateway         { return s.gateway }
func (s *Session) Agents() *agent.Manager               { return s.agents }
func (s *Session) Capabilities() *capability.Manager    { return s.capabilities }
func (s *Session) Orchestrator() *loop.Orchestrator     { return s.orchestrator }
func (s *Session) ParentTools() *toolmanager.Registry   { return s.parent }
func (s *Session) SubAgentTools() *toolmanager.Registry { return s.base }

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Cyclone1070/agentcore/internal/provider"
	"github.com/Cyclone1070/agentcore/internal/workflow/loop"
	"github.com/Cyclone1070/agentcore/internal/workflow/toolmanager"
	"github.com/google/uuid"
)

// Tool names the manager exposes to the parent. Sub-agents never get them.
const (
	TaskToolName       = "task"
	TaskOutputToolName = "task_output"
)

// ExecutionMode overrides a definition's default mode.
type ExecutionMode string

const (
	ModeDefault    ExecutionMode = ""
	ModeForeground ExecutionMode = "foreground"
	ModeBackground ExecutionMode = "background"
)

// Options parameterize one sub-agent run.
type Options struct {
	Task         string
	Description  string // short label for task listings
	WorkingDir   string
	Context      string
	Thoroughness Thoroughness
	Mode         ExecutionMode
}

// Result is what crosses back from a sub-agent to its caller.
type Result struct {
	AgentName       string
	Output          string
	Usage           provider.Usage
	TurnsTaken      int
	MaxTurnsReached bool
	TaskID          string // set for background runs
	Background      bool   // true for the placeholder of a detached run
}

// Config wires a Manager.
type Config struct {
	Backend   provider.Backend
	BaseTools *toolmanager.Registry
	MaxTokens int
	Logger    *slog.Logger

	// MaxRetainedTasks bounds finished tasks kept; 0 means 100.
	MaxRetainedTasks int
	// TaskRetention drops finished tasks older than this; 0 keeps them
	// until the count bound or Cleanup removes them.
	TaskRetention time.Duration
}

// Manager runs sub-agents in isolation, inline or detached.
type Manager struct {
	backend     provider.Backend
	base        *toolmanager.Registry
	maxTokens   int
	logger      *slog.Logger
	maxRetained int
	retention   time.Duration
	now         func() time.Time
	newID       func() string

	mu          sync.RWMutex
	definitions map[string]Definition
	tasks       map[string]*task
	onComplete  []func(TaskInfo)
}

// NewManager creates a manager with the built-in definitions registered.
func NewManager(cfg Config) *Manager {
	if cfg.Backend == nil {
		panic("backend is required")
	}
	if cfg.BaseTools == nil {
		panic("base tools are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxRetained := cfg.MaxRetainedTasks
	if maxRetained <= 0 {
		maxRetained = 100
	}
	m := &Manager{
		backend:     cfg.Backend,
		base:        cfg.BaseTools,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
		maxRetained: maxRetained,
		retention:   cfg.TaskRetention,
		now:         time.Now,
		newID:       uuid.NewString,
		definitions: make(map[string]Definition),
		tasks:       make(map[string]*task),
	}
	for _, d := range Builtins() {
		if err := m.Register(d); err != nil {
			panic(err)
		}
	}
	return m
}

// Register adds a definition. Names are unique.
func (m *Manager) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.definitions[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, def.Name)
	}
	m.definitions[def.Name] = def.clone()
	return nil
}

// Definition returns a copy of the named definition.
func (m *Manager) Definition(name string) (Definition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.definitions[name]
	if !ok {
		return Definition{}, false
	}
	return d.clone(), true
}

// Definitions returns all definitions sorted by name.
func (m *Manager) Definitions() []Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Definition, 0, len(m.definitions))
	for _, d := range m.definitions {
		out = append(out, d.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// OnComplete registers fn to run after every background task finishes.
// fn runs on the task's goroutine.
func (m *Manager) OnComplete(fn func(TaskInfo)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onComplete = append(m.onComplete, fn)
}

// RunAgent runs the named agent. In background mode it returns at once with
// a placeholder naming the task id; otherwise it blocks until the run ends.
func (m *Manager) RunAgent(ctx context.Context, name string, opts Options) (*Result, error) {
	def, ok := m.Definition(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}

	background := def.Background
	switch opts.Mode {
	case ModeBackground:
		background = true
	case ModeForeground:
		background = false
	}
	if background {
		id, err := m.RunAgentInBackground(ctx, name, opts)
		if err != nil {
			return nil, err
		}
		return &Result{
			AgentName:  name,
			Output:     fmt.Sprintf("Agent %s started in background with task id %s.", name, id),
			TaskID:     id,
			Background: true,
		}, nil
	}
	return m.run(ctx, def, opts)
}

// RunAgentInBackground starts the named agent detached from ctx's
// cancellation and returns its task id.
func (m *Manager) RunAgentInBackground(ctx context.Context, name string, opts Options) (string, error) {
	def, ok := m.Definition(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	if _, _, err := def.preset(opts.Thoroughness); err != nil {
		return "", err
	}

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := &task{
		id:          m.newID(),
		agent:       name,
		description: describe(opts),
		startedAt:   m.now(),
		cancel:      cancel,
		done:        make(chan struct{}),
		state:       TaskRunning,
	}

	m.mu.Lock()
	m.tasks[t.id] = t
	m.mu.Unlock()
	m.logger.Info("background agent started", "task_id", t.id, "agent", name)

	go func() {
		defer cancel()
		res, err := m.run(taskCtx, def, opts)
		if res != nil {
			res.TaskID = t.id
		}
		t.finish(res, err, m.now())
		close(t.done)

		info := t.info()
		m.logger.Info("background agent finished", "task_id", t.id, "agent", name, "state", info.State)

		m.mu.RLock()
		callbacks := append([]func(TaskInfo)(nil), m.onComplete...)
		m.mu.RUnlock()
		for _, fn := range callbacks {
			fn(info)
		}
		m.prune()
	}()

	return t.id, nil
}

// WaitForTask blocks until the task finishes or ctx is done.
func (m *Manager) WaitForTask(ctx context.Context, id string) (*Result, error) {
	t, err := m.task(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	info := t.info()
	return info.Result, info.Err
}

// TaskStatus returns a snapshot of the task.
func (m *Manager) TaskStatus(id string) (TaskInfo, error) {
	t, err := m.task(id)
	if err != nil {
		return TaskInfo{}, err
	}
	return t.info(), nil
}

// Tasks returns snapshots of all retained tasks, oldest first.
func (m *Manager) Tasks() []TaskInfo {
	m.mu.RLock()
	out := make([]TaskInfo, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.info())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// CancelTask aborts a running task: it is marked cancelled with
// ErrTaskAborted and its context is cancelled so the backend call or tool in
// flight stops. Cancelling a finished task is a no-op.
func (m *Manager) CancelTask(id string) error {
	t, err := m.task(id)
	if err != nil {
		return err
	}
	if t.abort(m.now()) {
		m.logger.Info("background agent cancelled", "task_id", id)
	}
	t.cancel()
	return nil
}

// Cleanup removes every finished task whose goroutine has returned and
// returns how many were removed.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, t := range m.tasks {
		if done, _ := t.terminalSince(); done && t.exited() {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed
}

// Shutdown cancels every running task and waits for them until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	tasks := make([]*task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.mu.RUnlock()

	for _, t := range tasks {
		t.abort(m.now())
		t.cancel()
	}
	for _, t := range tasks {
		select {
		case <-t.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// prune drops finished tasks past the retention age, then the oldest
// finished tasks beyond the count bound. Tasks whose goroutine is still
// running are never dropped, even when already marked cancelled.
func (m *Manager) prune() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	type finished struct {
		id string
		at time.Time
	}
	var done []finished
	for id, t := range m.tasks {
		terminal, at := t.terminalSince()
		if !terminal || !t.exited() {
			continue
		}
		if m.retention > 0 && now.Sub(at) > m.retention {
			delete(m.tasks, id)
			continue
		}
		done = append(done, finished{id, at})
	}

	excess := len(m.tasks) - m.maxRetained
	if excess <= 0 {
		return
	}
	sort.Slice(done, func(i, j int) bool { return done[i].at.Before(done[j].at) })
	for i := 0; i < excess && i < len(done); i++ {
		delete(m.tasks, done[i].id)
	}
}

func (m *Manager) task(id string) (*task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return t, nil
}

// run executes def with a fresh restricted registry and a fresh
// orchestrator, so nothing but the result is shared with the caller.
func (m *Manager) run(ctx context.Context, def Definition, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.Task) == "" {
		return nil, errors.New("task is required")
	}
	maxTurns, addendum, err := def.preset(opts.Thoroughness)
	if err != nil {
		return nil, err
	}

	registry := m.base.Restrict(def.Tools)
	registry.Unregister(TaskToolName, TaskOutputToolName)

	orch := loop.New(loop.Config{
		Backend:      m.backend,
		Tools:        registry,
		SystemPrompt: buildPrompt(def.SystemPrompt, addendum, opts),
		MaxTurns:     maxTurns,
		MaxTokens:    m.maxTokens,
		Logger:       m.logger.With("agent", def.Name),
	})

	m.logger.Debug("sub-agent run", "agent", def.Name, "tools", registry.Names(), "max_turns", orch.MaxTurns())
	out, err := orch.Run(ctx, opts.Task)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", def.Name, err)
	}
	return &Result{
		AgentName:       def.Name,
		Output:          out.FinalText,
		Usage:           out.Usage,
		TurnsTaken:      out.TurnsTaken,
		MaxTurnsReached: out.MaxTurnsReached,
	}, nil
}

func buildPrompt(base, addendum string, opts Options) string {
	var b strings.Builder
	b.WriteString(base)
	if addendum != "" {
		b.WriteString("\n\n")
		b.WriteString(addendum)
	}
	if opts.WorkingDir != "" {
		b.WriteString("\n\nWorking directory: ")
		b.WriteString(opts.WorkingDir)
	}
	if opts.Context != "" {
		b.WriteString("\n\nAdditional context:\n")
		b.WriteString(opts.Context)
	}
	return b.String()
}

func describe(opts Options) string {
	if opts.Description != "" {
		return opts.Description
	}
	first, _, _ := strings.Cut(strings.TrimSpace(opts.Task), "\n")
	if r := []rune(first); len(r) > 60 {
		first = string(r[:57]) + "..."
	}
	return first
}

package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Cyclone1070/agentcore/internal/agent"
	"github.com/Cyclone1070/agentcore/internal/config"
	"github.com/Cyclone1070/agentcore/internal/permission"
	"github.com/Cyclone1070/agentcore/internal/provider"
	"github.com/Cyclone1070/agentcore/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	mu           sync.Mutex
	requests     []*provider.Request
	completeFunc func(req *provider.Request) *provider.Response
}

func (m *mockBackend) Complete(ctx context.Context, req *provider.Request, cb provider.Callbacks) (*provider.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.completeFunc(req), nil
}

func text(s string) *provider.Response {
	return &provider.Response{
		Content:    []provider.ContentBlock{{Type: provider.BlockText, Text: s}},
		StopReason: provider.StopEndTurn,
	}
}

func call(id, name string, args map[string]any) *provider.Response {
	inv := provider.ToolInvocation{ID: id, Name: name, Arguments: args}
	return &provider.Response{
		Content:    []provider.ContentBlock{{Type: provider.BlockToolInvocation, Invocation: &inv}},
		StopReason: provider.StopToolUse,
	}
}

func lastResult(req *provider.Request) string {
	last := req.Messages[len(req.Messages)-1]
	for _, b := range last.Content {
		if b.Result != nil {
			return b.Result.Content
		}
	}
	return ""
}

func newSession(t *testing.T, b provider.Backend, prompter permission.Prompter, mutate func(*config.Config)) (*Session, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	s, err := New(Deps{Config: cfg, Backend: b, WorkspaceRoot: root, Prompter: prompter})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, s.WorkspaceRoot()
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Deps{Backend: &mockBackend{}})
	assert.ErrorContains(t, err, "config is required")

	_, err = New(Deps{Config: config.DefaultConfig()})
	assert.ErrorContains(t, err, "backend is required")

	_, err = New(Deps{Config: config.DefaultConfig(), Backend: &mockBackend{}, WorkspaceRoot: filepath.Join(t.TempDir(), "missing")})
	assert.ErrorContains(t, err, "workspace")
}

func TestSession_Registries(t *testing.T) {
	s, _ := newSession(t, &mockBackend{}, nil, nil)

	parent := s.ParentTools().Names()
	for _, name := range []string{"read_file", "write_file", "edit_file", "list_directory", "glob", "grep", "run_shell", "fetch_url", "read_todos", "write_todos", "task", "task_output"} {
		assert.Contains(t, parent, name)
	}
	sub := s.SubAgentTools().Names()
	assert.NotContains(t, sub, "task")
	assert.NotContains(t, sub, "task_output")
	assert.NotContains(t, sub, "write_todos")
	assert.Contains(t, sub, "read_file")
}

func TestSession_RunReadsFile(t *testing.T) {
	b := &mockBackend{}
	b.completeFunc = func(req *provider.Request) *provider.Response {
		if len(req.Messages) == 1 {
			return call("c1", "read_file", map[string]any{"path": "notes.txt"})
		}
		return text("The note says: " + lastResult(req))
	}
	s, root := newSession(t, b, nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ship it\n"), 0o644))

	res, err := s.Run(context.Background(), "what does notes.txt say?")

	require.NoError(t, err)
	assert.Equal(t, 2, res.TurnsTaken)
	assert.Contains(t, res.FinalText, "ship it")
}

func TestSession_WriteNeedsPermission(t *testing.T) {
	var asked []permission.Request
	prompter := permission.PrompterFunc(func(ctx context.Context, req permission.Request) (permission.Answer, error) {
		asked = append(asked, req)
		return permission.AnswerNo, nil
	})
	b := &mockBackend{}
	b.completeFunc = func(req *provider.Request) *provider.Response {
		if len(req.Messages) == 1 {
			return call("c1", "write_file", map[string]any{"path": "out.txt", "content": "x"})
		}
		return text(lastResult(req))
	}
	s, root := newSession(t, b, prompter, nil)

	res, err := s.Run(context.Background(), "write it")

	require.NoError(t, err)
	require.Len(t, asked, 1)
	assert.Equal(t, "write_file", asked[0].Tool)
	assert.Equal(t, "out.txt", asked[0].Key)
	assert.Contains(t, res.FinalText, "permission denied")
	assert.NoFileExists(t, filepath.Join(root, "out.txt"))
}

func TestSession_DelegatesToExplore(t *testing.T) {
	b := &mockBackend{}
	b.completeFunc = func(req *provider.Request) *provider.Response {
		if !hasTool(req, "task") {
			return text("found it in main.go")
		}
		if len(req.Messages) == 1 {
			return call("c1", "task", map[string]any{"prompt": "find main", "subagent_type": "explore", "thoroughness": "quick"})
		}
		return text("agent said: " + lastResult(req))
	}
	allow := permission.PrompterFunc(func(context.Context, permission.Request) (permission.Answer, error) {
		return permission.AnswerYes, nil
	})
	s, _ := newSession(t, b, allow, nil)

	res, err := s.Run(context.Background(), "where is main?")

	require.NoError(t, err)
	assert.Equal(t, "agent said: found it in main.go", res.FinalText)
	for _, req := range b.requests {
		if !hasTool(req, "task") {
			assert.False(t, hasTool(req, "write_file"), "explore must not see write tools")
		}
	}
}

func hasTool(req *provider.Request, name string) bool {
	for _, d := range req.Tools {
		if d.Name == name {
			return true
		}
	}
	return false
}

func TestSession_CustomAgentsLoaded(t *testing.T) {
	b := &mockBackend{completeFunc: func(*provider.Request) *provider.Response { return text("ok") }}
	root := t.TempDir()
	dir := filepath.Join(root, ".agentcore", "agents")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reviewer.md"), []byte("---\ndescription: reviews\ntools: read_file\n---\nReview."), 0o644))

	s, err := New(Deps{Config: config.DefaultConfig(), Backend: b, WorkspaceRoot: root})
	require.NoError(t, err)
	defer s.Close()

	def, ok := s.Agents().Definition("reviewer")
	require.True(t, ok)
	assert.Equal(t, "reviews", def.Description)
}

func TestSession_ConnectServersFailure(t *testing.T) {
	s, _ := newSession(t, &mockBackend{}, nil, func(cfg *config.Config) {
		cfg.Capability.Servers = map[string]config.ServerConfig{
			"ghost": {Command: filepath.Join(t.TempDir(), "does-not-exist")},
		}
	})
	before := len(s.ParentTools().Names())

	err := s.ConnectServers(context.Background())

	assert.ErrorContains(t, err, "ghost")
	assert.Len(t, s.ParentTools().Names(), before)
}

func TestSession_TaskDoneEventsAndClose(t *testing.T) {
	events := make(chan workflow.Event, 16)
	release := make(chan struct{})
	b := &mockBackend{completeFunc: func(req *provider.Request) *provider.Response {
		<-release
		return text("plan ready")
	}}
	root := t.TempDir()
	s, err := New(Deps{Config: config.DefaultConfig(), Backend: b, WorkspaceRoot: root, Events: events})
	require.NoError(t, err)

	id, err := s.Agents().RunAgentInBackground(context.Background(), "plan", agent.Options{Task: "make a plan"})
	require.NoError(t, err)
	close(release)

	ev := <-events
	done, ok := ev.(workflow.TaskDoneEvent)
	require.True(t, ok)
	assert.Equal(t, id, done.TaskID)
	assert.Equal(t, "completed", done.Status)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestSession_Reset(t *testing.T) {
	b := &mockBackend{completeFunc: func(*provider.Request) *provider.Response { return text("hi") }}
	s, _ := newSession(t, b, nil, nil)
	_, err := s.Run(context.Background(), "hello")
	require.NoError(t, err)
	require.NotEmpty(t, s.Orchestrator().Conversation())

	s.Reset()

	assert.Empty(t, s.Orchestrator().Conversation())
	assert.Empty(t, s.Gateway().SessionGrants())
}

package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Cyclone1070/agentcore/internal/config"
	"github.com/Cyclone1070/agentcore/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is written by the presenter goroutine and the REPL at once.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type scriptedBackend struct {
	reply func(req *provider.Request) string
}

func (b scriptedBackend) Complete(ctx context.Context, req *provider.Request, cb provider.Callbacks) (*provider.Response, error) {
	text := b.reply(req)
	cb.EmitText(text)
	return &provider.Response{
		Content:    []provider.ContentBlock{provider.TextBlock(text)},
		StopReason: provider.StopEndTurn,
		Usage:      provider.Usage{InputTokens: 3, OutputTokens: 2},
	}, nil
}

func factoryFor(b provider.Backend) ProviderFactory {
	return func(context.Context, *config.Config, *slog.Logger) (provider.Backend, error) {
		return b, nil
	}
}

// execute runs the root command in an isolated home and workspace.
func execute(t *testing.T, factory ProviderFactory, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	workspace := t.TempDir()

	cmd := newRootCmd(factory)
	var out syncBuffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--workspace", workspace}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoot_OneShotPrompt(t *testing.T) {
	var seen string
	b := scriptedBackend{reply: func(req *provider.Request) string {
		seen = req.Messages[len(req.Messages)-1].Text()
		return "hello there"
	}}

	out, err := execute(t, factoryFor(b), "", "--no-servers", "-p", "say hi")

	require.NoError(t, err)
	assert.Equal(t, "say hi", seen)
	assert.Contains(t, out, "hello there")
}

func TestRoot_PromptFromArgs(t *testing.T) {
	var seen string
	b := scriptedBackend{reply: func(req *provider.Request) string {
		seen = req.Messages[len(req.Messages)-1].Text()
		return "ok"
	}}

	_, err := execute(t, factoryFor(b), "", "--no-servers", "fix", "the", "build")

	require.NoError(t, err)
	assert.Equal(t, "fix the build", seen)
}

func TestRoot_REPL(t *testing.T) {
	calls := 0
	b := scriptedBackend{reply: func(req *provider.Request) string {
		calls++
		return "answer " + req.Messages[len(req.Messages)-1].Text()
	}}

	out, err := execute(t, factoryFor(b), "/help\nfirst\n/usage\n/reset\n/tasks\n/prompts\n/prompt docs\n/prompt docs review\n/bogus\n/exit\nnever\n", "--no-servers")

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, out, "/reset    clear the conversation")
	assert.Contains(t, out, "answer first")
	assert.Contains(t, out, "3 input, 2 output, 5 total tokens")
	assert.Contains(t, out, "conversation cleared")
	assert.Contains(t, out, "no background tasks")
	assert.Contains(t, out, "no prompts available")
	assert.Contains(t, out, "usage: /prompt <server> <name>")
	assert.Contains(t, out, "docs: capability server not connected")
	assert.Contains(t, out, "unknown command /bogus")
}

func TestRoot_ProviderFactoryError(t *testing.T) {
	factory := func(context.Context, *config.Config, *slog.Logger) (provider.Backend, error) {
		return nil, errors.New("GEMINI_API_KEY environment variable is required")
	}

	_, err := execute(t, factory, "", "-p", "x")

	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"provider":{"model":"from-file"},"orchestrator":{"max_turns":7}}`), 0o644))

	cfg, _, err := loadConfig(&options{configPath: path})
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Provider.Model)
	assert.Equal(t, 7, cfg.Orchestrator.MaxTurns)

	cfg, _, err = loadConfig(&options{configPath: path, model: "flag-model", maxTurns: 3, debug: true})
	require.NoError(t, err)
	assert.Equal(t, "flag-model", cfg.Provider.Model)
	assert.Equal(t, 3, cfg.Orchestrator.MaxTurns)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, _, err := loadConfig(&options{configPath: path})

	assert.ErrorContains(t, err, "load config")
}

func TestAgentsCommand(t *testing.T) {
	workspace := t.TempDir()
	dir := filepath.Join(workspace, ".agentcore", "agents")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reviewer.md"),
		[]byte("---\ndescription: Reviews diffs\ntools: read_file, grep\nmax_turns: 9\n---\nReview."), 0o644))
	t.Setenv("HOME", t.TempDir())

	cmd := newRootCmd(factoryFor(nil))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"agents", "--workspace", workspace})

	require.NoError(t, cmd.Execute())
	got := out.String()
	assert.Contains(t, got, "explore")
	assert.Contains(t, got, "plan")
	assert.Contains(t, got, "reviewer  Reviews diffs")
	assert.Contains(t, got, "tools: read_file, grep")
	assert.Contains(t, got, "max turns: 9")
}

func TestServersCommand_NoneConfigured(t *testing.T) {
	out, err := execute(t, factoryFor(nil), "", "servers")

	require.NoError(t, err)
	assert.Contains(t, out, "no capability servers configured")
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown k=v")
}
